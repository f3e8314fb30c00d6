package profile

import (
	"fmt"
	"strings"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
)

// Objectives is a list of personal goals and where they came from.
type Objectives struct {
	Goals  []string `json:"objectives"`
	Source string   `json:"source"`
}

// Objective sources.
const (
	SourceGenerated = "generated"
	SourceRules     = "rules"
)

const maxGoals = 5

type objectivesReply struct {
	Objectives []string `json:"objectives"`
}

var objectivesSchema = llm.MustSchema[objectivesReply]("PersonalObjectives")

// RuleBasedObjectives derives fallback goals from traits and the average
// emotion vector.
func RuleBasedObjectives(traits BigFive, avg emotion.Vector) []string {
	var goals []string
	if traits.Neuroticism > 0.5 {
		goals = append(goals, "Practise a stress-reduction routine, such as ten minutes of breathing or a walk, on tense days.")
	}
	if avg.Joy < 0.2 {
		goals = append(goals, "Schedule one activity each week that reliably makes you feel happy and relaxed.")
	}
	if len(goals) == 0 {
		goals = append(goals, "Keep your emotional balance and stick with the routines that are working for you.")
	}
	return goals
}

// parseObjectives decodes a backend reply into at most maxGoals non-empty
// goals.
func parseObjectives(raw string) ([]string, error) {
	var reply objectivesReply
	if err := objectivesSchema.Decode(raw, &reply); err != nil {
		return nil, err
	}
	goals := make([]string, 0, maxGoals)
	for _, g := range reply.Objectives {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
		if len(goals) == maxGoals {
			break
		}
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("%w: no goals in reply", llm.ErrMalformedOutput)
	}
	return goals, nil
}
