package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bdobrica/Kibun/internal/kibun/diary"
	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
)

// ErrClassificationParse means the backend's classification reply could not
// be decoded. It is always recovered into an empty Classification.
var ErrClassificationParse = errors.New("profile: classification reply could not be parsed")

// Classification is the categorical personality type returned by the
// generation backend. The zero value means "no classification".
type Classification struct {
	EnneagramType  string `json:"enneagram_type"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// IsEmpty reports whether c carries no information.
func (c Classification) IsEmpty() bool {
	return c == Classification{}
}

var classificationSchema = llm.MustSchema[Classification]("EnneagramClassification")

// BuildClassificationRequest renders entries as the narrative history block
// embedded in the classification and objectives prompts. Entries appear
// oldest first, each as a date line, the full text and one line per emotion,
// with a blank line between entries.
func BuildClassificationRequest(entries []diary.Entry) string {
	sorted := make([]diary.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	blocks := make([]string, 0, len(sorted))
	for _, e := range sorted {
		var b strings.Builder
		fmt.Fprintf(&b, "Date: %s\n", e.DateString())
		fmt.Fprintf(&b, "Entry: %s\n", e.Text)
		b.WriteString("Emotions:")
		for _, l := range emotion.Labels {
			fmt.Fprintf(&b, "\n- %s: %.2f", l, e.Emotions.Get(l))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// ParseClassification decodes a backend reply, stripping code fences first.
// Any JSON object is accepted; absent keys stay empty and unknown ones are
// ignored. The strict schema only shapes the request. On failure it returns
// the empty Classification and an error wrapping ErrClassificationParse.
func ParseClassification(raw string) (Classification, error) {
	body := llm.StripCodeFences(raw)
	if body == "" {
		return Classification{}, fmt.Errorf("%w: empty reply", ErrClassificationParse)
	}
	var c Classification
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrClassificationParse, err)
	}
	c.EnneagramType = strings.TrimSpace(c.EnneagramType)
	c.Description = strings.TrimSpace(c.Description)
	c.Recommendation = strings.TrimSpace(c.Recommendation)
	return c, nil
}
