package llm

import (
	"context"
	"fmt"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
)

// DefaultTaggingPrompt instructs the model to score a text on the five labels.
const DefaultTaggingPrompt = `You score the emotional content of a personal text.
Return a JSON object with the keys joy, anger, surprise, sadness and fear.
Each value is the intensity of that emotion in the text, a number between 0 and 1.
Scores are independent and do not need to sum to 1. Use 0 for emotions that are absent.`

type emotionScores struct {
	Joy      float64 `json:"joy" jsonschema:"minimum=0,maximum=1"`
	Anger    float64 `json:"anger" jsonschema:"minimum=0,maximum=1"`
	Surprise float64 `json:"surprise" jsonschema:"minimum=0,maximum=1"`
	Sadness  float64 `json:"sadness" jsonschema:"minimum=0,maximum=1"`
	Fear     float64 `json:"fear" jsonschema:"minimum=0,maximum=1"`
}

var emotionScoresSchema = MustSchema[emotionScores]("EmotionScores")

// EmotionTagger scores text by asking a Generator for schema-constrained
// emotion intensities.
type EmotionTagger struct {
	Generator Generator
	// Prompt overrides DefaultTaggingPrompt when non-empty.
	Prompt string
}

var _ emotion.Tagger = (*EmotionTagger)(nil)

// Tag implements emotion.Tagger.
func (t *EmotionTagger) Tag(ctx context.Context, text string) (emotion.Vector, error) {
	prompt := t.Prompt
	if prompt == "" {
		prompt = DefaultTaggingPrompt
	}
	raw, err := t.Generator.Generate(ctx, []Message{
		{Role: RoleSystem, Content: prompt},
		{Role: RoleUser, Content: text},
	}, WithSchema(emotionScoresSchema), WithTemperature(0))
	if err != nil {
		return emotion.Vector{}, fmt.Errorf("llm tagger: %w", err)
	}

	var s emotionScores
	if err := emotionScoresSchema.Decode(raw, &s); err != nil {
		return emotion.Vector{}, fmt.Errorf("llm tagger: %w", err)
	}
	return emotion.Vector{
		Joy:      s.Joy,
		Anger:    s.Anger,
		Surprise: s.Surprise,
		Sadness:  s.Sadness,
		Fear:     s.Fear,
	}.Clamp(), nil
}
