// Package emotion defines the fixed five-label emotion vector shared by the
// diary, profile and chat packages, together with the taggers that produce it.
package emotion

import (
	"fmt"
	"math"
	"strings"
)

// Label names one of the five tracked emotions.
type Label string

const (
	Joy      Label = "Joy"
	Anger    Label = "Anger"
	Surprise Label = "Surprise"
	Sadness  Label = "Sadness"
	Fear     Label = "Fear"
)

// Neutral is reported as the dominant emotion of an all-zero vector.
const Neutral = "neutral"

// Labels lists every label in precedence order. When two labels share the
// maximum intensity the one that appears first here wins.
var Labels = [...]Label{Joy, Anger, Surprise, Sadness, Fear}

// aliases maps alternative label spellings (as produced by common emotion
// taggers) onto the canonical labels. Keys are lower case.
var aliases = map[string]Label{
	"joy":      Joy,
	"happy":    Joy,
	"anger":    Anger,
	"angry":    Anger,
	"surprise": Surprise,
	"sadness":  Sadness,
	"sad":      Sadness,
	"fear":     Fear,
}

// ParseLabel resolves a label name, accepting the aliases Happy, Angry and
// Sad. Matching is case-insensitive.
func ParseLabel(s string) (Label, bool) {
	l, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

// Vector holds one intensity in [0,1] per label. Intensities are independent
// and need not sum to 1. The zero value is the "no signal" vector.
type Vector struct {
	Joy      float64 `json:"joy"`
	Anger    float64 `json:"anger"`
	Surprise float64 `json:"surprise"`
	Sadness  float64 `json:"sadness"`
	Fear     float64 `json:"fear"`
}

// Get returns the intensity for l, or 0 for an unknown label.
func (v Vector) Get(l Label) float64 {
	switch l {
	case Joy:
		return v.Joy
	case Anger:
		return v.Anger
	case Surprise:
		return v.Surprise
	case Sadness:
		return v.Sadness
	case Fear:
		return v.Fear
	}
	return 0
}

// With returns a copy of v with the intensity for l set to x.
func (v Vector) With(l Label, x float64) Vector {
	switch l {
	case Joy:
		v.Joy = x
	case Anger:
		v.Anger = x
	case Surprise:
		v.Surprise = x
	case Sadness:
		v.Sadness = x
	case Fear:
		v.Fear = x
	}
	return v
}

// Clamp returns a copy of v with every intensity forced into [0,1]. NaN is
// treated as 0.
func (v Vector) Clamp() Vector {
	for _, l := range Labels {
		v = v.With(l, clamp01(v.Get(l)))
	}
	return v
}

// IsZero reports whether every intensity is exactly 0.
func (v Vector) IsZero() bool {
	return v == Vector{}
}

// Dominant returns the label with the highest intensity, breaking ties by
// the order of Labels. An all-zero vector yields Neutral.
func (v Vector) Dominant() string {
	best := Label("")
	bestVal := 0.0
	for _, l := range Labels {
		if x := v.Get(l); x > bestVal {
			best, bestVal = l, x
		}
	}
	if best == "" {
		return Neutral
	}
	return string(best)
}

// Map returns the vector as a label -> intensity map.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(Labels))
	for _, l := range Labels {
		m[string(l)] = v.Get(l)
	}
	return m
}

// FromMap builds a vector from a label -> intensity map. Unknown keys are
// ignored, missing labels read as 0 and values are clamped into [0,1].
func FromMap(m map[string]float64) Vector {
	var v Vector
	for k, x := range m {
		if l, ok := ParseLabel(k); ok {
			v = v.With(l, x)
		}
	}
	return v.Clamp()
}

// String renders the vector in label order with two decimals.
func (v Vector) String() string {
	parts := make([]string, 0, len(Labels))
	for _, l := range Labels {
		parts = append(parts, fmt.Sprintf("%s=%.2f", l, v.Get(l)))
	}
	return strings.Join(parts, " ")
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
