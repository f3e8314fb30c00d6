package profile

import (
	"fmt"
	"math"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
)

// BigFive holds the five trait scores, each in [0,1].
//
// The scores are a fixed heuristic over the averaged emotion vector, not a
// psychometric measurement. Openness is clamped to [0,1] and
// Conscientiousness to [0.2,1] as a matter of policy.
type BigFive struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

const conscientiousnessFloor = 0.2

// InferBigFive maps an averaged emotion vector to trait scores. Inputs are
// clamped to [0,1] first.
func InferBigFive(avg emotion.Vector) BigFive {
	v := avg.Clamp()
	return BigFive{
		Neuroticism:       (0.3*v.Sadness + 0.3*v.Fear + 0.4*v.Anger) / 1.0,
		Extraversion:      (0.3*v.Joy + 0.4*v.Surprise) / (0.3 + 0.4),
		Agreeableness:     0.5*v.Joy + 0.5*(1-v.Anger),
		Openness:          clamp((v.Surprise+v.Joy)/2, 0, 1),
		Conscientiousness: clamp(1-(v.Anger+v.Fear)/2, conscientiousnessFloor, 1),
	}
}

// Rounded returns a copy with every score rounded to two decimals.
func (b BigFive) Rounded() BigFive {
	return BigFive{
		Openness:          round2(b.Openness),
		Conscientiousness: round2(b.Conscientiousness),
		Extraversion:      round2(b.Extraversion),
		Agreeableness:     round2(b.Agreeableness),
		Neuroticism:       round2(b.Neuroticism),
	}
}

// String renders the rounded scores compactly.
func (b BigFive) String() string {
	r := b.Rounded()
	return fmt.Sprintf("O=%.2f C=%.2f E=%.2f A=%.2f N=%.2f",
		r.Openness, r.Conscientiousness, r.Extraversion, r.Agreeableness, r.Neuroticism)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
