package profile

import (
	"testing"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
)

func TestInferBigFive(t *testing.T) {
	tests := []struct {
		name string
		avg  emotion.Vector
		want BigFive
	}{
		{
			name: "zero vector",
			avg:  emotion.Vector{},
			want: BigFive{Openness: 0, Conscientiousness: 1, Extraversion: 0, Agreeableness: 0.5, Neuroticism: 0},
		},
		{
			name: "joy only",
			avg:  emotion.Vector{Joy: 1},
			want: BigFive{Openness: 0.5, Conscientiousness: 1, Extraversion: 0.3 / 0.7, Agreeableness: 1, Neuroticism: 0},
		},
		{
			name: "anger and fear hit the conscientiousness floor",
			avg:  emotion.Vector{Anger: 1, Fear: 1},
			want: BigFive{Openness: 0, Conscientiousness: 0.2, Extraversion: 0, Agreeableness: 0, Neuroticism: 0.7},
		},
		{
			name: "all ones",
			avg:  emotion.Vector{Joy: 1, Anger: 1, Surprise: 1, Sadness: 1, Fear: 1},
			want: BigFive{Openness: 1, Conscientiousness: 0.2, Extraversion: 1, Agreeableness: 0.5, Neuroticism: 1},
		},
		{
			name: "out of range inputs are clamped",
			avg:  emotion.Vector{Joy: 3, Surprise: 2, Anger: -1},
			want: BigFive{Openness: 1, Conscientiousness: 1, Extraversion: 1, Agreeableness: 1, Neuroticism: 0},
		},
		{
			name: "mixed",
			avg:  emotion.Vector{Joy: 0.6, Sadness: 0.2},
			want: BigFive{Openness: 0.3, Conscientiousness: 1, Extraversion: 0.18 / 0.7, Agreeableness: 0.8, Neuroticism: 0.06},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferBigFive(tt.avg)
			checks := []struct {
				trait     string
				got, want float64
			}{
				{"openness", got.Openness, tt.want.Openness},
				{"conscientiousness", got.Conscientiousness, tt.want.Conscientiousness},
				{"extraversion", got.Extraversion, tt.want.Extraversion},
				{"agreeableness", got.Agreeableness, tt.want.Agreeableness},
				{"neuroticism", got.Neuroticism, tt.want.Neuroticism},
			}
			for _, c := range checks {
				if !near(c.got, c.want) {
					t.Errorf("%s: got %v, want %v", c.trait, c.got, c.want)
				}
			}
		})
	}
}

func TestInferBigFive_Ranges(t *testing.T) {
	steps := []float64{0, 0.25, 0.5, 0.75, 1}
	for _, j := range steps {
		for _, a := range steps {
			for _, s := range steps {
				for _, f := range steps {
					b := InferBigFive(emotion.Vector{Joy: j, Anger: a, Surprise: s, Sadness: 1 - s, Fear: f})
					for _, x := range []float64{b.Openness, b.Extraversion, b.Agreeableness, b.Neuroticism} {
						if x < 0 || x > 1+eps {
							t.Fatalf("trait out of [0,1]: %+v", b)
						}
					}
					if b.Conscientiousness < 0.2 || b.Conscientiousness > 1 {
						t.Fatalf("conscientiousness out of [0.2,1]: %v", b.Conscientiousness)
					}
				}
			}
		}
	}
}

func TestBigFive_String(t *testing.T) {
	b := BigFive{Openness: 0.304, Conscientiousness: 1, Extraversion: 0.257, Agreeableness: 0.8, Neuroticism: 0.06}
	want := "O=0.30 C=1.00 E=0.26 A=0.80 N=0.06"
	if got := b.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTendency(t *testing.T) {
	tests := map[string]string{
		"Joy":           "Tendency toward happiness",
		"Anger":         "Tendency toward irritability",
		"Surprise":      "Tendency toward surprise",
		"Sadness":       "Tendency toward melancholy",
		"Fear":          "Tendency toward fear",
		emotion.Neutral: "Balanced personality",
		"":              "Balanced personality",
	}
	for in, want := range tests {
		if got := Tendency(in); got != want {
			t.Errorf("Tendency(%q) = %q, want %q", in, got, want)
		}
	}
}
