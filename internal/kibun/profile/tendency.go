package profile

import "github.com/bdobrica/Kibun/internal/kibun/emotion"

// balancedTendency describes a profile without a dominant emotion.
const balancedTendency = "Balanced personality"

var tendencies = map[string]string{
	string(emotion.Joy):      "Tendency toward happiness",
	string(emotion.Anger):    "Tendency toward irritability",
	string(emotion.Surprise): "Tendency toward surprise",
	string(emotion.Sadness):  "Tendency toward melancholy",
	string(emotion.Fear):     "Tendency toward fear",
}

// Tendency names the trend implied by a dominant emotion label.
func Tendency(dominant string) string {
	if t, ok := tendencies[dominant]; ok {
		return t
	}
	return balancedTendency
}
