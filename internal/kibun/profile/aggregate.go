// Package profile derives a user's personality profile from their diary:
// a recency-weighted emotion average, heuristic Big Five scores, a tendency
// label, and an enneagram-style classification obtained from the generation
// backend.
package profile

import (
	"errors"
	"sort"
	"time"

	"github.com/bdobrica/Kibun/internal/kibun/diary"
	"github.com/bdobrica/Kibun/internal/kibun/emotion"
)

// ErrInsufficientData means there is no usable diary history to aggregate.
// Callers must not derive traits or a classification from it.
var ErrInsufficientData = errors.New("profile: not enough diary history")

// decayDays is the distance, in days, at which an entry's weight halves.
const decayDays = 7.0

// Weight returns the recency weight for an entry days old: 1 today,
// 1/2 after a week, 1/3 after two, never reaching 0. Negative ages (entries
// dated after the reference day) are treated as today.
func Weight(days float64) float64 {
	if days < 0 {
		days = 0
	}
	return 1 / (1 + days/decayDays)
}

// DaysBetween counts whole calendar days from date to asOf.
func DaysBetween(date, asOf time.Time) float64 {
	return diary.Day(asOf).Sub(diary.Day(date)).Hours() / 24
}

// Aggregate folds entries into one recency-weighted average vector as of
// asOf, returning the vector and the total weight. Entries with a zero date
// are skipped. The input slice is not modified; terms are summed oldest
// first so results are reproducible.
func Aggregate(entries []diary.Entry, asOf time.Time) (emotion.Vector, float64, error) {
	usable := make([]diary.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Date.IsZero() {
			usable = append(usable, e)
		}
	}
	if len(usable) == 0 {
		return emotion.Vector{}, 0, ErrInsufficientData
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Date.Before(usable[j].Date)
	})

	var sums [len(emotion.Labels)]float64
	total := 0.0
	for _, e := range usable {
		w := Weight(DaysBetween(e.Date, asOf))
		total += w
		for i, l := range emotion.Labels {
			sums[i] += e.Emotions.Get(l) * w
		}
	}
	if total == 0 {
		return emotion.Vector{}, 0, ErrInsufficientData
	}

	var avg emotion.Vector
	for i, l := range emotion.Labels {
		avg = avg.With(l, sums[i]/total)
	}
	return avg, total, nil
}
