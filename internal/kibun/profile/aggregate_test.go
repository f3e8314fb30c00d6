package profile

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bdobrica/Kibun/internal/kibun/diary"
	"github.com/bdobrica/Kibun/internal/kibun/emotion"
)

const eps = 1e-9

func day(s string) time.Time {
	d, err := diary.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestWeight(t *testing.T) {
	tests := []struct {
		days float64
		want float64
	}{
		{0, 1},
		{7, 0.5},
		{14, 1.0 / 3},
		{70, 1.0 / 11},
		{-3, 1},
	}
	for _, tt := range tests {
		if got := Weight(tt.days); !near(got, tt.want) {
			t.Errorf("Weight(%v) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestWeight_StrictlyDecreasingAndPositive(t *testing.T) {
	prev := Weight(0)
	for d := 1; d <= 3650; d++ {
		w := Weight(float64(d))
		if w <= 0 || w >= prev {
			t.Fatalf("Weight(%d) = %v, previous %v", d, w, prev)
		}
		prev = w
	}
}

func TestDaysBetween(t *testing.T) {
	asOf := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	if got := DaysBetween(day("2024-03-01"), asOf); got != 14 {
		t.Errorf("got %v, want 14", got)
	}
	if got := DaysBetween(day("2024-03-15"), asOf); got != 0 {
		t.Errorf("same day: got %v, want 0", got)
	}
}

func TestAggregate_RecencyWeighting(t *testing.T) {
	asOf := day("2024-03-15")
	entries := []diary.Entry{
		{UserID: "u", Date: day("2024-03-15"), Emotions: emotion.Vector{Joy: 0.8}},
		{UserID: "u", Date: day("2024-03-01"), Emotions: emotion.Vector{Sadness: 0.8}},
	}

	avg, total, err := Aggregate(entries, asOf)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	// Weights 1 and 1/3: joy 0.8/(4/3) = 0.6, sadness (0.8/3)/(4/3) = 0.2.
	if !near(total, 4.0/3) {
		t.Errorf("total: got %v, want %v", total, 4.0/3)
	}
	if !near(avg.Joy, 0.6) || !near(avg.Sadness, 0.2) {
		t.Errorf("avg: got %s, want Joy=0.60 Sadness=0.20", avg)
	}
	if avg.Dominant() != string(emotion.Joy) {
		t.Errorf("dominant: got %q, want Joy", avg.Dominant())
	}
}

func TestAggregate_SingleEntryToday(t *testing.T) {
	v := emotion.Vector{Joy: 0.1, Anger: 0.2, Surprise: 0.3, Sadness: 0.4, Fear: 0.5}
	avg, total, err := Aggregate([]diary.Entry{{Date: day("2024-05-05"), Emotions: v}}, day("2024-05-05"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if total != 1 {
		t.Errorf("total: got %v, want 1", total)
	}
	for _, l := range emotion.Labels {
		if !near(avg.Get(l), v.Get(l)) {
			t.Errorf("%s: got %v, want %v", l, avg.Get(l), v.Get(l))
		}
	}
}

func TestAggregate_InsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		entries []diary.Entry
	}{
		{name: "nil", entries: nil},
		{name: "empty", entries: []diary.Entry{}},
		{name: "only undated", entries: []diary.Entry{{Text: "x", Emotions: emotion.Vector{Joy: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Aggregate(tt.entries, day("2024-01-01"))
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("got %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestAggregate_SkipsUndatedEntries(t *testing.T) {
	entries := []diary.Entry{
		{Emotions: emotion.Vector{Anger: 1}},
		{Date: day("2024-01-01"), Emotions: emotion.Vector{Joy: 0.4}},
	}
	avg, _, err := Aggregate(entries, day("2024-01-01"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if avg.Anger != 0 || !near(avg.Joy, 0.4) {
		t.Errorf("got %s", avg)
	}
}

func TestAggregate_FutureEntryWeighsAsToday(t *testing.T) {
	entries := []diary.Entry{{Date: day("2024-02-10"), Emotions: emotion.Vector{Fear: 0.5}}}
	_, total, err := Aggregate(entries, day("2024-02-01"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if total != 1 {
		t.Errorf("total: got %v, want 1", total)
	}
}

func TestAggregate_OrderIndependentAndNonMutating(t *testing.T) {
	a := diary.Entry{Date: day("2024-01-03"), Emotions: emotion.Vector{Joy: 0.9, Fear: 0.1}}
	b := diary.Entry{Date: day("2024-01-01"), Emotions: emotion.Vector{Anger: 0.7}}
	c := diary.Entry{Date: day("2023-12-20"), Emotions: emotion.Vector{Sadness: 0.3, Surprise: 0.6}}
	asOf := day("2024-01-05")

	in := []diary.Entry{a, b, c}
	got1, total1, err := Aggregate(in, asOf)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if in[0].Date != a.Date || in[1].Date != b.Date || in[2].Date != c.Date {
		t.Error("input slice was reordered")
	}

	got2, total2, err := Aggregate([]diary.Entry{c, a, b}, asOf)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got1 != got2 || total1 != total2 {
		t.Errorf("order dependent: %s (%v) vs %s (%v)", got1, total1, got2, total2)
	}
}

func TestAggregate_StaysInRange(t *testing.T) {
	var entries []diary.Entry
	for i := 0; i < 30; i++ {
		entries = append(entries, diary.Entry{
			Date:     day("2024-01-01").AddDate(0, 0, i),
			Emotions: emotion.Vector{Joy: 1, Anger: 1, Surprise: 1, Sadness: 1, Fear: 1},
		})
	}
	avg, _, err := Aggregate(entries, day("2024-02-15"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for _, l := range emotion.Labels {
		if x := avg.Get(l); x < 0 || x > 1+eps {
			t.Errorf("%s out of range: %v", l, x)
		}
	}
}
