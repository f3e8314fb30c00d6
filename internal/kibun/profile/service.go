package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bdobrica/Kibun/common/trace"
	"github.com/bdobrica/Kibun/internal/kibun/diary"
	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/prompts"
)

// Profile is the derived personality profile of one user.
type Profile struct {
	UserID             string         `json:"user_id"`
	AverageEmotions    emotion.Vector `json:"average_emotions"`
	TotalWeight        float64        `json:"total_weight"`
	BigFive            BigFive        `json:"big_five"`
	DominantEmotion    string         `json:"dominant_emotion"`
	Tendency           string         `json:"tendency"`
	Classification     Classification `json:"classification"`
	ClassificationText string         `json:"classification_text"`
	EntryCount         int            `json:"entry_count"`
	AsOf               time.Time      `json:"as_of"`
}

// Summary renders the profile as one line for a chat system prompt.
func (p Profile) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dominant trend %s (%s); Big Five %s", p.DominantEmotion, p.Tendency, p.BigFive)
	if p.Classification.EnneagramType != "" {
		fmt.Fprintf(&b, "; personality type %s", p.Classification.EnneagramType)
	}
	return b.String()
}

// EntryLister reads a user's diary, oldest first. *diary.Service satisfies it.
type EntryLister interface {
	List(ctx context.Context, userID string) ([]diary.Entry, error)
}

// Config tunes a Service.
type Config struct {
	// CacheTTL is how long a computed profile stays cached. Cache keys
	// include the entry count and latest modification time, so edits
	// invalidate immediately. Defaults to 30 minutes.
	CacheTTL time.Duration

	// Now overrides the clock used for the as-of day.
	Now func() time.Time
}

const (
	defaultCacheTTL     = 30 * time.Minute
	cacheCleanupDivisor = 3
)

// Service computes profiles and objectives. The generator is optional;
// without one the classification stays empty and objectives come from
// rules.
type Service struct {
	entries EntryLister
	gen     llm.Generator
	prompts *prompts.Registry
	cache   *cache.Cache
	now     func() time.Time
}

// NewService returns a Service. reg defaults to prompts.Default().
func NewService(entries EntryLister, gen llm.Generator, reg *prompts.Registry, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if reg == nil {
		reg = prompts.Default()
	}
	return &Service{
		entries: entries,
		gen:     gen,
		prompts: reg,
		cache:   cache.New(cfg.CacheTTL, cfg.CacheTTL/cacheCleanupDivisor),
		now:     cfg.Now,
	}
}

// Profile returns the profile of userID as of today. It fails with
// ErrInsufficientData when the user has no usable entries. A failed
// classification leaves Classification empty and is never an error.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	entries, err := s.entries.List(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: load diary: %w", err)
	}
	asOf := diary.Day(s.now())

	key := cacheKey("profile", userID, asOf, entries)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(Profile), nil
	}

	p, err := s.derive(userID, entries, asOf)
	if err != nil {
		return Profile{}, err
	}

	raw, c, err := s.classify(ctx, entries)
	if err != nil {
		trace.Logger(ctx).Warn("profile: classification unavailable, continuing without it",
			"err", err, "user_id", userID)
	}
	p.ClassificationText = raw
	p.Classification = c

	// A degraded profile is not cached so the next request retries the
	// classification.
	if err == nil {
		s.cache.Set(key, p, cache.DefaultExpiration)
	}
	return p, nil
}

// Objectives returns up to five personal goals for userID. Goals come from
// the generator when possible and from RuleBasedObjectives otherwise.
func (s *Service) Objectives(ctx context.Context, userID string) (Objectives, error) {
	entries, err := s.entries.List(ctx, userID)
	if err != nil {
		return Objectives{}, fmt.Errorf("profile: load diary: %w", err)
	}
	asOf := diary.Day(s.now())

	key := cacheKey("objectives", userID, asOf, entries)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(Objectives), nil
	}

	p, err := s.derive(userID, entries, asOf)
	if err != nil {
		return Objectives{}, err
	}

	if s.gen != nil {
		goals, err := s.generateObjectives(ctx, entries)
		if err == nil {
			out := Objectives{Goals: goals, Source: SourceGenerated}
			s.cache.Set(key, out, cache.DefaultExpiration)
			return out, nil
		}
		trace.Logger(ctx).Warn("profile: generated objectives unavailable, using rules",
			"err", err, "user_id", userID)
	}
	return Objectives{Goals: RuleBasedObjectives(p.BigFive, p.AverageEmotions), Source: SourceRules}, nil
}

// derive computes everything that does not need the generator.
func (s *Service) derive(userID string, entries []diary.Entry, asOf time.Time) (Profile, error) {
	avg, total, err := Aggregate(entries, asOf)
	if err != nil {
		return Profile{}, err
	}
	dominant := avg.Dominant()
	return Profile{
		UserID:          userID,
		AverageEmotions: avg,
		TotalWeight:     total,
		BigFive:         InferBigFive(avg),
		DominantEmotion: dominant,
		Tendency:        Tendency(dominant),
		EntryCount:      len(entries),
		AsOf:            asOf,
	}, nil
}

// classify asks the generator for a personality type. Without a generator
// the classification is simply empty, which is not a failure.
func (s *Service) classify(ctx context.Context, entries []diary.Entry) (string, Classification, error) {
	if s.gen == nil {
		return "", Classification{}, nil
	}
	prompt, err := s.prompts.Render(prompts.Classification, prompts.EntriesData{
		Entries: BuildClassificationRequest(entries),
	})
	if err != nil {
		return "", Classification{}, err
	}
	raw, err := s.gen.Generate(ctx, []llm.Message{{Role: llm.RoleSystem, Content: prompt}},
		llm.WithSchema(classificationSchema))
	if err != nil {
		return "", Classification{}, err
	}
	stripped := llm.StripCodeFences(raw)
	c, err := ParseClassification(stripped)
	return stripped, c, err
}

func (s *Service) generateObjectives(ctx context.Context, entries []diary.Entry) ([]string, error) {
	prompt, err := s.prompts.Render(prompts.Objectives, prompts.EntriesData{
		Entries: BuildClassificationRequest(entries),
	})
	if err != nil {
		return nil, err
	}
	raw, err := s.gen.Generate(ctx, []llm.Message{{Role: llm.RoleSystem, Content: prompt}},
		llm.WithSchema(objectivesSchema))
	if err != nil {
		return nil, err
	}
	return parseObjectives(raw)
}

// cacheKey changes whenever an entry is added or modified, and at midnight
// UTC when recency weights shift.
func cacheKey(kind, userID string, asOf time.Time, entries []diary.Entry) string {
	var latest time.Time
	for _, e := range entries {
		if e.LastModified.After(latest) {
			latest = e.LastModified
		}
	}
	return fmt.Sprintf("%s|%s|%s|%d|%d", kind, userID, asOf.Format(diary.DateLayout), len(entries), latest.UnixNano())
}
