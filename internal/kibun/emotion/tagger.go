package emotion

import (
	"context"
	"log/slog"
)

// Tagger scores a piece of free text against the five emotion labels.
// Implementations must be safe for concurrent use.
type Tagger interface {
	Tag(ctx context.Context, text string) (Vector, error)
}

// TaggerFunc adapts a plain function to the Tagger interface.
type TaggerFunc func(ctx context.Context, text string) (Vector, error)

// Tag calls f.
func (f TaggerFunc) Tag(ctx context.Context, text string) (Vector, error) {
	return f(ctx, text)
}

// TagOrZero runs t over text and never fails: a tagger error is logged and
// replaced by the all-zero vector. The returned vector is always clamped.
func TagOrZero(ctx context.Context, t Tagger, text string) Vector {
	if t == nil {
		return Vector{}
	}
	v, err := t.Tag(ctx, text)
	if err != nil {
		slog.Warn("emotion: tagger failed, using zero vector", "err", err, "text_len", len(text))
		return Vector{}
	}
	return v.Clamp()
}
