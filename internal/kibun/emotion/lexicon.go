package emotion

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon is an offline word-list tagger. Each label's score is its share of
// all matched words, so a vector with any signal sums to 1 and a text with no
// matches yields the zero vector.
type Lexicon struct {
	exact  map[string]Label
	prefix []prefixRule
}

type prefixRule struct {
	stem  string
	label Label
}

// Compile-time assertion that Lexicon satisfies Tagger.
var _ Tagger = (*Lexicon)(nil)

// DefaultLexicon returns the lexicon embedded in the binary.
func DefaultLexicon() *Lexicon {
	l, err := ParseLexicon(defaultLexicon)
	if err != nil {
		panic(fmt.Sprintf("emotion: embedded lexicon is invalid: %v", err))
	}
	return l
}

// ParseLexicon parses a YAML document mapping label names to word lists.
// A word ending in "*" matches any token with that prefix.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	lex := &Lexicon{exact: make(map[string]Label)}
	for name, words := range raw {
		label, ok := ParseLabel(name)
		if !ok {
			return nil, fmt.Errorf("parse lexicon: unknown label %q", name)
		}
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if stem, ok := strings.CutSuffix(w, "*"); ok {
				lex.prefix = append(lex.prefix, prefixRule{stem: stem, label: label})
				continue
			}
			lex.exact[w] = label
		}
	}
	// Longest stem first so the most specific rule wins deterministically.
	sort.Slice(lex.prefix, func(i, j int) bool {
		a, b := lex.prefix[i], lex.prefix[j]
		if len(a.stem) != len(b.stem) {
			return len(a.stem) > len(b.stem)
		}
		return a.stem < b.stem
	})
	return lex, nil
}

// Tag scores text. It never returns an error.
func (l *Lexicon) Tag(_ context.Context, text string) (Vector, error) {
	counts := make(map[Label]int, len(Labels))
	total := 0
	for _, tok := range tokenize(text) {
		if label, ok := l.match(tok); ok {
			counts[label]++
			total++
		}
	}
	var v Vector
	if total == 0 {
		return v, nil
	}
	for label, n := range counts {
		v = v.With(label, float64(n)/float64(total))
	}
	return v, nil
}

func (l *Lexicon) match(tok string) (Label, bool) {
	if label, ok := l.exact[tok]; ok {
		return label, true
	}
	for _, r := range l.prefix {
		if strings.HasPrefix(tok, r.stem) {
			return r.label, true
		}
	}
	return "", false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
