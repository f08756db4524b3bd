// Package extract finds a single likely coupon code in free text.
//
// Extraction is an ordered cascade of independent matchers. Each matcher is a
// pure function (text -> optional token); the first one that yields a token
// wins, so the high precision label-anchored matcher always runs before the
// shape-based fallback. The extractor never returns more than one code.
package extract

import (
	"strings"

	"golang.org/x/text/width"
)

// Tier identifies which matcher produced a code.
type Tier int

const (
	TierNone Tier = iota
	// TierLabel: token anchored on an explicit label such as "code:" or "クーポン".
	TierLabel
	// TierShape: uppercase alphanumeric run that survived the stoplist.
	TierShape
)

func (t Tier) String() string {
	switch t {
	case TierLabel:
		return "label"
	case TierShape:
		return "shape"
	default:
		return "none"
	}
}

// Result is the outcome of one extraction. The zero value means "no code".
type Result struct {
	Code string
	Tier Tier
}

func (r Result) Found() bool { return r.Code != "" }

// MatchFunc returns the first plausible token in text.
type MatchFunc func(text string) (string, bool)

// Matcher is one strategy of the cascade.
type Matcher struct {
	Tier  Tier
	Match MatchFunc
}

// Options tunes the shape matcher.
type Options struct {
	// RequireMixed requires at least one letter and one digit in a shape match.
	RequireMixed bool
	// Stoplist is added to DefaultFamilies: each entry is rejected on its own
	// and followed by a model number.
	Stoplist []string
}

// Extractor runs the matcher cascade. It is immutable and safe for concurrent use.
type Extractor struct {
	matchers []Matcher
}

// New builds the default two-tier cascade.
func New(opts Options) *Extractor {
	stop := NewStoplist(DefaultStoplist, append(append([]string(nil), DefaultFamilies...), opts.Stoplist...))
	return NewWith(
		Matcher{Tier: TierLabel, Match: MatchLabel},
		Matcher{Tier: TierShape, Match: ShapeMatcher(opts.RequireMixed, stop)},
	)
}

// NewWith builds an extractor from an explicit cascade, evaluated in order.
func NewWith(matchers ...Matcher) *Extractor {
	return &Extractor{matchers: append([]Matcher(nil), matchers...)}
}

// Extract returns the first code found by the cascade, or a zero Result.
func (e *Extractor) Extract(text string) Result {
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return Result{}
	}
	for _, m := range e.matchers {
		if m.Match == nil {
			continue
		}
		if code, ok := m.Match(text); ok {
			return Result{Code: code, Tier: m.Tier}
		}
	}
	return Result{}
}

// Normalize folds full-width ASCII (ＡＢＣ１２３, ：) to its narrow form so
// Japanese text written with full-width codes matches the ASCII patterns.
func Normalize(text string) string {
	return width.Fold.String(text)
}
