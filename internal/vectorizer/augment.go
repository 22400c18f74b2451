// Package vectorizer turns labeled text examples into an augmented, padded
// integer corpus with a vocabulary, and featurizes single queries the same way.
package vectorizer

import (
	"math/rand"
	"strings"
	"time"

	"github.com/civicgo/kaiwa/pkg/utils"
)

const dropoutProbability = 0.2

// Vectorizer builds corpora and augmented variants. The random source drives
// augmentation choices; inject a seeded source in tests for determinism.
type Vectorizer struct {
	rng *rand.Rand
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithRand sets the random source used for augmentation.
func WithRand(rng *rand.Rand) Option {
	return func(v *Vectorizer) { v.rng = rng }
}

// New creates a Vectorizer. Without options it is seeded from the clock.
func New(opts ...Option) *Vectorizer {
	v := &Vectorizer{}
	for _, opt := range opts {
		opt(v)
	}
	if v.rng == nil {
		v.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return v
}

// Augment returns the lower-cased pattern plus its typo, word-dropout, and
// synonym variants, deduplicated. The lower-cased original is always first.
func (v *Vectorizer) Augment(pattern string) []string {
	original := strings.ToLower(pattern)
	out := []string{original}
	seen := map[string]bool{original: true}
	for _, variant := range []string{
		v.substitute(original, typoTable),
		v.wordDropout(original),
		v.substitute(original, synonymTable),
	} {
		if !seen[variant] {
			seen[variant] = true
			out = append(out, variant)
		}
	}
	return out
}

// substitute replaces each word present in table with a randomly chosen
// alternative; other words pass through unchanged.
func (v *Vectorizer) substitute(pattern string, table map[string][]string) string {
	words := utils.SplitWords(pattern)
	for i, w := range words {
		if alts, ok := table[strings.ToLower(w)]; ok && len(alts) > 0 {
			words[i] = alts[v.rng.Intn(len(alts))]
		}
	}
	return utils.JoinWords(words)
}

// wordDropout drops each word independently with probability 0.2 and rejoins
// the rest with single spaces. Patterns of two or fewer words are returned
// unchanged. An all-words-dropped result is an empty string, which downstream
// encoding tolerates (it becomes an all-zero sequence).
func (v *Vectorizer) wordDropout(pattern string) string {
	words := utils.SplitWords(pattern)
	if len(words) <= 2 {
		return pattern
	}
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if v.rng.Float64() >= dropoutProbability {
			kept = append(kept, w)
		}
	}
	return utils.JoinWords(kept)
}
