package corpus

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"
)

// DefaultPunctuation is appended to generated words.
var DefaultPunctuation = []rune{'.', ',', ';', ':', '!', '?'}

// Generator produces sample text from a word list. The same seed yields
// the same text.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// GenerateOptions shape generated text.
type GenerateOptions struct {
	Count    int
	CapsPct  float64
	PunctPct float64
	PunctSet []rune
}

// Generate selects words uniformly, applies caps and punctuation rules and
// joins them with spaces.
func (g *Generator) Generate(words []string, opts GenerateOptions) (string, error) {
	if len(words) == 0 {
		return "", fmt.Errorf("word list is empty")
	}
	if opts.Count <= 0 {
		return "", fmt.Errorf("word count must be positive, got %d", opts.Count)
	}
	result := make([]string, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		word := words[g.rnd.Intn(len(words))]
		word = applyCaps(g.rnd, word, opts.CapsPct)
		word = applyPunct(g.rnd, word, opts.PunctPct, opts.PunctSet)
		result = append(result, word)
	}
	return strings.Join(result, " "), nil
}

func applyCaps(rnd *rand.Rand, word string, capsPct float64) string {
	if capsPct <= 0 {
		return word
	}
	if rnd.Float64() > capsPct {
		return word
	}
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func applyPunct(rnd *rand.Rand, word string, punctPct float64, punctSet []rune) string {
	if punctPct <= 0 || len(punctSet) == 0 {
		return word
	}
	if rnd.Float64() > punctPct {
		return word
	}
	punct := punctSet[rnd.Intn(len(punctSet))]
	return word + string(punct)
}
