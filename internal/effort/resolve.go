package effort

import (
	"errors"
	"unicode"

	"github.com/verte-zerg/keyopt/internal/layout"
)

// ErrNoKeys is returned when a corpus contains no typable characters.
var ErrNoKeys = errors.New("corpus has no typable characters")

// Resolver turns corpus characters into 0-based letter list indices.
type Resolver struct {
	keyMap map[rune]layout.KeyRef
}

// NewResolver builds a resolver over the layout's key map.
func NewResolver(spec *layout.Spec) *Resolver {
	return &Resolver{keyMap: spec.KeyMap}
}

// Resolve uppercases r and looks it up. Characters outside the key map
// are not typable.
func (r *Resolver) Resolve(c rune) (int, bool) {
	ref, ok := r.keyMap[unicode.ToUpper(c)]
	if !ok {
		// Lowercase-only glyphs such as ß have no distinct upper form in the map.
		ref, ok = r.keyMap[c]
		if !ok {
			return 0, false
		}
	}
	return ref.Key - 1, true
}

// ResolveText resolves every character of text in order, dropping the
// untypable ones.
func (r *Resolver) ResolveText(text string) []int {
	keys := make([]int, 0, len(text))
	for _, c := range text {
		if k, ok := r.Resolve(c); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Keys resolves text and fails when nothing is typable.
func (r *Resolver) Keys(text string) ([]int, error) {
	keys := r.ResolveText(text)
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return keys, nil
}
