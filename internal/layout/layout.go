// Package layout describes physical keyboards: key positions, finger
// assignment, the canonical letter list and the character key map.
package layout

import (
	"errors"
	"fmt"
	"sort"
)

// FingerCount is the number of fingers tracked by the effort model.
const FingerCount = 8

// RowCount is the number of key rows.
const RowCount = 4

var (
	// ErrLengthMismatch is returned when keys, letters or a genome disagree in size.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrNotPermutation is returned when a genome is not a permutation of the letter list.
	ErrNotPermutation = errors.New("genome is not a permutation of the letter list")
)

// Hand is the hand operating a key.
type Hand int

const (
	Left Hand = iota
	Right
)

func (h Hand) String() string {
	if h == Right {
		return "right"
	}
	return "left"
}

// Finger is a finger of one hand.
type Finger int

const (
	Ring Finger = iota
	Middle
	Index
	Thumb
)

func (f Finger) String() string {
	switch f {
	case Ring:
		return "ring"
	case Middle:
		return "middle"
	case Index:
		return "index"
	case Thumb:
		return "thumb"
	default:
		return fmt.Sprintf("finger(%d)", int(f))
	}
}

// Row is a key row, ordered from the number row down.
type Row int

const (
	NumberRow Row = iota
	TopRow
	MiddleRow
	BottomRow
)

// Key is one physical key slot. Coordinates are in quarter-key units: a
// key is 4 wide and rows are 4 apart. The effort model's distance term
// grows with this unit while the finger and double-finger terms do not,
// so effort weights are tuned against quarter-key distances.
type Key struct {
	X      int
	Y      int
	Row    Row
	Hand   Hand
	Finger Finger
	Home   bool
}

// FingerID maps hand and finger to 0-7: left ring..thumb are 0-3, right
// thumb..ring are 4-7.
func (k Key) FingerID() int {
	return FingerID(k.Hand, k.Finger)
}

// FingerID maps hand and finger to 0-7.
func FingerID(h Hand, f Finger) int {
	if h == Right {
		return FingerCount - 1 - int(f)
	}
	return int(f)
}

// KeyRef is a key map entry: a 1-based index into the letter list and the
// shift state needed to produce the character.
type KeyRef struct {
	Key   int
	Shift bool
}

// Spec is an immutable physical layout together with its letter list, key
// map and named reference genomes.
type Spec struct {
	Name       string
	Keys       []Key
	Letters    []rune
	KeyMap     map[rune]KeyRef
	References map[string]Genome

	letterIndex map[rune]int
	homes       [FingerCount]int
}

// NewSpec validates the parts of a layout and builds a Spec.
func NewSpec(name string, keys []Key, letters []rune, keyMap map[rune]KeyRef, refs map[string]Genome) (*Spec, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("layout %q has no keys", name)
	}
	if len(keys) != len(letters) {
		return nil, fmt.Errorf("layout %q: %d keys but %d letters: %w", name, len(keys), len(letters), ErrLengthMismatch)
	}
	s := &Spec{
		Name:        name,
		Keys:        append([]Key(nil), keys...),
		Letters:     append([]rune(nil), letters...),
		KeyMap:      make(map[rune]KeyRef, len(keyMap)),
		References:  make(map[string]Genome, len(refs)),
		letterIndex: make(map[rune]int, len(letters)),
	}
	for i, r := range letters {
		if _, dup := s.letterIndex[r]; dup {
			return nil, fmt.Errorf("layout %q: duplicate letter %q", name, r)
		}
		s.letterIndex[r] = i
	}

	for i := range s.homes {
		s.homes[i] = -1
	}
	for slot, k := range keys {
		if k.Row < NumberRow || k.Row > BottomRow {
			return nil, fmt.Errorf("layout %q: key %d has invalid row %d", name, slot, k.Row)
		}
		if k.Finger < Ring || k.Finger > Thumb || (k.Hand != Left && k.Hand != Right) {
			return nil, fmt.Errorf("layout %q: key %d has invalid finger assignment", name, slot)
		}
		if !k.Home {
			continue
		}
		id := k.FingerID()
		if s.homes[id] >= 0 {
			return nil, fmt.Errorf("layout %q: finger %d has more than one home key", name, id)
		}
		s.homes[id] = slot
	}
	for id, slot := range s.homes {
		if slot < 0 {
			return nil, fmt.Errorf("layout %q: finger %d has no home key", name, id)
		}
	}

	for r, ref := range keyMap {
		if ref.Key < 1 || ref.Key > len(letters) {
			return nil, fmt.Errorf("layout %q: key map entry %q points to key %d outside 1..%d", name, r, ref.Key, len(letters))
		}
		s.KeyMap[r] = ref
	}

	for refName, g := range refs {
		if err := s.ValidateGenome(g); err != nil {
			return nil, fmt.Errorf("layout %q: reference %q: %w", name, refName, err)
		}
		s.References[refName] = g.Clone()
	}
	return s, nil
}

// Size returns the number of key slots.
func (s *Spec) Size() int {
	return len(s.Keys)
}

// LetterIndex returns the 0-based position of r in the letter list.
func (s *Spec) LetterIndex(r rune) (int, bool) {
	i, ok := s.letterIndex[r]
	return i, ok
}

// HomeKey returns the home slot of a finger id.
func (s *Spec) HomeKey(fingerID int) Key {
	return s.Keys[s.homes[fingerID]]
}

// Reference returns a copy of a named reference genome.
func (s *Spec) Reference(name string) (Genome, error) {
	g, ok := s.References[name]
	if !ok {
		return nil, fmt.Errorf("layout %q has no reference %q (available: %v)", s.Name, name, s.ReferenceNames())
	}
	return g.Clone(), nil
}

// ReferenceNames lists the reference genomes in name order.
func (s *Spec) ReferenceNames() []string {
	names := make([]string, 0, len(s.References))
	for name := range s.References {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateGenome checks that g has one slot per key and is a permutation
// of the letter list.
func (s *Spec) ValidateGenome(g Genome) error {
	if len(g) != len(s.Letters) {
		return fmt.Errorf("genome has %d characters, layout has %d keys: %w", len(g), len(s.Letters), ErrLengthMismatch)
	}
	if !g.IsPermutationOf(s.Letters) {
		return ErrNotPermutation
	}
	return nil
}
