package layout

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in layout names.
const (
	QwertyEnUS = "qwerty-en-us"
	QwertzDeDE = "qwertz-de-de"
)

// rawKey is the compact table form of a key: row 1-4 from the number row
// down, finger 1-8 from the left ring finger to the right ring finger.
type rawKey struct {
	x, y   int
	row    int
	finger int
	home   bool
}

func (r rawKey) key() Key {
	k := Key{X: r.x, Y: r.y, Row: Row(r.row - 1), Home: r.home}
	if r.finger > 4 {
		k.Hand = Right
		k.Finger = Finger(FingerCount - r.finger)
	} else {
		k.Hand = Left
		k.Finger = Finger(r.finger - 1)
	}
	return k
}

// Rows share one geometry across the ANSI and ISO boards; the ISO board
// adds one key at the end of the home row and one at the start of the
// bottom row.
var (
	numberRowKeys = []rawKey{
		{2, 18, 1, 1, false}, {6, 18, 1, 1, false}, {10, 18, 1, 1, false},
		{14, 18, 1, 2, false}, {18, 18, 1, 3, false}, {22, 18, 1, 4, false},
		{26, 18, 1, 4, false}, {30, 18, 1, 5, false}, {34, 18, 1, 6, false},
		{38, 18, 1, 7, false}, {42, 18, 1, 8, false}, {46, 18, 1, 8, false},
		{50, 18, 1, 8, false},
	}
	topRowKeys = []rawKey{
		{8, 14, 2, 1, false}, {12, 14, 2, 2, false}, {16, 14, 2, 3, false},
		{20, 14, 2, 4, false}, {24, 14, 2, 4, false}, {28, 14, 2, 5, false},
		{32, 14, 2, 5, false}, {36, 14, 2, 6, false}, {40, 14, 2, 7, false},
		{44, 14, 2, 8, false}, {48, 14, 2, 8, false}, {52, 14, 2, 8, false},
	}
	homeRowKeys = []rawKey{
		{9, 10, 3, 1, true}, {13, 10, 3, 2, true}, {17, 10, 3, 3, true},
		{21, 10, 3, 4, true}, {25, 10, 3, 4, false}, {29, 10, 3, 5, false},
		{33, 10, 3, 5, true}, {37, 10, 3, 6, true}, {41, 10, 3, 7, true},
		{45, 10, 3, 8, true}, {49, 10, 3, 8, false},
	}
	bottomRowKeys = []rawKey{
		{11, 6, 4, 1, false}, {15, 6, 4, 2, false}, {19, 6, 4, 3, false},
		{23, 6, 4, 4, false}, {27, 6, 4, 4, false}, {31, 6, 4, 5, false},
		{35, 6, 4, 5, false}, {39, 6, 4, 6, false}, {43, 6, 4, 7, false},
		{47, 6, 4, 8, false},
	}
	isoHomeRowExtra     = rawKey{53, 10, 3, 8, false}
	isoBottomRowLeading = rawKey{7, 6, 4, 1, false}
)

func ansiKeys() []Key {
	return collectKeys(numberRowKeys, topRowKeys, homeRowKeys, bottomRowKeys)
}

func isoKeys() []Key {
	home := append(append([]rawKey(nil), homeRowKeys...), isoHomeRowExtra)
	bottom := append([]rawKey{isoBottomRowLeading}, bottomRowKeys...)
	return collectKeys(numberRowKeys, topRowKeys, home, bottom)
}

func collectKeys(rows ...[]rawKey) []Key {
	var keys []Key
	for _, row := range rows {
		for _, r := range row {
			keys = append(keys, r.key())
		}
	}
	return keys
}

// alias maps an extra character onto a canonical letter.
type alias struct {
	char   rune
	letter rune
	shift  bool
}

var (
	qwertyLetters = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789~-+[];'<>?")
	qwertzLetters = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789^ß´ÜÖÄ+#<,.-")

	// Canonical letters that are the shifted glyph of their key.
	qwertyShifted = "~+<>?"
	qwertzShifted = ""

	qwertyAliases = []alias{
		{'`', '~', false}, {'!', '1', true}, {'@', '2', true}, {'#', '3', true},
		{'$', '4', true}, {'%', '5', true}, {'^', '6', true}, {'&', '7', true},
		{'*', '8', true}, {'(', '9', true}, {')', '0', true}, {'_', '-', true},
		{'=', '+', false}, {'{', '[', true}, {'}', ']', true}, {':', ';', true},
		{'"', '\'', true}, {',', '<', false}, {'.', '>', false}, {'/', '?', false},
	}
	qwertzAliases = []alias{
		{'°', '^', true}, {'!', '1', true}, {'"', '2', true}, {'§', '3', true},
		{'$', '4', true}, {'%', '5', true}, {'&', '6', true}, {'/', '7', true},
		{'(', '8', true}, {')', '9', true}, {'=', '0', true}, {'?', 'ß', true},
		{'ẞ', 'ß', false}, {'`', '´', true}, {'*', '+', true}, {'\'', '#', true},
		{'>', '<', true}, {';', ',', true}, {':', '.', true}, {'_', '-', true},
	}

	qwertyReferences = map[string]string{
		"qwerty": "~1234567890-+QWERTYUIOP[]ASDFGHJKL;'ZXCVBNM<>?",
		"abc":    "~1234567890-+ABCDEFGHIJ[]KLMNOPQRS;'TUVWXYZ<>?",
		"dvorak": "~1234567890[]'<>PYFGCRL?+AOEUIDHTNS-;QJKXBMWVZ",
	}
	qwertzReferences = map[string]string{
		"qwertz": "^1234567890ß´QWERTZUIOPÜ+ASDFGHJKLÖÄ#<YXCVBNM,.-",
	}
)

// keyMapFor maps every canonical letter to itself and adds the aliases.
func keyMapFor(letters []rune, shifted string, aliases []alias) map[rune]KeyRef {
	km := make(map[rune]KeyRef, len(letters)+len(aliases))
	index := make(map[rune]int, len(letters))
	for i, r := range letters {
		index[r] = i + 1
		km[r] = KeyRef{Key: i + 1, Shift: strings.ContainsRune(shifted, r)}
	}
	for _, a := range aliases {
		km[a.char] = KeyRef{Key: index[a.letter], Shift: a.shift}
	}
	return km
}

func references(src map[string]string) map[string]Genome {
	refs := make(map[string]Genome, len(src))
	for name, s := range src {
		refs[name] = ParseGenome(s)
	}
	return refs
}

var builtins = map[string]func() (*Spec, error){
	QwertyEnUS: func() (*Spec, error) {
		return NewSpec(QwertyEnUS, ansiKeys(), qwertyLetters,
			keyMapFor(qwertyLetters, qwertyShifted, qwertyAliases), references(qwertyReferences))
	},
	QwertzDeDE: func() (*Spec, error) {
		return NewSpec(QwertzDeDE, isoKeys(), qwertzLetters,
			keyMapFor(qwertzLetters, qwertzShifted, qwertzAliases), references(qwertzReferences))
	},
}

// Builtin returns a built-in layout by name.
func Builtin(name string) (*Spec, error) {
	build, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown layout %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return build()
}

// BuiltinNames lists the built-in layouts.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultReference returns the reference genome a layout is usually
// compared against.
func DefaultReference(s *Spec) string {
	names := s.ReferenceNames()
	for _, preferred := range []string{"qwerty", "qwertz"} {
		if _, ok := s.References[preferred]; ok {
			return preferred
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}
