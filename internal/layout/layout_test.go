package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinLayouts(t *testing.T) {
	cases := []struct {
		name string
		size int
		ref  string
	}{
		{QwertyEnUS, 46, "qwerty"},
		{QwertzDeDE, 48, "qwertz"},
	}
	for _, tc := range cases {
		spec, err := Builtin(tc.name)
		if err != nil {
			t.Fatalf("Builtin(%q): %v", tc.name, err)
		}
		if spec.Size() != tc.size {
			t.Fatalf("%s: expected %d keys, got %d", tc.name, tc.size, spec.Size())
		}
		if got := DefaultReference(spec); got != tc.ref {
			t.Fatalf("%s: expected default reference %q, got %q", tc.name, tc.ref, got)
		}
		for id := 0; id < FingerCount; id++ {
			if !spec.HomeKey(id).Home || spec.HomeKey(id).FingerID() != id {
				t.Fatalf("%s: bad home key for finger %d", tc.name, id)
			}
		}
	}
}

func TestBuiltinUnknown(t *testing.T) {
	if _, err := Builtin("colemak"); err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}

func TestQwertyHomeRowPlacement(t *testing.T) {
	spec, err := Builtin(QwertyEnUS)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	qwerty, err := spec.Reference("qwerty")
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	want := map[int]rune{0: 'A', 1: 'S', 2: 'D', 3: 'F', 4: 'J', 5: 'K', 6: 'L', 7: ';'}
	for slot, k := range spec.Keys {
		if !k.Home {
			continue
		}
		if qwerty[slot] != want[k.FingerID()] {
			t.Fatalf("finger %d home holds %q, want %q", k.FingerID(), qwerty[slot], want[k.FingerID()])
		}
	}
}

func TestKeyCoordinatesInQuarterUnits(t *testing.T) {
	for _, name := range []string{QwertyEnUS, QwertzDeDE} {
		spec, err := Builtin(name)
		if err != nil {
			t.Fatalf("Builtin(%q): %v", name, err)
		}
		ring, middle := spec.HomeKey(0), spec.HomeKey(1)
		if middle.X-ring.X != 4 || middle.Y != ring.Y {
			t.Fatalf("%s: adjacent home keys at (%d,%d) and (%d,%d), want 4 apart", name, ring.X, ring.Y, middle.X, middle.Y)
		}
		for _, k := range spec.Keys {
			if k.Row == TopRow && k.Y-ring.Y != 4 {
				t.Fatalf("%s: top row at y=%d, home row at y=%d, want 4 apart", name, k.Y, ring.Y)
			}
		}
	}
}

func TestFingerID(t *testing.T) {
	cases := []struct {
		hand   Hand
		finger Finger
		want   int
	}{
		{Left, Ring, 0},
		{Left, Thumb, 3},
		{Right, Thumb, 4},
		{Right, Index, 5},
		{Right, Ring, 7},
	}
	for _, tc := range cases {
		if got := FingerID(tc.hand, tc.finger); got != tc.want {
			t.Fatalf("FingerID(%v, %v) = %d, want %d", tc.hand, tc.finger, got, tc.want)
		}
	}
}

func TestKeyMapAliases(t *testing.T) {
	spec, err := Builtin(QwertyEnUS)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	comma, ok := spec.KeyMap[',']
	if !ok {
		t.Fatalf("expected ',' in key map")
	}
	if spec.Letters[comma.Key-1] != '<' || comma.Shift {
		t.Fatalf("expected ',' on the unshifted '<' key, got %+v", comma)
	}
	bang := spec.KeyMap['!']
	if spec.Letters[bang.Key-1] != '1' || !bang.Shift {
		t.Fatalf("expected '!' as shifted '1', got %+v", bang)
	}
	if _, ok := spec.KeyMap[' ']; ok {
		t.Fatalf("space must not be typable")
	}
}

func TestValidateGenome(t *testing.T) {
	spec, err := Builtin(QwertyEnUS)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	g, _ := spec.Reference("dvorak")
	if err := spec.ValidateGenome(g); err != nil {
		t.Fatalf("dvorak should be valid: %v", err)
	}

	short := g[:10]
	if err := spec.ValidateGenome(short); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}

	dup := g.Clone()
	dup[0] = dup[1]
	if err := spec.ValidateGenome(dup); !errors.Is(err, ErrNotPermutation) {
		t.Fatalf("expected ErrNotPermutation, got %v", err)
	}
}

func TestNewSpecRejectsMissingHome(t *testing.T) {
	keys := ansiKeys()
	for i := range keys {
		if keys[i].Home && keys[i].FingerID() == 5 {
			keys[i].Home = false
		}
	}
	_, err := NewSpec("broken", keys, qwertyLetters, nil, nil)
	if err == nil {
		t.Fatalf("expected missing home key error")
	}
}

func TestNewSpecRejectsLengthMismatch(t *testing.T) {
	_, err := NewSpec("broken", ansiKeys(), qwertzLetters, nil, nil)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestGenomeMoved(t *testing.T) {
	a := ParseGenome("ABCD")
	b := ParseGenome("ABDC")
	if got := a.Moved(b); got != 2 {
		t.Fatalf("expected 2 moved slots, got %d", got)
	}
	if got := a.Moved(a.Clone()); got != 0 {
		t.Fatalf("expected 0 moved slots, got %d", got)
	}
}

const testLayoutJSON = `{
  "name": "mini",
  "letters": "ABCDEFGHIJ",
  "keys": [
    {"x": 0, "y": 0, "row": 3, "finger": 1, "home": true},
    {"x": 4, "y": 0, "row": 3, "finger": 2, "home": true},
    {"x": 8, "y": 0, "row": 3, "finger": 3, "home": true},
    {"x": 12, "y": 0, "row": 3, "finger": 4, "home": true},
    {"x": 16, "y": 0, "row": 3, "finger": 5, "home": true},
    {"x": 20, "y": 0, "row": 3, "finger": 6, "home": true},
    {"x": 24, "y": 0, "row": 3, "finger": 7, "home": true},
    {"x": 28, "y": 0, "row": 3, "finger": 8, "home": true},
    {"x": 0, "y": 4, "row": 2, "finger": 1, "home": false},
    {"x": 28, "y": 4, "row": 2, "finger": 8, "home": false}
  ],
  "aliases": [{"char": "!", "letter": "A", "shift": true}],
  "references": {"plain": "ABCDEFGHIJ"}
}`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mini.json")
	if err := os.WriteFile(path, []byte(testLayoutJSON), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}
	spec, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if spec.Name != "mini" || spec.Size() != 10 {
		t.Fatalf("unexpected spec: %s/%d", spec.Name, spec.Size())
	}
	if spec.Keys[4].Hand != Right || spec.Keys[4].Finger != Thumb {
		t.Fatalf("expected key 4 on right thumb, got %+v", spec.Keys[4])
	}
	if spec.Keys[8].Row != TopRow {
		t.Fatalf("expected key 8 on top row, got %v", spec.Keys[8].Row)
	}
	if ref := spec.KeyMap['!']; ref.Key != 1 || !ref.Shift {
		t.Fatalf("unexpected alias entry: %+v", ref)
	}
	if _, err := spec.Reference("plain"); err != nil {
		t.Fatalf("Reference: %v", err)
	}
}

func TestParseRejectsBadFinger(t *testing.T) {
	data := `{"name": "bad", "letters": "A", "keys": [{"x": 0, "y": 0, "row": 1, "finger": 9}]}`
	if _, err := Parse([]byte(data)); err == nil {
		t.Fatalf("expected finger range error")
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"name": `)); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
}
