package layout

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// LoadFile reads a layout definition from a JSON file.
//
//	{
//	  "name": "my-board",
//	  "letters": "ABC...",
//	  "keys": [{"x": 2, "y": 18, "row": 1, "finger": 1, "home": false}, ...],
//	  "aliases": [{"char": ",", "letter": "<", "shift": false}, ...],
//	  "shifted": "~+<>?",
//	  "references": {"qwerty": "~123..."}
//	}
//
// Rows count 1-4 from the number row down and fingers 1-8 from the left
// ring finger to the right ring finger. Every letter maps to its own key;
// aliases add further characters.
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a JSON layout definition.
func Parse(data []byte) (*Spec, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("layout file is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	name := doc.Get("name").String()
	if name == "" {
		return nil, fmt.Errorf("layout file has no name")
	}
	letters := []rune(doc.Get("letters").String())

	var keys []Key
	var keyErr error
	doc.Get("keys").ForEach(func(_, v gjson.Result) bool {
		raw := rawKey{
			x:      int(v.Get("x").Int()),
			y:      int(v.Get("y").Int()),
			row:    int(v.Get("row").Int()),
			finger: int(v.Get("finger").Int()),
			home:   v.Get("home").Bool(),
		}
		if raw.row < 1 || raw.row > RowCount {
			keyErr = fmt.Errorf("key %d: row must be 1-%d, got %d", len(keys), RowCount, raw.row)
			return false
		}
		if raw.finger < 1 || raw.finger > FingerCount {
			keyErr = fmt.Errorf("key %d: finger must be 1-%d, got %d", len(keys), FingerCount, raw.finger)
			return false
		}
		keys = append(keys, raw.key())
		return true
	})
	if keyErr != nil {
		return nil, fmt.Errorf("layout %q: %w", name, keyErr)
	}

	var aliases []alias
	var aliasErr error
	doc.Get("aliases").ForEach(func(_, v gjson.Result) bool {
		char := []rune(v.Get("char").String())
		letter := []rune(v.Get("letter").String())
		if len(char) != 1 || len(letter) != 1 {
			aliasErr = fmt.Errorf("alias %d: char and letter must be single characters", len(aliases))
			return false
		}
		if !containsRune(letters, letter[0]) {
			aliasErr = fmt.Errorf("alias %q: letter %q is not in the letter list", char[0], letter[0])
			return false
		}
		aliases = append(aliases, alias{char: char[0], letter: letter[0], shift: v.Get("shift").Bool()})
		return true
	})
	if aliasErr != nil {
		return nil, fmt.Errorf("layout %q: %w", name, aliasErr)
	}

	refs := map[string]Genome{}
	doc.Get("references").ForEach(func(k, v gjson.Result) bool {
		refs[k.String()] = ParseGenome(v.String())
		return true
	})

	keyMap := keyMapFor(letters, doc.Get("shifted").String(), aliases)
	return NewSpec(name, keys, letters, keyMap, refs)
}

func containsRune(rs []rune, r rune) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}
