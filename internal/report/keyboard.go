package report

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/keyopt/internal/layout"
)

// KeyClass groups characters for highlighting.
type KeyClass int

const (
	ClassOther KeyClass = iota
	// ClassTop is the single most frequent letter, E.
	ClassTop
	// ClassCommon are the next most frequent English letters.
	ClassCommon
	// ClassRare are symbols and digits that are seldom typed.
	ClassRare
)

const (
	commonLetters = "TAOINSRHL"
	rareSymbols   = "[]~+746385"
)

// ClassOf returns the highlight class of r.
func ClassOf(r rune) KeyClass {
	switch {
	case r == 'E':
		return ClassTop
	case strings.ContainsRune(commonLetters, r):
		return ClassCommon
	case strings.ContainsRune(rareSymbols, r):
		return ClassRare
	default:
		return ClassOther
	}
}

var classStyles = map[KeyClass]lipgloss.Style{
	ClassOther:  lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0")),
	ClassTop:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")).Bold(true),
	ClassCommon: lipgloss.NewStyle().Foreground(lipgloss.Color("#00EE76")),
	ClassRare:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6347")),
}

// keyCellWidth is one key in characters. A key is four quarter units
// wide, so one character is one quarter unit.
const keyCellWidth = 4

// RenderKeyboard draws g on the physical layout, one line per row. Home
// keys are drawn as |X| and all others as [X].
func RenderKeyboard(spec *layout.Spec, g layout.Genome, color bool) string {
	minX := 0
	for i, k := range spec.Keys {
		if i == 0 || k.X < minX {
			minX = k.X
		}
	}

	rows := make([][]int, layout.RowCount)
	for slot, k := range spec.Keys {
		rows[k.Row] = append(rows[k.Row], slot)
	}

	lines := make([]string, 0, layout.RowCount)
	for _, slots := range rows {
		if len(slots) == 0 {
			continue
		}
		sort.SliceStable(slots, func(i, j int) bool { return spec.Keys[slots[i]].X < spec.Keys[slots[j]].X })

		var b strings.Builder
		cursor := 0
		for _, slot := range slots {
			k := spec.Keys[slot]
			col := k.X - minX
			if col > cursor {
				b.WriteString(strings.Repeat(" ", col-cursor))
				cursor = col
			}
			cell, width := keyCell(g[slot], k.Home, color)
			cursor += width
			b.WriteString(cell)
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.Join(lines, "\n")
}

// keyCell returns a key and its display width, at least keyCellWidth.
func keyCell(r rune, home, color bool) (string, int) {
	left, right := "[", "]"
	if home {
		left, right = "|", "|"
	}
	label := string(r)
	width := runewidth.StringWidth(label) + 2
	if color {
		style := classStyles[ClassOf(r)]
		if home {
			style = style.Underline(true)
		}
		label = style.Render(label)
	}
	cell := left + label + right
	if width < keyCellWidth {
		cell += strings.Repeat(" ", keyCellWidth-width)
		width = keyCellWidth
	}
	return cell, width
}
