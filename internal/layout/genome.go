package layout

// Genome assigns characters to key slots: genome[slot] = character.
type Genome []rune

// ParseGenome builds a genome from a string, one character per slot.
func ParseGenome(s string) Genome {
	return Genome([]rune(s))
}

// Clone returns an independent copy.
func (g Genome) Clone() Genome {
	return append(Genome(nil), g...)
}

func (g Genome) String() string {
	return string(g)
}

// IsPermutationOf reports whether g holds exactly the multiset of letters.
func (g Genome) IsPermutationOf(letters []rune) bool {
	if len(g) != len(letters) {
		return false
	}
	counts := make(map[rune]int, len(letters))
	for _, r := range letters {
		counts[r]++
	}
	for _, r := range g {
		counts[r]--
		if counts[r] < 0 {
			return false
		}
	}
	return true
}

// Moved counts slots whose character differs between g and other.
func (g Genome) Moved(other Genome) int {
	n := len(g)
	if len(other) < n {
		n = len(other)
	}
	moved := len(g) + len(other) - 2*n
	for i := 0; i < n; i++ {
		if g[i] != other[i] {
			moved++
		}
	}
	return moved
}
