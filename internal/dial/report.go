package dial

import (
	"fmt"
	"strings"
)

// BandsReport renders the band layout of a channel: the lower bounds of
// each boundary zone printed between the commands they separate.
func BandsReport(table CommandTable, bm BandMap) string {
	if bm.Empty() {
		return "  no command bands (need at least two commands)\n"
	}

	marks := table.Marks()
	index := make(map[Mark]int, len(marks))
	for i, m := range marks {
		index[m] = i
	}

	// zones[i] holds the bounds of the boundary below marks[i]
	zones := make([][]int64, len(marks))
	bands := bm.Bands()
	for i, b := range bands {
		if b.Jump == b.Stay {
			if b.Jump == marks[0] {
				continue
			}
			if i == len(bands)-1 && b.Jump == marks[len(marks)-1] && b.Lower == int64(b.Jump) {
				continue
			}
		}
		hi := index[b.Jump]
		if s := index[b.Stay]; s > hi {
			hi = s
		}
		zones[hi] = append(zones[hi], b.Lower)
	}

	const tab = "        "
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s<%7s\n", tab, "-inf")
	for i, m := range marks {
		if i > 0 {
			parts := make([]string, len(zones[i]))
			for j, z := range zones[i] {
				parts[j] = fmt.Sprintf("%7d", z)
			}
			fmt.Fprintf(&sb, "%s %s\n", tab, strings.Join(parts, " | "))
		}
		cmd := table[m]
		fmt.Fprintf(&sb, "  %7d: %s: %s\n", m, cmd.Label, cmd.Action)
	}
	fmt.Fprintf(&sb, "%s>%7d\n", tab, marks[len(marks)-1])
	return sb.String()
}

// FormatMark renders a mark for status output; Unset is shown as -1.
func FormatMark(m Mark) int64 {
	if m == Unset {
		return -1
	}
	return int64(m)
}
