package dial

import "sort"

// MaxOverlap is the largest accepted overlap fraction.
const MaxOverlap = 0.5

// Band owns the raw interval [Lower, next.Lower). The first band of a map
// extends down to -inf and the last one up to +inf.
//
// A dial already at Jump or Stay keeps its mark inside the band; any other
// dial moves to Jump.
type Band struct {
	Lower int64
	Jump  Mark
	Stay  Mark
}

// BandMap is an immutable, ascending set of bands built from a command table.
type BandMap struct {
	bands []Band
}

// BuildBandMap partitions the raw axis into hysteresis bands. Around every
// boundary between two adjacent marks three bands are laid out so that a
// dial coming from either side has to cross the whole overlap zone before
// it changes mark. With overlap 0 each boundary is a plain midpoint.
//
// Tables with fewer than two commands produce an empty map.
func BuildBandMap(table CommandTable, overlap float64) BandMap {
	marks := table.Marks()
	if len(marks) < 2 {
		return BandMap{}
	}

	// Keyed by lower bound: a later band replaces an earlier one that starts
	// at the same raw value.
	byLower := make(map[int64]Band)
	add := func(lower int64, jump, stay Mark) {
		byLower[lower] = Band{Lower: lower, Jump: jump, Stay: stay}
	}

	first := marks[0]
	add(int64(first), first, first)
	for i := 1; i < len(marks); i++ {
		prev, cur := marks[i-1], marks[i]
		mid := (int64(prev) + int64(cur)) / 2
		if overlap > 0 {
			o := int64(float64(cur-prev) * overlap)
			add(mid-o/2, prev, cur)
			add(mid, cur, prev)
			add(mid+o/2, cur, cur)
		} else {
			add(mid, cur, cur)
		}
	}
	last := marks[len(marks)-1]
	add(int64(last), last, last)

	bands := make([]Band, 0, len(byLower))
	for _, b := range byLower {
		bands = append(bands, b)
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].Lower < bands[j].Lower })
	return BandMap{bands: bands}
}

// Bands returns a copy of the bands in ascending order.
func (m BandMap) Bands() []Band {
	out := make([]Band, len(m.bands))
	copy(out, m.bands)
	return out
}

// Len returns the number of bands.
func (m BandMap) Len() int {
	return len(m.bands)
}

// Empty reports whether the map has no bands; such a map resolves everything
// to Unset.
func (m BandMap) Empty() bool {
	return len(m.bands) == 0
}

// Find returns the band containing raw: the last band with Lower <= raw, or
// the first band when raw lies below every bound.
func (m BandMap) Find(raw int64) (Band, bool) {
	if len(m.bands) == 0 {
		return Band{}, false
	}
	// index of the first band starting above raw
	i := sort.Search(len(m.bands), func(i int) bool { return m.bands[i].Lower > raw })
	if i == 0 {
		return m.bands[0], true
	}
	return m.bands[i-1], true
}

// Resolve maps a raw sample to a mark given the mark the dial is currently
// at. It does not modify the map.
func (m BandMap) Resolve(raw int64, current Mark) Mark {
	b, ok := m.Find(raw)
	if !ok {
		return Unset
	}
	if current == b.Stay || current == b.Jump {
		return current
	}
	return b.Jump
}
