package models

// ChangeCounters maps every tracked table to the number of records created,
// updated or deleted since the last published version. All tracked tables are
// always present, including those with zero changes.
type ChangeCounters map[TableName]int

// NewChangeCounters returns a zero-filled counter map for all tracked tables
func NewChangeCounters() ChangeCounters {
	c := make(ChangeCounters, len(TrackedTables))
	for _, t := range TrackedTables {
		c[t] = 0
	}
	return c
}

// Clone returns an independent copy with every tracked table present.
// Unknown keys are dropped and negative values are clamped to zero.
func (c ChangeCounters) Clone() ChangeCounters {
	out := NewChangeCounters()
	for t, n := range c {
		if !t.Valid() {
			continue
		}
		if n < 0 {
			n = 0
		}
		out[t] = n
	}
	return out
}

// Total sums the counts of all tracked tables
func (c ChangeCounters) Total() int {
	total := 0
	for _, t := range TrackedTables {
		total += c[t]
	}
	return total
}
