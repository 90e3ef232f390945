package model

// Fallback is returned by Sample when no record's cumulative probability
// reaches the draw. This can only happen when rounding leaves the last CP
// slightly below 1.0 and the draw lands in that gap.
const Fallback = ' '

// Sample picks a character from a finalized distribution given a uniform
// draw r in [0, 1): the first record, in stored order, with CP >= r.
func Sample(d *Distribution, r float64) rune {
	for _, record := range d.records {
		if record.CP >= r {
			return record.Char
		}
	}
	return Fallback
}
