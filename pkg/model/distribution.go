package model

import (
	"fmt"
	"strings"
)

// CharRecord holds one observed successor character and its statistics
type CharRecord struct {
	Char  rune
	Count int
	P     float64 // probability, set by Finalize
	CP    float64 // cumulative probability, set by Finalize
}

// String formats the record as (char count p cp)
func (r CharRecord) String() string {
	return fmt.Sprintf("(%c %d %g %g)", r.Char, r.Count, r.P, r.CP)
}

// Distribution is the ordered list of successor characters seen after one
// window. Records stay in first-occurrence order; CP is accumulated in that
// order, so reordering records changes sampling.
type Distribution struct {
	records []CharRecord
	index   map[rune]int
}

// NewDistribution creates an empty distribution
func NewDistribution() *Distribution {
	return &Distribution{index: make(map[rune]int)}
}

// Observe counts one occurrence of c, appending a new record on first sight
func (d *Distribution) Observe(c rune) {
	if i, ok := d.index[c]; ok {
		d.records[i].Count++
		return
	}
	d.index[c] = len(d.records)
	d.records = append(d.records, CharRecord{Char: c, Count: 1})
}

// Len returns the number of distinct successor characters
func (d *Distribution) Len() int {
	return len(d.records)
}

// At returns a copy of the i-th record in first-occurrence order
func (d *Distribution) At(i int) CharRecord {
	return d.records[i]
}

// IndexOf returns the position of c, or -1 if c was never observed
func (d *Distribution) IndexOf(c rune) int {
	if i, ok := d.index[c]; ok {
		return i
	}
	return -1
}

// Total returns the sum of all counts
func (d *Distribution) Total() int {
	total := 0
	for _, r := range d.records {
		total += r.Count
	}
	return total
}

// Finalize derives P and CP for every record from the current counts.
// Running it again with unchanged counts yields the same values.
func (d *Distribution) Finalize() {
	total := d.Total()
	if total == 0 {
		return
	}
	cp := 0.0
	for i := range d.records {
		r := &d.records[i]
		r.P = float64(r.Count) / float64(total)
		cp += r.P
		r.CP = cp
	}
}

// String formats the records in order, e.g. ((a 1 0.5 0.5) (c 1 0.5 1))
func (d *Distribution) String() string {
	var builder strings.Builder
	builder.WriteByte('(')
	for i, r := range d.records {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(r.String())
	}
	builder.WriteByte(')')
	return builder.String()
}
