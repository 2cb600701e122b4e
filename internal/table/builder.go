package table

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/covid-report/internal/contracts"
)

// Builder accumulates cells and produces a Table.
// Parsers in s0_data and the external clients use it to turn CSV/JSON rows
// into tables.
type Builder struct {
	name  string
	dims  []string
	prov  contracts.Provenance
	keys  map[string]Key
	cells map[string]map[time.Time]float64
}

// NewBuilder starts a table with the given dimension names
func NewBuilder(name string, dims ...string) *Builder {
	return &Builder{
		name:  name,
		dims:  append([]string(nil), dims...),
		keys:  make(map[string]Key),
		cells: make(map[string]map[time.Time]float64),
	}
}

// WithProvenance attaches source metadata to the built table
func (b *Builder) WithProvenance(p contracts.Provenance) *Builder {
	b.prov = p
	return b
}

// Set stores v at (date, labels), replacing any previous value
func (b *Builder) Set(date time.Time, v float64, labels ...string) error {
	row, err := b.row(labels)
	if err != nil {
		return err
	}
	row[Day(date)] = v
	return nil
}

// Add sums v into (date, labels). NaN contributions leave a reported cell
// untouched.
func (b *Builder) Add(date time.Time, v float64, labels ...string) error {
	row, err := b.row(labels)
	if err != nil {
		return err
	}
	d := Day(date)
	prev, ok := row[d]
	switch {
	case !ok || math.IsNaN(prev):
		row[d] = v
	case !math.IsNaN(v):
		row[d] = prev + v
	}
	return nil
}

// Len returns the number of cells stored so far
func (b *Builder) Len() int {
	n := 0
	for _, row := range b.cells {
		n += len(row)
	}
	return n
}

func (b *Builder) row(labels []string) (map[time.Time]float64, error) {
	if len(labels) != len(b.dims) {
		return nil, &contracts.SchemaMismatchError{
			Table:  b.name,
			Detail: fmt.Sprintf("got %d labels %v for dims %v", len(labels), labels, b.dims),
		}
	}
	key := Key(append([]string(nil), labels...))
	id := key.id()
	row, ok := b.cells[id]
	if !ok {
		row = make(map[time.Time]float64)
		b.cells[id] = row
		b.keys[id] = key
	}
	return row, nil
}

// Build produces the table. The date axis runs day by day from the earliest
// to the latest stored date; cells never stored are NaN.
func (b *Builder) Build() *Table {
	var first, last time.Time
	for _, row := range b.cells {
		for d := range row {
			if first.IsZero() || d.Before(first) {
				first = d
			}
			if last.IsZero() || d.After(last) {
				last = d
			}
		}
	}

	dates := make([]time.Time, 0)
	if !first.IsZero() {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	}

	keys := make([]Key, 0, len(b.keys))
	for _, k := range b.keys {
		keys = append(keys, k)
	}
	sortKeys(keys)

	values := make([][]float64, len(keys))
	for i, k := range keys {
		row := nanRow(len(dates))
		for d, v := range b.cells[k.id()] {
			row[int(d.Sub(first).Hours()/24)] = v
		}
		values[i] = row
	}

	return newTable(b.name, append([]string(nil), b.dims...), dates, keys, values, b.prov)
}
