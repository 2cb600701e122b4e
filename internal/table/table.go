// Package table implements the labelled daily series every pipeline stage
// consumes and produces.
//
// A Table is a dense float64 matrix: one row per label tuple (one label per
// named dimension) and one column per calendar day. Days are contiguous UTC
// dates. NaN marks a cell that was not reported, which is distinct from 0.
// Tables are immutable; every operation returns a new Table and copies the
// source Provenance through unchanged.
package table

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/wonny/covid-report/internal/contracts"
)

// DateLayout is the wire format used for dates in CSVs, policy and JSON
const DateLayout = "2006-01-02"

// Key is the ordered label tuple identifying one row
type Key []string

// String joins labels with "/" for display
func (k Key) String() string {
	return strings.Join(k, "/")
}

func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

func (k Key) less(o Key) bool {
	for i := 0; i < len(k) && i < len(o); i++ {
		if k[i] != o[i] {
			return k[i] < o[i]
		}
	}
	return len(k) < len(o)
}

// Table is an immutable labelled series
type Table struct {
	name   string
	dims   []string
	dates  []time.Time
	keys   []Key
	index  map[string]int
	values [][]float64
	prov   contracts.Provenance
}

// newTable takes ownership of its arguments
func newTable(name string, dims []string, dates []time.Time, keys []Key, values [][]float64, prov contracts.Provenance) *Table {
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k.id()] = i
	}
	return &Table{
		name:   name,
		dims:   dims,
		dates:  dates,
		keys:   keys,
		index:  index,
		values: values,
		prov:   prov,
	}
}

// Day truncates t to its UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses YYYY-MM-DD or YYYYMMDD into a UTC day
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := DateLayout
	if len(s) == 8 && !strings.Contains(s, "-") {
		layout = "20060102"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// Name returns the table name used in logs and errors
func (t *Table) Name() string { return t.name }

// Provenance returns the attached source metadata
func (t *Table) Provenance() contracts.Provenance { return t.prov }

// Dims returns the dimension names in row-key order
func (t *Table) Dims() []string {
	return append([]string(nil), t.dims...)
}

// Dates returns the date axis
func (t *Table) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Keys returns the row keys in sorted order
func (t *Table) Keys() []Key {
	out := make([]Key, len(t.keys))
	for i, k := range t.keys {
		out[i] = append(Key(nil), k...)
	}
	return out
}

// NumDates returns the length of the date axis
func (t *Table) NumDates() int { return len(t.dates) }

// NumRows returns the number of label tuples
func (t *Table) NumRows() int { return len(t.keys) }

// Empty reports whether the table has no cells
func (t *Table) Empty() bool {
	return len(t.dates) == 0 || len(t.keys) == 0
}

// LastDate returns the final date on the axis
func (t *Table) LastDate() (time.Time, bool) {
	if len(t.dates) == 0 {
		return time.Time{}, false
	}
	return t.dates[len(t.dates)-1], true
}

// DimIndex returns the position of dim in the row key
func (t *Table) DimIndex(dim string) (int, bool) {
	for i, d := range t.dims {
		if d == dim {
			return i, true
		}
	}
	return -1, false
}

// HasDims reports whether the table's dimension set equals dims (any order)
func (t *Table) HasDims(dims []string) bool {
	if len(dims) != len(t.dims) {
		return false
	}
	for _, d := range dims {
		if _, ok := t.DimIndex(d); !ok {
			return false
		}
	}
	return true
}

// Labels returns the distinct labels of dim, sorted
func (t *Table) Labels(dim string) []string {
	pos, ok := t.DimIndex(dim)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, k := range t.keys {
		if !seen[k[pos]] {
			seen[k[pos]] = true
			out = append(out, k[pos])
		}
	}
	sort.Strings(out)
	return out
}

// Row returns a copy of the series for the given labels
func (t *Table) Row(labels ...string) ([]float64, bool) {
	i, ok := t.index[Key(labels).id()]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.values[i]...), true
}

// At returns the cell at (date, labels) or NaN
func (t *Table) At(date time.Time, labels ...string) float64 {
	i, ok := t.index[Key(labels).id()]
	if !ok {
		return math.NaN()
	}
	j, ok := t.dateIndex(date)
	if !ok {
		return math.NaN()
	}
	return t.values[i][j]
}

// Value returns the cell at row i, column j
func (t *Table) Value(i, j int) float64 {
	return t.values[i][j]
}

// Values returns a copy of the value matrix (rows × dates)
func (t *Table) Values() [][]float64 {
	out := make([][]float64, len(t.values))
	for i, row := range t.values {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Sum adds every reported cell
func (t *Table) Sum() float64 {
	total := 0.0
	for _, row := range t.values {
		total += floats.Sum(reported(row))
	}
	return total
}

// WithName returns a copy under a different name
func (t *Table) WithName(name string) *Table {
	out := t.clone()
	out.name = name
	return out
}

// WithProvenance returns a copy carrying p
func (t *Table) WithProvenance(p contracts.Provenance) *Table {
	out := t.clone()
	out.prov = p
	return out
}

func (t *Table) dateIndex(date time.Time) (int, bool) {
	if len(t.dates) == 0 {
		return 0, false
	}
	d := Day(date)
	j := int(d.Sub(t.dates[0]).Hours() / 24)
	if j < 0 || j >= len(t.dates) || !t.dates[j].Equal(d) {
		return 0, false
	}
	return j, true
}

func (t *Table) clone() *Table {
	return newTable(t.name, t.Dims(), t.Dates(), t.Keys(), t.Values(), t.prov)
}

// reported filters out NaN cells
func reported(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
}
