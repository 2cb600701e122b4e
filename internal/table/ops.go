package table

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/covid-report/internal/contracts"
)

// Dropped reports rows removed by Regroup because their label had no mapping
type Dropped struct {
	Rows  int
	Codes []string
}

// Remainder is the part of two tables that did not survive an inner join
type Remainder struct {
	Dates []time.Time
	Keys  []Key
}

// Empty reports whether the join matched everything
func (r Remainder) Empty() bool {
	return len(r.Dates) == 0 && len(r.Keys) == 0
}

// Cell addresses one value for WithCells
type Cell struct {
	Labels []string
	Date   time.Time
	Value  float64
}

func (t *Table) unknownDim(dim string) error {
	return &contracts.SchemaMismatchError{
		Table:  t.name,
		Detail: fmt.Sprintf("no dimension %q (have %v)", dim, t.dims),
	}
}

// Select keeps the rows whose dim label satisfies keep
func (t *Table) Select(dim string, keep func(label string) bool) (*Table, error) {
	pos, ok := t.DimIndex(dim)
	if !ok {
		return nil, t.unknownDim(dim)
	}

	keys := make([]Key, 0, len(t.keys))
	values := make([][]float64, 0, len(t.keys))
	for i, k := range t.keys {
		if keep(k[pos]) {
			keys = append(keys, append(Key(nil), k...))
			values = append(values, append([]float64(nil), t.values[i]...))
		}
	}
	return newTable(t.name, t.Dims(), t.Dates(), keys, values, t.prov), nil
}

// Since keeps dates on or after from
func (t *Table) Since(from time.Time) *Table {
	from = Day(from)
	start := sort.Search(len(t.dates), func(j int) bool { return !t.dates[j].Before(from) })
	return t.sliceDates(start, len(t.dates))
}

// DropTail removes the last n dates
func (t *Table) DropTail(n int) *Table {
	end := len(t.dates) - n
	if end < 0 {
		end = 0
	}
	if n < 0 {
		end = len(t.dates)
	}
	return t.sliceDates(0, end)
}

func (t *Table) sliceDates(start, end int) *Table {
	dates := append([]time.Time(nil), t.dates[start:end]...)
	values := make([][]float64, len(t.values))
	for i, row := range t.values {
		values[i] = append([]float64(nil), row[start:end]...)
	}
	return newTable(t.name, t.Dims(), dates, t.Keys(), values, t.prov)
}

// Regroup maps dim's labels through mapping and sums rows that land on the
// same output key. dim is replaced by newDim in place. Rows whose label has
// no mapping are dropped and reported. A cell is NaN only when every
// contributing cell is NaN.
func (t *Table) Regroup(dim, newDim string, mapping func(label string) (string, bool)) (*Table, Dropped, error) {
	pos, ok := t.DimIndex(dim)
	if !ok {
		return nil, Dropped{}, t.unknownDim(dim)
	}

	dims := t.Dims()
	dims[pos] = newDim

	var dropped Dropped
	droppedCodes := make(map[string]bool)

	out := t.group(dims, func(k Key) (Key, bool) {
		mapped, ok := mapping(k[pos])
		if !ok {
			dropped.Rows++
			if !droppedCodes[k[pos]] {
				droppedCodes[k[pos]] = true
				dropped.Codes = append(dropped.Codes, k[pos])
			}
			return nil, false
		}
		out := append(Key(nil), k...)
		out[pos] = mapped
		return out, true
	})
	sort.Strings(dropped.Codes)

	return out, dropped, nil
}

// Collapse sums over the named dimensions, removing them
func (t *Table) Collapse(dims ...string) (*Table, error) {
	drop := make(map[int]bool, len(dims))
	for _, d := range dims {
		pos, ok := t.DimIndex(d)
		if !ok {
			return nil, t.unknownDim(d)
		}
		drop[pos] = true
	}

	kept := make([]string, 0, len(t.dims))
	for i, d := range t.dims {
		if !drop[i] {
			kept = append(kept, d)
		}
	}

	return t.group(kept, func(k Key) (Key, bool) {
		out := make(Key, 0, len(kept))
		for i, label := range k {
			if !drop[i] {
				out = append(out, label)
			}
		}
		return out, true
	}), nil
}

// group is the shared group-sum behind Regroup and Collapse
func (t *Table) group(dims []string, remap func(Key) (Key, bool)) *Table {
	type acc struct {
		key  Key
		sums []float64
		seen []bool
	}

	groups := make(map[string]*acc)
	for i, k := range t.keys {
		out, ok := remap(k)
		if !ok {
			continue
		}
		g, exists := groups[out.id()]
		if !exists {
			g = &acc{key: out, sums: make([]float64, len(t.dates)), seen: make([]bool, len(t.dates))}
			groups[out.id()] = g
		}
		for j, v := range t.values[i] {
			if math.IsNaN(v) {
				continue
			}
			g.sums[j] += v
			g.seen[j] = true
		}
	}

	keys := make([]Key, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.key)
	}
	sortKeys(keys)

	values := make([][]float64, len(keys))
	for i, k := range keys {
		g := groups[k.id()]
		row := make([]float64, len(t.dates))
		for j := range row {
			if g.seen[j] {
				row[j] = g.sums[j]
			} else {
				row[j] = math.NaN()
			}
		}
		values[i] = row
	}

	return newTable(t.name, dims, t.Dates(), keys, values, t.prov)
}

// Diff converts a cumulative series to daily deltas. The first date is
// dropped; NaN on either side yields NaN.
func (t *Table) Diff() *Table {
	if len(t.dates) < 2 {
		return t.sliceDates(0, 0)
	}

	values := make([][]float64, len(t.values))
	for i, row := range t.values {
		out := make([]float64, len(row)-1)
		for j := 1; j < len(row); j++ {
			out[j-1] = row[j] - row[j-1]
		}
		values[i] = out
	}
	return newTable(t.name, t.Dims(), append([]time.Time(nil), t.dates[1:]...), t.Keys(), values, t.prov)
}

// FillInterior replaces NaN cells that lie between a row's first and last
// reported value with v. Leading and trailing NaNs mean "not reported yet"
// and are kept.
func (t *Table) FillInterior(v float64) *Table {
	values := make([][]float64, len(t.values))
	for i, row := range t.values {
		out := append([]float64(nil), row...)
		first, last := -1, -1
		for j, x := range row {
			if math.IsNaN(x) {
				continue
			}
			if first < 0 {
				first = j
			}
			last = j
		}
		for j := first + 1; first >= 0 && j < last; j++ {
			if math.IsNaN(out[j]) {
				out[j] = v
			}
		}
		values[i] = out
	}
	return newTable(t.name, t.Dims(), t.Dates(), t.Keys(), values, t.prov)
}

// Scale multiplies every cell by k
func (t *Table) Scale(k float64) *Table {
	return t.mapValues(func(x float64) float64 { return x * k })
}

// Mask turns cells failing keep into NaN
func (t *Table) Mask(keep func(v float64) bool) *Table {
	return t.mapValues(func(x float64) float64 {
		if math.IsNaN(x) || !keep(x) {
			return math.NaN()
		}
		return x
	})
}

func (t *Table) mapValues(f func(float64) float64) *Table {
	values := make([][]float64, len(t.values))
	for i, row := range t.values {
		out := make([]float64, len(row))
		for j, x := range row {
			out[j] = f(x)
		}
		values[i] = out
	}
	return newTable(t.name, t.Dims(), t.Dates(), t.Keys(), values, t.prov)
}

// Rolling applies a centred mean of width window. Output dates need
// window/2 neighbours on both sides, so the edges are dropped. A window that
// contains a NaN yields NaN. A table shorter than window comes back with an
// empty date axis and an *contracts.InsufficientDataError.
func (t *Table) Rolling(window int) (*Table, error) {
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("rolling window must be odd and >= 1, got %d", window)
	}
	if len(t.dates) < window {
		return t.sliceDates(0, 0), &contracts.InsufficientDataError{
			Series: t.name,
			Have:   len(t.dates),
			Need:   window,
		}
	}

	half := window / 2
	n := len(t.dates) - 2*half
	values := make([][]float64, len(t.values))
	for i, row := range t.values {
		out := make([]float64, n)
		for j := 0; j < n; j++ {
			w := row[j : j+window]
			if hasNaN(w) {
				out[j] = math.NaN()
				continue
			}
			out[j] = stat.Mean(w, nil)
		}
		values[i] = out
	}

	dates := append([]time.Time(nil), t.dates[half:len(t.dates)-half]...)
	return newTable(t.name, t.Dims(), dates, t.Keys(), values, t.prov), nil
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// Divide divides each row by denom(label of dim). Labels without a positive
// denominator become an all-NaN row and are returned, sorted.
func (t *Table) Divide(dim string, denom func(label string) (float64, bool)) (*Table, []string, error) {
	pos, ok := t.DimIndex(dim)
	if !ok {
		return nil, nil, t.unknownDim(dim)
	}

	missing := make([]string, 0)
	seen := make(map[string]bool)
	values := make([][]float64, len(t.values))
	for i, k := range t.keys {
		d, ok := denom(k[pos])
		if !ok || d <= 0 {
			values[i] = nanRow(len(t.dates))
			if !seen[k[pos]] {
				seen[k[pos]] = true
				missing = append(missing, k[pos])
			}
			continue
		}
		out := make([]float64, len(t.dates))
		for j, v := range t.values[i] {
			out[j] = v / d
		}
		values[i] = out
	}
	sort.Strings(missing)

	return newTable(t.name, t.Dims(), t.Dates(), t.Keys(), values, t.prov), missing, nil
}

// Combine applies op cell by cell over the inner join of two tables on
// dates and row keys. Both tables must have identical dimensions. Whatever
// does not appear on both sides is returned as the Remainder.
func (t *Table) Combine(other *Table, op func(a, b float64) float64) (*Table, Remainder, error) {
	if len(t.dims) != len(other.dims) {
		return nil, Remainder{}, &contracts.SchemaMismatchError{
			Table:  t.name + "+" + other.name,
			Detail: fmt.Sprintf("dimensions %v and %v differ", t.dims, other.dims),
		}
	}
	for i := range t.dims {
		if t.dims[i] != other.dims[i] {
			return nil, Remainder{}, &contracts.SchemaMismatchError{
				Table:  t.name + "+" + other.name,
				Detail: fmt.Sprintf("dimensions %v and %v differ", t.dims, other.dims),
			}
		}
	}

	var rem Remainder

	otherDates := make(map[time.Time]int, len(other.dates))
	for j, d := range other.dates {
		otherDates[d] = j
	}
	type pair struct{ a, b int }
	cols := make([]pair, 0)
	dates := make([]time.Time, 0)
	matchedDates := make(map[time.Time]bool)
	for j, d := range t.dates {
		if jb, ok := otherDates[d]; ok {
			cols = append(cols, pair{j, jb})
			dates = append(dates, d)
			matchedDates[d] = true
		} else {
			rem.Dates = append(rem.Dates, d)
		}
	}
	for _, d := range other.dates {
		if !matchedDates[d] {
			rem.Dates = append(rem.Dates, d)
		}
	}
	sort.Slice(rem.Dates, func(i, j int) bool { return rem.Dates[i].Before(rem.Dates[j]) })

	keys := make([]Key, 0)
	values := make([][]float64, 0)
	for i, k := range t.keys {
		ib, ok := other.index[k.id()]
		if !ok {
			rem.Keys = append(rem.Keys, append(Key(nil), k...))
			continue
		}
		row := make([]float64, len(cols))
		for c, p := range cols {
			row[c] = op(t.values[i][p.a], other.values[ib][p.b])
		}
		keys = append(keys, append(Key(nil), k...))
		values = append(values, row)
	}
	for _, k := range other.keys {
		if _, ok := t.index[k.id()]; !ok {
			rem.Keys = append(rem.Keys, append(Key(nil), k...))
		}
	}
	sortKeys(rem.Keys)

	return newTable(t.name, t.Dims(), dates, keys, values, t.prov), rem, nil
}

// WithCells overrides individual cells. Cells whose labels or date are not
// in the table are returned unapplied. A cell with the wrong number of
// labels is a schema mismatch.
func (t *Table) WithCells(cells []Cell) (*Table, []Cell, error) {
	for _, c := range cells {
		if len(c.Labels) != len(t.dims) {
			return nil, nil, &contracts.SchemaMismatchError{
				Table:  t.name,
				Detail: fmt.Sprintf("override %v has %d labels, table dims are %v", c.Labels, len(c.Labels), t.dims),
			}
		}
	}

	out := t.clone()
	ignored := make([]Cell, 0)
	for _, c := range cells {
		i, ok := out.index[Key(c.Labels).id()]
		if !ok {
			ignored = append(ignored, c)
			continue
		}
		j, ok := out.dateIndex(c.Date)
		if !ok {
			ignored = append(ignored, c)
			continue
		}
		out.values[i][j] = c.Value
	}
	return out, ignored, nil
}
