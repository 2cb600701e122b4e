package s0_data

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/table"
)

// Source fetches one upstream dataset as a labelled table
// ⭐ SSOT: 외부 소스 인터페이스는 여기서만 정의
type Source interface {
	// Name returns the dataset identifier
	Name() contracts.SourceName

	// Fetch downloads and parses the dataset
	Fetch(ctx context.Context) (*table.Table, error)
}

// Locatable is implemented by sources that know their upstream URL
type Locatable interface {
	Location() string
}

// SourceFunc adapts a function to Source
type SourceFunc struct {
	SourceName contracts.SourceName
	URL        string
	Fn         func(ctx context.Context) (*table.Table, error)
}

// Name returns the dataset identifier
func (s SourceFunc) Name() contracts.SourceName { return s.SourceName }

// Location returns the upstream URL, if known
func (s SourceFunc) Location() string { return s.URL }

// Fetch calls Fn
func (s SourceFunc) Fetch(ctx context.Context) (*table.Table, error) { return s.Fn(ctx) }

// Dataset holds every source result of one run, successful or not
type Dataset struct {
	tables map[contracts.SourceName]*table.Table
	errs   map[contracts.SourceName]error
}

// NewDataset returns an empty dataset
func NewDataset() *Dataset {
	return &Dataset{
		tables: make(map[contracts.SourceName]*table.Table),
		errs:   make(map[contracts.SourceName]error),
	}
}

// Put records a fetched table
func (d *Dataset) Put(name contracts.SourceName, t *table.Table) {
	d.tables[name] = t
	delete(d.errs, name)
}

// Fail records a fetch failure
func (d *Dataset) Fail(name contracts.SourceName, err error) {
	d.errs[name] = err
	delete(d.tables, name)
}

// Get returns the table for name. A failed or unknown source yields a
// *contracts.SourceFetchError.
func (d *Dataset) Get(name contracts.SourceName) (*table.Table, error) {
	if t, ok := d.tables[name]; ok {
		return t, nil
	}
	if err, ok := d.errs[name]; ok {
		return nil, err
	}
	return nil, &contracts.SourceFetchError{Source: name, Err: fmt.Errorf("source not collected")}
}

// Err returns the failure recorded for name, if any
func (d *Dataset) Err(name contracts.SourceName) error {
	return d.errs[name]
}

// Names returns every source seen, sorted
func (d *Dataset) Names() []contracts.SourceName {
	out := make([]contracts.SourceName, 0, len(d.tables)+len(d.errs))
	for n := range d.tables {
		out = append(out, n)
	}
	for n := range d.errs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Quality summarises which sources were fetched
func (d *Dataset) Quality() contracts.DataQuality {
	q := contracts.NewDataQuality()
	for n := range d.tables {
		q.Sources[n] = true
	}
	for n := range d.errs {
		q.Sources[n] = false
	}
	q.QualityScore = q.CoverageRate()
	return q
}
