package s1_correction

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/policyconfig"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/logger"
)

// Corrector applies hand-maintained overrides to raw source tables
type Corrector struct {
	logger *logger.Logger
}

// Report summarises one Correct call
type Report struct {
	Applied int
	Ignored []policyconfig.Fix // label or date not present in the table
}

// NewCorrector creates a new Corrector
func NewCorrector(log *logger.Logger) *Corrector {
	return &Corrector{
		logger: log.WithStage(contracts.StageCorrection.String()),
	}
}

// Correct returns raw with every fix applied. A fix sets a cell, or marks
// it missing when its value is null, so applying the same fixes twice gives
// the same table. A fix whose label dimensions differ from the table's is a
// schema mismatch.
// ⭐ SSOT: S0 → S1 데이터 보정
func (c *Corrector) Correct(raw *table.Table, fixes []policyconfig.Fix) (*table.Table, Report, error) {
	var report Report
	if len(fixes) == 0 {
		return raw, report, nil
	}

	dims := raw.Dims()
	cells := make([]table.Cell, 0, len(fixes))
	for i, fix := range fixes {
		if !sameDims(fix.Labels, dims) {
			return nil, report, &contracts.SchemaMismatchError{
				Table: fmt.Sprintf("corrections[%s]", raw.Name()),
				Detail: fmt.Sprintf("fix #%d labels %v do not match table dimensions %v",
					i, sortedKeys(fix.Labels), dims),
			}
		}

		d, err := table.ParseDay(fix.Date)
		if err != nil {
			return nil, report, fmt.Errorf("corrections[%s] fix #%d: bad date %q: %w", raw.Name(), i, fix.Date, err)
		}

		labels := make([]string, len(dims))
		for j, dim := range dims {
			labels[j] = fix.Labels[dim]
		}

		v := math.NaN()
		if fix.Value != nil {
			v = *fix.Value
		}
		cells = append(cells, table.Cell{Labels: labels, Date: d, Value: v})
	}

	out, ignored, err := raw.WithCells(cells)
	if err != nil {
		return nil, report, err
	}

	ignoredSet := make(map[int]bool, len(ignored))
	for _, ic := range ignored {
		for i, cell := range cells {
			if !ignoredSet[i] && sameCell(cell, ic) {
				ignoredSet[i] = true
				break
			}
		}
	}
	for i, fix := range fixes {
		if ignoredSet[i] {
			report.Ignored = append(report.Ignored, fix)
		}
	}
	report.Applied = len(fixes) - len(report.Ignored)

	for i, cell := range cells {
		if ignoredSet[i] {
			continue
		}
		c.logger.WithFields(map[string]interface{}{
			"table":  raw.Name(),
			"labels": cell.Labels,
			"date":   cell.Date.Format(table.DateLayout),
			"before": raw.At(cell.Date, cell.Labels...),
			"after":  cell.Value,
			"note":   fixes[i].Note,
		}).Debug("Cell corrected")
	}

	log := c.logger.WithFields(map[string]interface{}{
		"table":   raw.Name(),
		"applied": report.Applied,
		"ignored": len(report.Ignored),
	})
	if len(report.Ignored) > 0 {
		log.Warn("Some corrections did not match the table")
	} else {
		log.Debug("Applied corrections")
	}

	return out, report, nil
}

func sameDims(labels map[string]string, dims []string) bool {
	if len(labels) != len(dims) {
		return false
	}
	for _, d := range dims {
		if _, ok := labels[d]; !ok {
			return false
		}
	}
	return true
}

func sameCell(a, b table.Cell) bool {
	return a.Date.Equal(b.Date) && strings.Join(a.Labels, "\x1f") == strings.Join(b.Labels, "\x1f")
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
