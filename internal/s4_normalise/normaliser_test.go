package s4_normalise

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/logger"
)

var d0 = time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)

func counts(t *testing.T) *table.Table {
	t.Helper()
	b := table.NewBuilder("ltla_cases", "gss_code")
	require.NoError(t, b.Set(d0, 100, "A"))
	require.NoError(t, b.Set(d0, 50, "B"))
	require.NoError(t, b.Set(d0, 7, "Z"))
	return b.Build()
}

func TestNormalise(t *testing.T) {
	pop := s0_data.NewPopulationTable(map[string]float64{"A": 1000, "B": 0}, nil)

	rates, report, err := NewNormaliser(pop, 1, nil, logger.Nop()).Normalise(counts(t), "gss_code")
	require.NoError(t, err)

	assert.InDelta(t, 0.1, rates.At(d0, "A"), 1e-12)
	assert.True(t, math.IsNaN(rates.At(d0, "B")), "zero population is missing, not a division by zero")
	assert.True(t, math.IsNaN(rates.At(d0, "Z")), "absent region is missing, never zero")
	assert.Equal(t, []string{"B", "Z"}, report.Missing)
}

func TestNormalise_Per100k(t *testing.T) {
	pop := s0_data.NewPopulationTable(map[string]float64{"A": 1000, "B": 500, "Z": 70}, nil)

	rates, report, err := NewNormaliser(pop, 100000, nil, logger.Nop()).Normalise(counts(t), "gss_code")
	require.NoError(t, err)

	assert.InDelta(t, 10000.0, rates.At(d0, "A"), 1e-9)
	assert.InDelta(t, 10000.0, rates.At(d0, "Z"), 1e-9)
	assert.Empty(t, report.Missing)
}

func TestNormalise_UnknownDim(t *testing.T) {
	pop := s0_data.NewPopulationTable(nil, nil)
	_, _, err := NewNormaliser(pop, 1, nil, logger.Nop()).Normalise(counts(t), "region")
	require.Error(t, err)
	assert.True(t, contracts.IsFatal(err))
}
