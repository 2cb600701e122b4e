package observability

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
)

func TestSourceFetched(t *testing.T) {
	m := NewMetricsForTesting()

	m.SourceFetched(contracts.SourceLTLACases, nil)
	m.SourceFetched(contracts.SourceHospitalAdmissions, errors.New("503"))
	m.SourceFetched(contracts.SourceHospitalAdmissions, errors.New("503"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceFetches.WithLabelValues("ltla_cases", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SourceFetches.WithLabelValues("hospital_admissions", "error")))
}

func TestAlignmentGap(t *testing.T) {
	m := NewMetricsForTesting()

	m.AlignmentGap(contracts.AlignmentGap{Stage: contracts.StageAggregation, Table: "ltla_cases", Rows: 3})
	m.AlignmentGap(contracts.AlignmentGap{Stage: contracts.StageAggregation, Table: "ltla_cases"})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.AlignmentGaps.WithLabelValues("S2_AGGREGATION", "ltla_cases")))
}

func TestSectionAndRun(t *testing.T) {
	m := NewMetricsForTesting()

	m.SectionRendered("index", "hospital_admissions", false)
	m.ObserveStage(contracts.StageSmoothing, 20*time.Millisecond)
	at := time.Date(2020, 11, 1, 17, 0, 0, 0, time.UTC)
	m.RunFinished(at, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SectionRenders.WithLabelValues("index", "hospital_admissions", "omitted")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.LastSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("success")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.SourceFetched(contracts.SourceUKCases, nil)

	path := filepath.Join(t.TempDir(), "covid_report.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `covid_report_source_fetch_total{outcome="success",source="uk_cases"} 1`)

	assert.NoError(t, m.WriteTextfile(""))
}
