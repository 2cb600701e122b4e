package s0_data

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/table"
)

func TestDataset(t *testing.T) {
	ds := NewDataset()
	tbl := table.NewBuilder("uk_cases", "nation").Build()

	ds.Put(contracts.SourceUKCases, tbl)
	ds.Fail(contracts.SourceHospitalAdmissions, &contracts.SourceFetchError{
		Source: contracts.SourceHospitalAdmissions,
		Err:    errors.New("503"),
	})

	got, err := ds.Get(contracts.SourceUKCases)
	require.NoError(t, err)
	assert.Same(t, tbl, got)

	_, err = ds.Get(contracts.SourceHospitalAdmissions)
	var fetchErr *contracts.SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, contracts.SourceHospitalAdmissions, fetchErr.Source)

	_, err = ds.Get(contracts.SourceRiskyVenues)
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, contracts.SourceRiskyVenues, fetchErr.Source)

	assert.Equal(t, []contracts.SourceName{contracts.SourceHospitalAdmissions, contracts.SourceUKCases}, ds.Names())

	q := ds.Quality()
	assert.InDelta(t, 0.5, q.QualityScore, 1e-9)
	assert.Equal(t, []contracts.SourceName{contracts.SourceHospitalAdmissions}, q.FailedSources())
}

func TestDataset_PutClearsFailure(t *testing.T) {
	ds := NewDataset()
	ds.Fail(contracts.SourceTesting, errors.New("timeout"))
	ds.Put(contracts.SourceTesting, table.NewBuilder("testing", "pillar", "area").Build())

	assert.NoError(t, ds.Err(contracts.SourceTesting))
	_, err := ds.Get(contracts.SourceTesting)
	assert.NoError(t, err)
}
