package appdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/pkg/config"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

const exposuresCSV = `date,region,interval,keys
2020-10-30,EN,1,10
2020-10-30,EN,2,5
2020-10-31,WA,1,3
`

const venuesCSV = `date,venue_type,count
2020-10-30,restaurant,4
2020-10-30,pub,2
2020-10-30,pub,1
`

func TestParseExposures(t *testing.T) {
	tbl, err := ParseExposures([]byte(exposuresCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "interval"}, tbl.Dims())
	assert.Equal(t, 18.0, tbl.Sum())
	assert.Equal(t, []string{"1", "2"}, tbl.Labels("interval"))
}

func TestParseRiskyVenues(t *testing.T) {
	tbl, err := ParseRiskyVenues([]byte(venuesCSV))
	require.NoError(t, err)

	d := time.Date(2020, 10, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3.0, tbl.At(d, "pub"))
}

func TestParse_MissingColumn(t *testing.T) {
	_, err := ParseRiskyVenues([]byte("date,venue\n2020-10-30,pub\n"))
	require.Error(t, err)
	assert.True(t, contracts.IsFatal(err))
}

func TestClient_AsOfToday(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exposures.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exposuresCSV))
	})
	mux.HandleFunc("/risky_venues.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(venuesCSV))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	now := time.Date(2020, 11, 2, 17, 30, 0, 0, time.UTC)
	cfg := &config.Config{HTTP: config.HTTPConfig{Timeout: 5 * time.Second}}
	client := NewClient(httputil.New(cfg, logger.Nop()),
		server.URL+"/exposures.csv", server.URL+"/risky_venues.csv",
		clockwork.NewFakeClockAt(now), logger.Nop())

	exposures, err := client.Exposures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 11, 2, 0, 0, 0, 0, time.UTC), exposures.Provenance().AsOf)

	venues, err := client.RiskyVenues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Russ Garrett", venues.Provenance().Publisher)
}
