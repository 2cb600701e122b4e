package scotland

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/pkg/config"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

const trendCSV = `Date,CA,CAName,DailyPositive,CumulativePositive
20201030,S12000049,Glasgow City,250,"12,000"
20201031,S12000049,Glasgow City,260,"12,260"
20201031,S12000036,City of Edinburgh,*,*
`

func TestParseCases(t *testing.T) {
	tbl, err := ParseCases([]byte(trendCSV))
	require.NoError(t, err)

	d := time.Date(2020, 10, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 12260.0, tbl.At(d, "S12000049"))
	assert.True(t, math.IsNaN(tbl.At(d, "S12000036")))
	assert.True(t, math.IsNaN(tbl.At(d.AddDate(0, 0, -1), "S12000036")), "never reported")
}

func TestClient_Cases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(trendCSV))
	}))
	defer server.Close()

	cfg := &config.Config{HTTP: config.HTTPConfig{Timeout: 5 * time.Second}}
	client := NewClient(httputil.New(cfg, logger.Nop()), server.URL+"/trend_ca.csv", logger.Nop())

	tbl, err := client.Cases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceScotlandCases, tbl.Provenance().Source)
	assert.Equal(t, "Public Health Scotland", tbl.Provenance().Publisher)
}

func TestClient_Cases_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := &config.Config{HTTP: config.HTTPConfig{Timeout: 5 * time.Second}}
	client := NewClient(httputil.New(cfg, logger.Nop()), server.URL, logger.Nop())

	_, err := client.Cases(context.Background())
	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
