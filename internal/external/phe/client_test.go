package phe

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/pkg/config"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{HTTP: config.HTTPConfig{Timeout: 5 * time.Second}}
	return NewClient(httputil.New(cfg, logger.Nop()), server.URL+"/v1/data", logger.Nop())
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestSeries_FollowsPagination(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "areaType=ltla", r.URL.Query().Get("filters"))

		var structure map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("structure")), &structure))
		assert.Equal(t, "cumCasesBySpecimenDate", structure["value"])

		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"length":1,"data":[
				{"date":"2020-10-01","label":"E06000001","value":90}
			],"pagination":{"next":null}}`))
			return
		}
		_, _ = w.Write([]byte(`{"length":2,"data":[
			{"date":"2020-10-02","label":"E06000001","value":100},
			{"date":"2020-10-02","label":"E09000001","value":null}
		],"pagination":{"next":"/v1/data?filters=areaType%3Dltla&structure=%7B%22date%22%3A%22date%22%2C%22label%22%3A%22areaCode%22%2C%22value%22%3A%22cumCasesBySpecimenDate%22%7D&page=2"}}`))
	})

	tbl, err := client.LTLACases(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"gss_code"}, tbl.Dims())
	assert.Equal(t, 2, tbl.NumDates())
	assert.Equal(t, 90.0, tbl.At(day("2020-10-01"), "E06000001"))
	assert.Equal(t, 100.0, tbl.At(day("2020-10-02"), "E06000001"))
	assert.True(t, math.IsNaN(tbl.At(day("2020-10-02"), "E09000001")), "null is missing, not zero")

	prov := tbl.Provenance()
	assert.Equal(t, contracts.SourceLTLACases, prov.Source)
	assert.Equal(t, "Public Health England", prov.Publisher)
	assert.Equal(t, day("2020-10-02"), prov.AsOf)
}

func TestTesting(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"date":"2020-10-01","area":"United Kingdom","pillar1":100,"pillar2":200}
		],"pagination":{"next":null}}`))
	})

	tbl, err := client.Testing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pillar", "area"}, tbl.Dims())
	assert.Equal(t, 100.0, tbl.At(day("2020-10-01"), "pillar1", "United Kingdom"))
	assert.Equal(t, 200.0, tbl.At(day("2020-10-01"), "pillar2", "United Kingdom"))
}

func TestAgeRates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "areaType=nation;areaName=England", r.URL.Query().Get("filters"))
		_, _ = w.Write([]byte(`{"data":[
			{"date":"2020-10-01","ages":[{"age":"00_04","rollingRate":12.5},{"age":"05_09","rollingRate":null}]}
		],"pagination":{"next":null}}`))
	})

	tbl, err := client.AgeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"00_04"}, tbl.Labels("age_band"))
	assert.Equal(t, 12.5, tbl.At(day("2020-10-01"), "00_04"))
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		fatal   bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":`))
			},
		},
		{
			name: "missing field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":[{"date":"2020-10-01","label":"London"}],"pagination":{}}`))
			},
			fatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.HospitalAdmissions(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.fatal, contracts.IsFatal(err))
		})
	}
}

func TestQuery_NoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tbl, err := client.NHSDeaths(context.Background())
	require.NoError(t, err)
	assert.True(t, tbl.Empty())
}
