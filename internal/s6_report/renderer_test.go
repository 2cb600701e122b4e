package s6_report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/pkg/logger"
)

type stubChart struct {
	body string
	err  error
}

func (c stubChart) Render(w io.Writer) error {
	if c.err != nil {
		return c.err
	}
	_, err := io.WriteString(w, c.body)
	return err
}

func newRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRenderer(dir, logger.Nop())
	require.NoError(t, err)
	return r, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRender_IndexWithOmittedSection(t *testing.T) {
	r, dir := newRenderer(t)

	page := Page{
		Name:  PageIndex,
		Title: "UK COVID-19",
		Sections: []Section{
			{Key: "confirmed_cases", Title: "Confirmed cases", Chart: stubChart{body: "<div>cases</div>"}},
			{Key: "hospital_admissions", Title: "Hospital admissions", Error: "source unavailable"},
			{Key: "regional_deaths", Title: "Deaths by region", Chart: stubChart{err: errors.New("boom")}},
		},
		Scores: &contracts.ScoreSet{
			AsOf: d0,
			Regions: []contracts.RegionScore{
				{Region: "London", Score: 0.42, Direction: contracts.DirectionRising, Components: map[string]contracts.ComponentTrend{"cases": {}}},
				{Region: "South West", Score: -0.1, Direction: contracts.DirectionFalling, Partial: true, Missing: []string{"admissions"}},
			},
		},
		Sources: []contracts.Citation{
			{Publisher: "Public Health England", Title: "Coronavirus (COVID-19) in the UK", URL: "https://coronavirus.data.gov.uk"},
		},
		ProvisionalDays: 7,
		GeneratedAt:     time.Date(2020, 11, 1, 17, 0, 0, 0, time.UTC),
		RunID:           "run-1",
	}

	path, err := r.Render(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index.html"), path)

	html := readFile(t, path)
	assert.Contains(t, html, `src="charts/index-confirmed_cases.html"`)
	assert.NotContains(t, html, "index-regional_deaths.html")
	assert.Contains(t, html, "Hospital admissions")
	assert.Contains(t, html, "Deaths by region")
	assert.Contains(t, html, "London")
	assert.Contains(t, html, "+0.42")
	assert.NotContains(t, html, "&#43;", "the score sign is not escaped")
	assert.Contains(t, html, "missing admissions")
	assert.Contains(t, html, "Public Health England")
	assert.Contains(t, html, "run-1")

	assert.Equal(t, "<div>cases</div>", readFile(t, filepath.Join(dir, "charts", "index-confirmed_cases.html")))
	_, err = os.Stat(filepath.Join(dir, "charts", "index-regional_deaths.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestRender_MapWritesJSON(t *testing.T) {
	r, dir := newRenderer(t)

	rate := 12.5
	data := &contracts.MapData{
		Dates:           []string{"2020-10-01", "2020-10-02"},
		Provisional:     []bool{false, true},
		ProvisionalDays: 1,
		PerPopulation:   100000,
		Areas: map[string]contracts.AreaSeries{
			"E06000001": {Name: "Hartlepool", Population: 93663, Rate: []*float64{&rate, nil}},
		},
	}

	path, err := r.Render(context.Background(), Page{Name: PageMap, Title: "Map", MapData: data})
	require.NoError(t, err)

	raw := readFile(t, filepath.Join(dir, "data", "map.json"))
	var decoded contracts.MapData
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, data.Dates, decoded.Dates)
	assert.Nil(t, decoded.Areas["E06000001"].Rate[1])

	html := readFile(t, path)
	assert.Contains(t, html, "Hartlepool")
	assert.Contains(t, html, "const mapData")
}

func TestRender_UnknownPage(t *testing.T) {
	r, _ := newRenderer(t)
	_, err := r.Render(context.Background(), Page{Name: "nope"})
	assert.Error(t, err)
}

func TestRender_Cancelled(t *testing.T) {
	r, _ := newRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, Page{Name: PageApp, Sections: []Section{{Key: "x", Chart: stubChart{}}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "north-east-and-yorkshire", Slugify(" North East and Yorkshire "))
}
