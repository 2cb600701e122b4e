package s6_report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wonny/covid-report/internal/table"
)

// Chart is anything that renders itself to a standalone HTML document.
// Every go-echarts chart type satisfies it.
type Chart interface {
	Render(w io.Writer) error
}

// echarts treats "-" as an empty point and leaves a gap in the line
const emptyPoint = "-"

// viridis, as used for heatmaps elsewhere in the codebase
var heatColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// Series is one named trace over a date axis
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
	Dashed bool // 미확정 구간 표시
}

// SeriesFromTable returns one series per row of a single-dimension table
func SeriesFromTable(t *table.Table) ([]Series, error) {
	if len(t.Dims()) != 1 {
		return nil, fmt.Errorf("%s: chart needs one dimension, has %v", t.Name(), t.Dims())
	}
	dates := t.Dates()
	out := make([]Series, 0, t.NumRows())
	for _, k := range t.Keys() {
		row, _ := t.Row(k...)
		out = append(out, Series{Name: k.String(), Dates: dates, Values: row})
	}
	return out, nil
}

// ChartBuilder creates the report's go-echarts charts with shared styling
type ChartBuilder struct {
	assetsHost string
	since      time.Time
}

// NewChartBuilder creates a builder. Points before since are not drawn;
// a zero since keeps everything.
func NewChartBuilder(assetsHost string, since time.Time) *ChartBuilder {
	return &ChartBuilder{assetsHost: assetsHost, since: since}
}

// WithSince returns a builder with a different start date
func (b *ChartBuilder) WithSince(since time.Time) *ChartBuilder {
	return &ChartBuilder{assetsHost: b.assetsHost, since: since}
}

func (b *ChartBuilder) init(title, height string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:  title,
		Width:      "100%",
		Height:     height,
		AssetsHost: b.assetsHost,
	})
}

// Line draws series over the union of their dates
func (b *ChartBuilder) Line(title, yName string, series []Series) (*charts.Line, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: no series to draw", title)
	}

	axis := b.dateAxis(series)
	if len(axis) == 0 {
		return nil, fmt.Errorf("%s: no dates since %s", title, b.since.Format(table.DateLayout))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		b.init(title, "420px"),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	)

	labels := make([]string, len(axis))
	for i, d := range axis {
		labels[i] = d.Format(table.DateLayout)
	}
	line.SetXAxis(labels)

	for _, s := range series {
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		}
		if s.Dashed {
			seriesOpts = append(seriesOpts, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
		}
		line.AddSeries(s.Name, lineData(axis, s), seriesOpts...)
	}

	return line, nil
}

// StackedBar draws one stacked bar per date, one stack segment per series
func (b *ChartBuilder) StackedBar(title, yName string, series []Series) (*charts.Bar, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: no series to draw", title)
	}
	axis := b.dateAxis(series)
	if len(axis) == 0 {
		return nil, fmt.Errorf("%s: no dates since %s", title, b.since.Format(table.DateLayout))
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		b.init(title, "420px"),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)

	labels := make([]string, len(axis))
	for i, d := range axis {
		labels[i] = d.Format(table.DateLayout)
	}
	bar.SetXAxis(labels)

	for _, s := range series {
		bar.AddSeries(s.Name, barData(axis, s), charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))
	}
	return bar, nil
}

// HeatMap draws dim labels against dates. rowName maps a label to its
// display name; nil shows labels as they are.
func (b *ChartBuilder) HeatMap(title string, t *table.Table, dim string, rowName func(string) string) (*charts.HeatMap, error) {
	if len(t.Dims()) != 1 {
		return nil, fmt.Errorf("%s: heatmap needs one dimension, has %v", t.Name(), t.Dims())
	}
	if _, ok := t.DimIndex(dim); !ok {
		return nil, fmt.Errorf("%s: no dimension %q", t.Name(), dim)
	}
	if !b.since.IsZero() {
		t = t.Since(b.since)
	}
	if t.Empty() {
		return nil, fmt.Errorf("%s: nothing to draw", title)
	}

	dates := t.Dates()
	xLabels := make([]string, len(dates))
	for i, d := range dates {
		xLabels[i] = d.Format(table.DateLayout)
	}

	keys := t.Keys()
	yLabels := make([]string, len(keys))
	for i, k := range keys {
		yLabels[i] = k[0]
		if rowName != nil {
			yLabels[i] = rowName(k[0])
		}
	}

	data := make([]opts.HeatMapData, 0, len(keys)*len(dates))
	maxV := 0.0
	for i := range keys {
		for j := range dates {
			v := t.Value(i, j)
			if math.IsNaN(v) {
				data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, emptyPoint}})
				continue
			}
			maxV = math.Max(maxV, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, round(v, 1)}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		b.init(title, fmt.Sprintf("%dpx", 120+18*len(keys))),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxV),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.SetXAxis(xLabels).AddSeries(title, data)

	return hm, nil
}

// dateAxis returns the sorted union of series dates on or after since
func (b *ChartBuilder) dateAxis(series []Series) []time.Time {
	seen := make(map[time.Time]bool)
	for _, s := range series {
		for _, d := range s.Dates {
			if !b.since.IsZero() && d.Before(b.since) {
				continue
			}
			seen[d] = true
		}
	}
	axis := make([]time.Time, 0, len(seen))
	for d := range seen {
		axis = append(axis, d)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	return axis
}

func seriesIndex(s Series) map[time.Time]float64 {
	m := make(map[time.Time]float64, len(s.Dates))
	for i, d := range s.Dates {
		if i < len(s.Values) {
			m[d] = s.Values[i]
		}
	}
	return m
}

func lineData(axis []time.Time, s Series) []opts.LineData {
	byDate := seriesIndex(s)
	out := make([]opts.LineData, len(axis))
	for i, d := range axis {
		v, ok := byDate[d]
		if !ok || math.IsNaN(v) {
			out[i] = opts.LineData{Value: emptyPoint}
			continue
		}
		out[i] = opts.LineData{Value: round(v, 3)}
	}
	return out
}

func barData(axis []time.Time, s Series) []opts.BarData {
	byDate := seriesIndex(s)
	out := make([]opts.BarData, len(axis))
	for i, d := range axis {
		v, ok := byDate[d]
		if !ok || math.IsNaN(v) {
			out[i] = opts.BarData{Value: emptyPoint}
			continue
		}
		out[i] = opts.BarData{Value: round(v, 3)}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
