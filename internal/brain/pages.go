package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s6_report"
	"github.com/wonny/covid-report/internal/table"
)

// pageSources lists the upstream datasets cited under each page
var pageSources = map[string][]contracts.SourceName{
	s6_report.PageIndex: {
		contracts.SourceUKCases, contracts.SourceLTLACases, contracts.SourceNHSDeaths,
		contracts.SourceTriageOnline, contracts.SourceTriagePathways,
		contracts.SourceHospitalAdmissions, contracts.SourceAgeRates, contracts.SourceScotlandCases,
	},
	s6_report.PageTesting: {contracts.SourcePublishedCases, contracts.SourceTesting},
	s6_report.PageMap:     {contracts.SourceLTLACases},
	s6_report.PageAreas:   {contracts.SourceLTLACases},
	s6_report.PageApp:     {contracts.SourceAppExposures, contracts.SourceRiskyVenues},
}

var pageTitles = map[string]string{
	s6_report.PageIndex:   "UK COVID-19 dashboard",
	s6_report.PageTesting: "Testing",
	s6_report.PageMap:     "Case rate map",
	s6_report.PageAreas:   "Local authorities",
	s6_report.PageApp:     "NHS COVID-19 app",
}

// runS6 builds and writes every requested page
func (o *Orchestrator) runS6(ctx context.Context, r *run, pages []string) error {
	charts, heat, err := o.chartBuilders()
	if err != nil {
		return err
	}

	for _, name := range pages {
		p := &pageBuilder{o: o, r: r, name: name}
		switch name {
		case s6_report.PageIndex:
			p.index(charts, heat)
		case s6_report.PageTesting:
			p.testing(charts)
		case s6_report.PageMap:
			p.mapPage()
		case s6_report.PageAreas:
			p.areas(heat)
		case s6_report.PageApp:
			p.app(charts)
		}

		path, err := o.renderer.Render(ctx, p.page())
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		r.result.Pages = append(r.result.Pages, path)
	}
	return nil
}

func (o *Orchestrator) chartBuilders() (*s6_report.ChartBuilder, *s6_report.ChartBuilder, error) {
	since, err := optionalDay(o.policy.Charts.Since)
	if err != nil {
		return nil, nil, fmt.Errorf("charts.since: %w", err)
	}
	heatSince, err := optionalDay(o.policy.Charts.HeatmapSince)
	if err != nil {
		return nil, nil, fmt.Errorf("charts.heatmap_since: %w", err)
	}
	charts := s6_report.NewChartBuilder(o.settings.AssetsHost, since)
	return charts, charts.WithSince(heatSince), nil
}

func optionalDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return table.ParseDay(s)
}

// pageBuilder collects the guarded sections of one page
type pageBuilder struct {
	o        *Orchestrator
	r        *run
	name     string
	sections []s6_report.Section
	scores   *contracts.ScoreSet
	mapData  *contracts.MapData
}

// add builds one section. An error or a panic in build omits the section,
// is logged at error and counted; the rest of the page is unaffected.
func (p *pageBuilder) add(key, title string, build func() (s6_report.Chart, error)) {
	chart, err := guard(build)

	sec := s6_report.Section{Key: key, Title: title, Chart: chart}
	outcome := contracts.SectionOutcome{Page: p.name, Section: key, OK: err == nil}
	if err != nil {
		sec.Chart = nil
		sec.Error = err.Error()
		outcome.Error = err.Error()

		p.r.log.WithError(err).WithFields(map[string]interface{}{
			"page":    p.name,
			"section": key,
		}).Error("Section omitted")
	}

	p.o.metrics.SectionRendered(p.name, key, outcome.OK)
	p.r.result.Sections = append(p.r.result.Sections, outcome)
	p.sections = append(p.sections, sec)
}

func guard(build func() (s6_report.Chart, error)) (chart s6_report.Chart, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			chart = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	chart, err = build()
	if err != nil {
		return nil, err
	}
	return chart, nil
}

func (p *pageBuilder) page() s6_report.Page {
	citations := make([]contracts.Citation, 0)
	for _, src := range pageSources[p.name] {
		t, err := p.r.ds.Get(src)
		if err != nil || t.Provenance().IsZero() {
			continue
		}
		citations = append(citations, t.Provenance().Citation())
	}

	return s6_report.Page{
		Name:            p.name,
		Title:           pageTitles[p.name],
		Sections:        p.sections,
		Scores:          p.scores,
		Sources:         contracts.DedupeCitations(citations),
		MapData:         p.mapData,
		ProvisionalDays: p.o.policy.Smoothing.ProvisionalDays,
		GeneratedAt:     p.o.clock.Now(),
		RunID:           p.r.id,
	}
}

func (p *pageBuilder) index(charts, heat *s6_report.ChartBuilder) {
	a := &p.r.a

	p.add("confirmed_cases", "Confirmed cases (UK)", func() (s6_report.Chart, error) {
		series, err := withProvisionalTail(a.ukCases)
		if err != nil {
			return nil, err
		}
		return charts.Line("New cases by specimen date, 7-day average", "cases", series)
	})
	p.add("regional_cases", "Cases by NHS region", func() (s6_report.Chart, error) {
		return lineFromFinal(charts, "New cases per 100,000 by NHS region", "per 100k", a.regionalRates)
	})
	p.add("regional_deaths", "Deaths by NHS region", func() (s6_report.Chart, error) {
		return lineFromFinal(charts, "Deaths within 28 days of a positive test", "deaths", a.deaths)
	})
	p.add("triage_online", "NHS 111 online", func() (s6_report.Chart, error) {
		return lineFromFinal(charts, "NHS 111 online COVID-19 assessments", "assessments", a.onlineSmooth)
	})
	p.add("triage_pathways", "NHS Pathways triage", func() (s6_report.Chart, error) {
		return lineFromFinal(charts, "NHS Pathways COVID-19 triages (111 and 999)", "triages", a.pathwaySmooth)
	})
	p.add("hospital_admissions", "Hospital admissions", func() (s6_report.Chart, error) {
		return lineFromFinal(charts, "Hospital admissions by NHS region", "admissions", a.admissions)
	})
	p.add("age_heatmap", "Cases by age (England)", func() (s6_report.Chart, error) {
		t, err := p.r.ds.Get(contracts.SourceAgeRates)
		if err != nil {
			return nil, err
		}
		return heat.HeatMap("Case rate per 100,000 by age", t, "age_band", nil)
	})
	p.add("scotland_cases", "Scotland", func() (s6_report.Chart, error) {
		series, err := withProvisionalTail(a.scotlandCases)
		if err != nil {
			return nil, err
		}
		return charts.Line("New cases in Scotland, 7-day average", "cases", series)
	})

	if a.scoresErr != nil {
		p.r.log.WithError(a.scoresErr).Error("Score table omitted")
		return
	}
	p.scores = a.scores
}

func (p *pageBuilder) testing(charts *s6_report.ChartBuilder) {
	a := &p.r.a

	p.add("positivity", "Test positivity", func() (s6_report.Chart, error) {
		t, err := a.positivity.get()
		if err != nil {
			return nil, err
		}
		series, err := s6_report.SeriesFromTable(t)
		if err != nil {
			return nil, err
		}
		return charts.Line("Cases as a share of pillar 1 and 2 tests", "%", series)
	})
	p.add("test_capacity", "Tests processed", func() (s6_report.Chart, error) {
		t, err := a.testCapacity.get()
		if err != nil {
			return nil, err
		}
		series, err := s6_report.SeriesFromTable(t)
		if err != nil {
			return nil, err
		}
		return charts.StackedBar("Tests processed by pillar", "tests", series)
	})
}

func (p *pageBuilder) mapPage() {
	a := &p.r.a
	if a.mapErr != nil {
		p.r.log.WithError(a.mapErr).Error("Map data omitted")
		return
	}
	p.mapData = a.mapData
}

// areas draws one heatmap of local authority case rates per NHS region
func (p *pageBuilder) areas(heat *s6_report.ChartBuilder) {
	a := &p.r.a
	lookup := p.r.ref.LARegion

	for _, region := range lookup.Regions() {
		codes := make(map[string]bool)
		for _, c := range lookup.CodesIn(region) {
			codes[c] = true
		}

		p.add(s6_report.Slugify(region), region, func() (s6_report.Chart, error) {
			rates, err := a.ltlaRates.get()
			if err != nil {
				return nil, err
			}
			inRegion, err := rates.Select("gss_code", func(code string) bool { return codes[code] })
			if err != nil {
				return nil, err
			}
			if inRegion.NumRows() == 0 {
				return nil, fmt.Errorf("no local authority data for %s", region)
			}
			return heat.HeatMap(region+": cases per 100,000", inRegion, "gss_code", func(code string) string {
				if name, ok := lookup.DisplayName(code); ok {
					return name
				}
				return code
			})
		})
	}
}

func (p *pageBuilder) app(charts *s6_report.ChartBuilder) {
	a := &p.r.a

	p.add("risky_venues", "Risky venue alerts", func() (s6_report.Chart, error) {
		return barFrom(charts, "Risky venue alerts by venue type", "venues", a.riskyVenues)
	})
	p.add("app_keys", "Diagnosis keys by region", func() (s6_report.Chart, error) {
		t, err := a.appKeysRegion.get()
		if err != nil {
			return nil, err
		}
		series, err := s6_report.SeriesFromTable(t)
		if err != nil {
			return nil, err
		}
		return charts.Line("Diagnosis keys published by region", "keys", series)
	})
	p.add("app_keys_risk", "Diagnosis keys by transmission risk", func() (s6_report.Chart, error) {
		return barFrom(charts, "Diagnosis keys by transmission risk interval", "keys", a.appKeysRisk)
	})
}

func lineFromFinal(charts *s6_report.ChartBuilder, title, yName string, s smoothed) (s6_report.Chart, error) {
	if s.err != nil {
		return nil, s.err
	}
	series, err := s6_report.SeriesFromTable(s.res.Final)
	if err != nil {
		return nil, err
	}
	return charts.Line(title, yName, series)
}

func barFrom(charts *s6_report.ChartBuilder, title, yName string, d derived) (s6_report.Chart, error) {
	t, err := d.get()
	if err != nil {
		return nil, err
	}
	series, err := s6_report.SeriesFromTable(t)
	if err != nil {
		return nil, err
	}
	return charts.StackedBar(title, yName, series)
}

// withProvisionalTail returns each row's final series plus a dashed series
// for the dates the final one does not cover yet
func withProvisionalTail(s smoothed) ([]s6_report.Series, error) {
	if s.err != nil {
		return nil, s.err
	}
	final, err := s6_report.SeriesFromTable(s.res.Final)
	if err != nil {
		return nil, err
	}

	tail := s.res.Provisional
	if last, ok := s.res.Final.LastDate(); ok {
		// 확정 구간 마지막 날부터 이어서 그림
		tail = tail.Since(last)
	}
	provisional, err := s6_report.SeriesFromTable(tail)
	if err != nil {
		return nil, err
	}

	out := make([]s6_report.Series, 0, len(final)+len(provisional))
	for _, f := range final {
		if len(f.Values) > 0 {
			out = append(out, f)
		}
	}
	for _, pr := range provisional {
		pr.Name += " (provisional)"
		pr.Dashed = true
		out = append(out, pr)
	}
	if len(out) == 0 {
		return nil, errors.New("no smoothed values")
	}
	return out, nil
}
