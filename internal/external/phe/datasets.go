package phe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/table"
)

// metric names in the v1 API
const (
	metricCumCasesBySpecimen = "cumCasesBySpecimenDate"
	metricCumCasesByPublish  = "cumCasesByPublishDate"
	metricPillarOneTests     = "newPillarOneTestsByPublishDate"
	metricPillarTwoTests     = "newPillarTwoTestsByPublishDate"
	metricAgeDemographics    = "newCasesBySpecimenDateAgeDemographics"
	metricDeathsByDeathDate  = "newDeaths28DaysByDeathDate"
	metricCumAdmissions      = "cumAdmissions"
)

// series fetches one metric as a table with a single dimension
func (c *Client) series(ctx context.Context, source contracts.SourceName, filters []string, labelField, metric, dim string) (*table.Table, error) {
	records, err := c.query(ctx, filters, map[string]string{
		"date":  "date",
		"label": labelField,
		"value": metric,
	})
	if err != nil {
		return nil, err
	}
	if err := requireFields(string(source), records, "date", "label", "value"); err != nil {
		return nil, err
	}

	b := table.NewBuilder(string(source), dim)
	for _, r := range records {
		d, err := table.ParseDay(r.str("date"))
		if err != nil {
			return nil, fmt.Errorf("%s: bad date %q: %w", source, r.str("date"), err)
		}
		if err := b.Set(d, r.num("value"), r.str("label")); err != nil {
			return nil, err
		}
	}

	return c.provenance(source, b.Build()), nil
}

// UKCases returns cumulative cases by specimen date per nation
func (c *Client) UKCases(ctx context.Context) (*table.Table, error) {
	return c.series(ctx, contracts.SourceUKCases,
		[]string{"areaType=nation"}, "areaName", metricCumCasesBySpecimen, "nation")
}

// LTLACases returns cumulative cases by specimen date per lower-tier local authority
func (c *Client) LTLACases(ctx context.Context) (*table.Table, error) {
	return c.series(ctx, contracts.SourceLTLACases,
		[]string{"areaType=ltla"}, "areaCode", metricCumCasesBySpecimen, "gss_code")
}

// PublishedCases returns UK cumulative cases by publish date
func (c *Client) PublishedCases(ctx context.Context) (*table.Table, error) {
	return c.series(ctx, contracts.SourcePublishedCases,
		[]string{"areaType=overview"}, "areaName", metricCumCasesByPublish, "area")
}

// NHSDeaths returns daily deaths by date of death per NHS region
func (c *Client) NHSDeaths(ctx context.Context) (*table.Table, error) {
	return c.series(ctx, contracts.SourceNHSDeaths,
		[]string{"areaType=nhsRegion"}, "areaName", metricDeathsByDeathDate, "region")
}

// HospitalAdmissions returns cumulative admissions per NHS region
func (c *Client) HospitalAdmissions(ctx context.Context) (*table.Table, error) {
	return c.series(ctx, contracts.SourceHospitalAdmissions,
		[]string{"areaType=nhsRegion"}, "areaName", metricCumAdmissions, "region")
}

// Testing returns new pillar 1 and pillar 2 tests by publish date
func (c *Client) Testing(ctx context.Context) (*table.Table, error) {
	records, err := c.query(ctx, []string{"areaType=overview"}, map[string]string{
		"date":    "date",
		"area":    "areaName",
		"pillar1": metricPillarOneTests,
		"pillar2": metricPillarTwoTests,
	})
	if err != nil {
		return nil, err
	}
	if err := requireFields(string(contracts.SourceTesting), records, "date", "area", "pillar1", "pillar2"); err != nil {
		return nil, err
	}

	b := table.NewBuilder(string(contracts.SourceTesting), "pillar", "area")
	for _, r := range records {
		d, err := table.ParseDay(r.str("date"))
		if err != nil {
			return nil, fmt.Errorf("testing: bad date %q: %w", r.str("date"), err)
		}
		for _, pillar := range []string{"pillar1", "pillar2"} {
			if err := b.Set(d, r.num(pillar), pillar, r.str("area")); err != nil {
				return nil, err
			}
		}
	}

	return c.provenance(contracts.SourceTesting, b.Build()), nil
}

// ageRate is one entry of the age demographics array
type ageRate struct {
	Age         string   `json:"age"`
	RollingRate *float64 `json:"rollingRate"`
}

// AgeRates returns the rolling case rate per 100k by age band for England
func (c *Client) AgeRates(ctx context.Context) (*table.Table, error) {
	records, err := c.query(ctx, []string{"areaType=nation", "areaName=England"}, map[string]string{
		"date": "date",
		"ages": metricAgeDemographics,
	})
	if err != nil {
		return nil, err
	}
	if err := requireFields(string(contracts.SourceAgeRates), records, "date", "ages"); err != nil {
		return nil, err
	}

	b := table.NewBuilder(string(contracts.SourceAgeRates), "age_band")
	for _, r := range records {
		d, err := table.ParseDay(r.str("date"))
		if err != nil {
			return nil, fmt.Errorf("age_rates: bad date %q: %w", r.str("date"), err)
		}

		var ages []ageRate
		if raw, ok := r["ages"]; ok {
			if err := json.Unmarshal(raw, &ages); err != nil {
				return nil, &contracts.SchemaMismatchError{
					Table:  string(contracts.SourceAgeRates),
					Detail: fmt.Sprintf("age demographics is not a list: %v", err),
				}
			}
		}
		for _, a := range ages {
			if a.RollingRate == nil || a.Age == "" {
				continue
			}
			if err := b.Set(d, *a.RollingRate, a.Age); err != nil {
				return nil, err
			}
		}
	}

	return c.provenance(contracts.SourceAgeRates, b.Build()), nil
}
