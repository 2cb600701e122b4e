package appdata

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

const (
	publisher   = "Russ Garrett"
	title       = "NHS COVID-19 App Data"
	homepageURL = "https://github.com/russss/nhs-covid19-app-data"
)

// Client reads the NHS COVID-19 app data repository CSVs
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	clock        clockwork.Clock
	exposuresURL string
	venuesURL    string
}

// NewClient creates a new app data client
func NewClient(httpClient *httputil.Client, exposuresURL, venuesURL string, clock clockwork.Clock, log *logger.Logger) *Client {
	return &Client{
		httpClient:   httpClient,
		logger:       log.WithField("client", "appdata"),
		clock:        clock,
		exposuresURL: exposuresURL,
		venuesURL:    venuesURL,
	}
}

// ExposuresURL returns the exposures CSV location
func (c *Client) ExposuresURL() string { return c.exposuresURL }

// VenuesURL returns the risky venues CSV location
func (c *Client) VenuesURL() string { return c.venuesURL }

// Exposures returns published diagnosis keys by region and transmission-risk interval
func (c *Client) Exposures(ctx context.Context) (*table.Table, error) {
	data, err := c.httpClient.GetBytes(ctx, c.exposuresURL)
	if err != nil {
		return nil, err
	}
	t, err := ParseExposures(data)
	if err != nil {
		return nil, err
	}
	return c.provenance(contracts.SourceAppExposures, t), nil
}

// RiskyVenues returns risky venue notifications by venue type
func (c *Client) RiskyVenues(ctx context.Context) (*table.Table, error) {
	data, err := c.httpClient.GetBytes(ctx, c.venuesURL)
	if err != nil {
		return nil, err
	}
	t, err := ParseRiskyVenues(data)
	if err != nil {
		return nil, err
	}
	return c.provenance(contracts.SourceRiskyVenues, t), nil
}

// ParseExposures parses exposures.csv (date, region, interval, keys)
func ParseExposures(data []byte) (*table.Table, error) {
	return parseCounts(contracts.SourceAppExposures, data, "keys", "region", "interval")
}

// ParseRiskyVenues parses risky_venues.csv (date, venue_type, count)
func ParseRiskyVenues(data []byte) (*table.Table, error) {
	return parseCounts(contracts.SourceRiskyVenues, data, "count", "venue_type")
}

// parseCounts sums a count column by date and the given label columns
func parseCounts(source contracts.SourceName, data []byte, valueCol string, dims ...string) (*table.Table, error) {
	name := string(source)
	required := append([]string{"date", valueCol}, dims...)
	c, err := s0_data.ParseCSV(name, data, required...)
	if err != nil {
		return nil, err
	}

	b := table.NewBuilder(name, dims...)
	labels := make([]string, len(dims))
	for _, rec := range c.Records {
		d, err := table.ParseDay(c.Get(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("%s: bad date %q: %w", name, c.Get(rec, "date"), err)
		}
		v, err := s0_data.ParseCount(c.Get(rec, valueCol))
		if err != nil {
			return nil, fmt.Errorf("%s: bad count: %w", name, err)
		}
		for i, dim := range dims {
			labels[i] = c.Get(rec, dim)
		}
		if err := b.Add(d, v, labels...); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// provenance stamps app tables as of today; the repository has no publish date
func (c *Client) provenance(source contracts.SourceName, t *table.Table) *table.Table {
	return t.WithProvenance(contracts.Provenance{
		Source:    source,
		Publisher: publisher,
		Title:     title,
		URL:       homepageURL,
		AsOf:      table.Day(c.clock.Now()),
	})
}
