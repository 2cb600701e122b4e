package scotland

import (
	"context"
	"fmt"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

// Client downloads the Public Health Scotland council-area trend file
// ⭐ SSOT: PHS 데이터 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	casesURL   string
}

// NewClient creates a new Public Health Scotland client
func NewClient(httpClient *httputil.Client, casesURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("client", "scotland"),
		casesURL:   casesURL,
	}
}

// CasesURL returns the CSV location
func (c *Client) CasesURL() string { return c.casesURL }

// Cases returns cumulative positive cases per council area (gss_code)
func (c *Client) Cases(ctx context.Context) (*table.Table, error) {
	data, err := c.httpClient.GetBytes(ctx, c.casesURL)
	if err != nil {
		return nil, err
	}

	t, err := ParseCases(data)
	if err != nil {
		return nil, err
	}

	p := contracts.Provenance{
		Source:    contracts.SourceScotlandCases,
		Publisher: "Public Health Scotland",
		Title:     "Coronavirus - COVID-19 - Management Information",
		URL:       c.casesURL,
	}
	if last, ok := t.LastDate(); ok {
		p.AsOf = last
	}

	c.logger.WithField("areas", t.NumRows()).Debug("Fetched Scottish cases")
	return t.WithProvenance(p), nil
}

// ParseCases parses trend_ca.csv (Date as YYYYMMDD, CA, CumulativePositive)
func ParseCases(data []byte) (*table.Table, error) {
	name := string(contracts.SourceScotlandCases)
	c, err := s0_data.ParseCSV(name, data, "Date", "CA", "CumulativePositive")
	if err != nil {
		return nil, err
	}

	b := table.NewBuilder(name, "gss_code")
	for _, rec := range c.Records {
		d, err := table.ParseDay(c.Get(rec, "Date"))
		if err != nil {
			return nil, fmt.Errorf("%s: bad date %q: %w", name, c.Get(rec, "Date"), err)
		}
		v, err := s0_data.ParseCount(c.Get(rec, "CumulativePositive"))
		if err != nil {
			return nil, fmt.Errorf("%s: bad count: %w", name, err)
		}
		if err := b.Set(d, v, c.Get(rec, "CA")); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
