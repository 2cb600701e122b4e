package phe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

const (
	publisher   = "Public Health England"
	title       = "Coronavirus (COVID-19) in the UK"
	homepageURL = "https://coronavirus.data.gov.uk"

	// 페이지네이션 무한루프 방지
	maxPages = 200
)

// Client talks to the coronavirus.data.gov.uk v1 API
// ⭐ SSOT: PHE API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new PHE API client. baseURL is the /v1/data endpoint.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("client", "phe"),
		baseURL:    baseURL,
	}
}

// BaseURL returns the API endpoint
func (c *Client) BaseURL() string { return c.baseURL }

// record is one row of the API response, fields left raw until used
type record map[string]json.RawMessage

// apiResponse is the v1 envelope
type apiResponse struct {
	Length     int      `json:"length"`
	Data       []record `json:"data"`
	Pagination struct {
		Current string  `json:"current"`
		Next    *string `json:"next"`
	} `json:"pagination"`
}

// query fetches every page for filters and structure
func (c *Client) query(ctx context.Context, filters []string, structure map[string]string) ([]record, error) {
	structJSON, err := json.Marshal(structure)
	if err != nil {
		return nil, fmt.Errorf("encode structure: %w", err)
	}

	params := url.Values{}
	params.Set("filters", strings.Join(filters, ";"))
	params.Set("structure", string(structJSON))
	params.Set("format", "json")

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	next := c.baseURL + "?" + params.Encode()

	var records []record
	seen := make(map[string]bool)
	for page := 1; next != ""; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("pagination exceeded %d pages", maxPages)
		}
		if seen[next] {
			break
		}
		seen[next] = true

		// 204 No Content = 결과 없음, resp는 빈 채로 남음
		var resp apiResponse
		if err := c.httpClient.GetJSON(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		records = append(records, resp.Data...)

		next = ""
		if resp.Pagination.Next != nil && *resp.Pagination.Next != "" {
			ref, err := url.Parse(*resp.Pagination.Next)
			if err != nil {
				return nil, fmt.Errorf("parse next page: %w", err)
			}
			next = base.ResolveReference(ref).String()
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"filters": strings.Join(filters, ";"),
		"records": len(records),
	}).Debug("Fetched PHE data")

	return records, nil
}

func (r record) str(key string) string {
	raw, ok := r[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// num returns NaN for null or absent fields
func (r record) num(key string) float64 {
	raw, ok := r[key]
	if !ok {
		return math.NaN()
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return math.NaN()
	}
	return *v
}

// requireFields reports a schema mismatch when the first record lacks a field
func requireFields(name string, records []record, fields ...string) error {
	if len(records) == 0 {
		return nil
	}
	for _, f := range fields {
		if _, ok := records[0][f]; !ok {
			return &contracts.SchemaMismatchError{
				Table:  name,
				Detail: fmt.Sprintf("API response has no field %q", f),
			}
		}
	}
	return nil
}

// provenance stamps the table with the PHE citation, as of its last date
func (c *Client) provenance(source contracts.SourceName, t *table.Table) *table.Table {
	p := contracts.Provenance{
		Source:    source,
		Publisher: publisher,
		Title:     title,
		URL:       homepageURL,
	}
	if last, ok := t.LastDate(); ok {
		p.AsOf = last
	}
	return t.WithProvenance(p)
}
