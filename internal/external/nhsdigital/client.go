package nhsdigital

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

const (
	publisher = "NHS"
	title     = "Potential COVID-19 symptoms reported through NHS Pathways and 111 online"
)

// Client scrapes the NHS Digital MI publication for the triage CSVs
// ⭐ SSOT: NHS Digital 게시물 스크래핑은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	pageURL    string
}

// NewClient creates a new NHS Digital client for the publication page
func NewClient(httpClient *httputil.Client, pageURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("client", "nhsdigital"),
		pageURL:    pageURL,
	}
}

// PageURL returns the publication landing page
func (c *Client) PageURL() string { return c.pageURL }

// Links holds the CSV downloads found on the publication page
type Links struct {
	Online   string
	Pathways string
}

// FindLinks fetches the publication page and picks out the CSV links
func (c *Client) FindLinks(ctx context.Context) (Links, error) {
	body, err := c.httpClient.GetBytes(ctx, c.pageURL)
	if err != nil {
		return Links{}, err
	}

	base, err := url.Parse(c.pageURL)
	if err != nil {
		return Links{}, fmt.Errorf("parse page URL: %w", err)
	}

	return parseLinks(body, base)
}

// parseLinks finds the 111 online and NHS Pathways CSV links
func parseLinks(html []byte, base *url.URL) (Links, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Links{}, fmt.Errorf("parse publication page: %w", err)
	}

	var links Links
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.HasSuffix(strings.ToLower(strings.SplitN(href, "?", 2)[0]), ".csv") {
			return
		}

		// 링크 텍스트와 파일명 둘 다 확인
		text := strings.ToLower(a.Text() + " " + href)
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()

		switch {
		case links.Online == "" && (strings.Contains(text, "111 online") || strings.Contains(text, "111_online") || strings.Contains(text, "111%20online")):
			links.Online = abs
		case links.Pathways == "" && strings.Contains(text, "pathways"):
			links.Pathways = abs
		}
	})

	if links.Online == "" || links.Pathways == "" {
		return links, fmt.Errorf("publication page lists no triage CSVs (online=%q, pathways=%q)", links.Online, links.Pathways)
	}
	return links, nil
}

// Online returns 111 online triage counts by ccg, age band and sex
func (c *Client) Online(ctx context.Context) (*table.Table, error) {
	links, err := c.FindLinks(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.httpClient.GetBytes(ctx, links.Online)
	if err != nil {
		return nil, err
	}

	t, err := ParseOnline(data)
	if err != nil {
		return nil, err
	}
	return c.provenance(contracts.SourceTriageOnline, t), nil
}

// Pathways returns NHS Pathways triage counts by ccg, age band, sex and site type
func (c *Client) Pathways(ctx context.Context) (*table.Table, error) {
	links, err := c.FindLinks(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.httpClient.GetBytes(ctx, links.Pathways)
	if err != nil {
		return nil, err
	}

	t, err := ParsePathways(data)
	if err != nil {
		return nil, err
	}
	return c.provenance(contracts.SourceTriagePathways, t), nil
}

// ParseOnline parses the 111 online CSV
// (journeydate, sex, ageband, ccgcode, ccgname, Total)
func ParseOnline(data []byte) (*table.Table, error) {
	name := string(contracts.SourceTriageOnline)
	c, err := s0_data.ParseCSV(name, data, "journeydate", "sex", "ageband", "ccgcode", "Total")
	if err != nil {
		return nil, err
	}

	b := table.NewBuilder(name, "ccg", "age_band", "sex")
	for _, rec := range c.Records {
		d, err := parseDate(c.Get(rec, "journeydate"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v, err := s0_data.ParseCount(c.Get(rec, "Total"))
		if err != nil {
			return nil, fmt.Errorf("%s: bad count: %w", name, err)
		}
		// 같은 날 같은 그룹이 여러 줄이면 합산
		if err := b.Add(d, v, c.Get(rec, "ccgcode"), c.Get(rec, "ageband"), c.Get(rec, "sex")); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// ParsePathways parses the NHS Pathways CSV
// (SiteType, Call Date, Sex, AgeBand, CCGCode, CCGName, TriageCount)
func ParsePathways(data []byte) (*table.Table, error) {
	name := string(contracts.SourceTriagePathways)
	c, err := s0_data.ParseCSV(name, data, "SiteType", "Call Date", "Sex", "AgeBand", "CCGCode", "TriageCount")
	if err != nil {
		return nil, err
	}

	b := table.NewBuilder(name, "ccg", "age_band", "sex", "site_type")
	for _, rec := range c.Records {
		d, err := parseDate(c.Get(rec, "Call Date"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v, err := s0_data.ParseCount(c.Get(rec, "TriageCount"))
		if err != nil {
			return nil, fmt.Errorf("%s: bad count: %w", name, err)
		}
		if err := b.Add(d, v, c.Get(rec, "CCGCode"), c.Get(rec, "AgeBand"), c.Get(rec, "Sex"), c.Get(rec, "SiteType")); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// parseDate accepts the day-first format the MI files use and ISO dates
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return table.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

func (c *Client) provenance(source contracts.SourceName, t *table.Table) *table.Table {
	p := contracts.Provenance{
		Source:    source,
		Publisher: publisher,
		Title:     title,
		URL:       c.pageURL,
	}
	if last, ok := t.LastDate(); ok {
		p.AsOf = last
	}
	return t.WithProvenance(p)
}
