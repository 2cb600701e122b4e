package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/observability"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/pkg/logger"
)

// Collector fetches every configured source, one at a time
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	sources []s0_data.Source
	metrics *observability.Metrics
	clock   clockwork.Clock
	logger  *logger.Logger
}

// FetchResult represents the result of one source fetch
type FetchResult struct {
	Source   contracts.SourceName
	Rows     int
	Dates    int
	Duration time.Duration
	Error    error
}

// NewCollector creates a new Collector instance
func NewCollector(sources []s0_data.Source, metrics *observability.Metrics, clock clockwork.Clock, log *logger.Logger) *Collector {
	return &Collector{
		sources: sources,
		metrics: metrics,
		clock:   clock,
		logger:  log.WithField("module", "collector"),
	}
}

// Sources returns the configured sources in fetch order
func (c *Collector) Sources() []s0_data.Source {
	return c.sources
}

// FetchAll fetches each source sequentially. A failing source, including
// one whose data no longer parses, is recorded in the dataset and the loop
// moves on. Only cancellation is returned.
func (c *Collector) FetchAll(ctx context.Context) (*s0_data.Dataset, []FetchResult, error) {
	ds := s0_data.NewDataset()
	results := make([]FetchResult, 0, len(c.sources))

	c.logger.WithField("source_count", len(c.sources)).Info("Starting source collection")

	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return ds, results, fmt.Errorf("collection cancelled: %w", err)
		}

		results = append(results, c.fetchOne(ctx, src, ds))
	}

	failCount := 0
	for _, r := range results {
		if r.Error != nil {
			failCount++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"success": len(results) - failCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Source collection completed")

	return ds, results, nil
}

// fetchOne runs a single source and records the outcome
func (c *Collector) fetchOne(ctx context.Context, src s0_data.Source, ds *s0_data.Dataset) FetchResult {
	name := src.Name()
	start := c.clock.Now()

	t, err := src.Fetch(ctx)
	result := FetchResult{Source: name, Duration: c.clock.Since(start)}

	if err == nil && t == nil {
		err = errors.New("source returned no table")
	}
	if c.metrics != nil {
		c.metrics.SourceFetched(name, err)
	}

	if err != nil {
		var fetchErr *contracts.SourceFetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &contracts.SourceFetchError{Source: name, Err: err}
			if loc, ok := src.(s0_data.Locatable); ok {
				fetchErr.URL = loc.Location()
			}
			err = fetchErr
		}
		result.Error = err
		ds.Fail(name, err)

		c.logger.WithError(err).WithField("source", string(name)).Error("Failed to fetch source")
		return result
	}

	ds.Put(name, t)
	result.Rows = t.NumRows()
	result.Dates = t.NumDates()

	c.logger.WithFields(map[string]interface{}{
		"source":   string(name),
		"rows":     result.Rows,
		"dates":    result.Dates,
		"duration": result.Duration.String(),
	}).Debug("Fetched source")

	return result
}
