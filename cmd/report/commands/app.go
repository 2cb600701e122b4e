package commands

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/wonny/covid-report/internal/brain"
	"github.com/wonny/covid-report/internal/observability"
	"github.com/wonny/covid-report/internal/policyconfig"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/s0_data/collector"
	"github.com/wonny/covid-report/internal/s0_data/quality"
	"github.com/wonny/covid-report/internal/s6_report"
	"github.com/wonny/covid-report/pkg/config"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

// app is everything one command needs, built from config
type app struct {
	cfg       *config.Config
	policy    *policyconfig.Config
	log       *logger.Logger
	clock     clockwork.Clock
	http      *httputil.Client
	sources   []s0_data.Source
	metrics   *observability.Metrics
	collector *collector.Collector
}

// loadConfig reads the environment and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if policyFile != "" {
		cfg.PolicyFile = policyFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// loadPolicy reads the policy file, or returns the built-in policy when
// no file is configured
func loadPolicy(path string) (*policyconfig.Config, error) {
	if path == "" {
		return policyconfig.Default(), nil
	}
	policy, _, err := policyconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return policy, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	policy, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	httpClient := httputil.New(cfg, log)
	metrics := observability.NewMetrics()
	sources := collector.DefaultSources(collector.NewClients(cfg, httpClient, clock, log))

	return &app{
		cfg:       cfg,
		policy:    policy,
		log:       log,
		clock:     clock,
		http:      httpClient,
		sources:   sources,
		metrics:   metrics,
		collector: collector.NewCollector(sources, metrics, clock, log),
	}, nil
}

// orchestrator wires the pipeline writing to outDir
func (a *app) orchestrator(outDir string) (*brain.Orchestrator, error) {
	renderer, err := s6_report.NewRenderer(outDir, a.log)
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	locator := s0_data.NewLocator(a.http)
	reference := func(ctx context.Context) (*s0_data.Reference, error) {
		return s0_data.LoadReference(ctx, locator, a.cfg.Reference)
	}

	return brain.NewOrchestrator(
		a.collector,
		quality.NewQualityGate(quality.DefaultConfig()),
		reference,
		a.policy,
		renderer,
		a.metrics,
		a.clock,
		brain.Settings{
			AssetsHost:      a.cfg.EChartsAssetsHost,
			MetricsTextfile: a.cfg.MetricsTextfile,
		},
		a.log,
	), nil
}
