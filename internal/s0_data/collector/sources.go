package collector

import (
	"github.com/jonboulle/clockwork"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/external/appdata"
	"github.com/wonny/covid-report/internal/external/nhsdigital"
	"github.com/wonny/covid-report/internal/external/phe"
	"github.com/wonny/covid-report/internal/external/scotland"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/pkg/config"
	"github.com/wonny/covid-report/pkg/httputil"
	"github.com/wonny/covid-report/pkg/logger"
)

// Clients bundles the upstream API clients
type Clients struct {
	PHE      *phe.Client
	NHS      *nhsdigital.Client
	Scotland *scotland.Client
	App      *appdata.Client
}

// NewClients builds every client from config, sharing one HTTP client
func NewClients(cfg *config.Config, httpClient *httputil.Client, clock clockwork.Clock, log *logger.Logger) Clients {
	return Clients{
		PHE:      phe.NewClient(httpClient, cfg.Sources.PHEAPIURL, log),
		NHS:      nhsdigital.NewClient(httpClient, cfg.Sources.NHSTriageURL, log),
		Scotland: scotland.NewClient(httpClient, cfg.Sources.ScotlandCasesURL, log),
		App:      appdata.NewClient(httpClient, cfg.Sources.AppExposuresURL, cfg.Sources.AppVenuesURL, clock, log),
	}
}

// DefaultSources lists every dataset in fetch order
// ⭐ SSOT: 소스 목록은 여기서만 정의
func DefaultSources(c Clients) []s0_data.Source {
	return []s0_data.Source{
		s0_data.SourceFunc{SourceName: contracts.SourceUKCases, URL: c.PHE.BaseURL(), Fn: c.PHE.UKCases},
		s0_data.SourceFunc{SourceName: contracts.SourceLTLACases, URL: c.PHE.BaseURL(), Fn: c.PHE.LTLACases},
		s0_data.SourceFunc{SourceName: contracts.SourcePublishedCases, URL: c.PHE.BaseURL(), Fn: c.PHE.PublishedCases},
		s0_data.SourceFunc{SourceName: contracts.SourceTesting, URL: c.PHE.BaseURL(), Fn: c.PHE.Testing},
		s0_data.SourceFunc{SourceName: contracts.SourceAgeRates, URL: c.PHE.BaseURL(), Fn: c.PHE.AgeRates},
		s0_data.SourceFunc{SourceName: contracts.SourceNHSDeaths, URL: c.PHE.BaseURL(), Fn: c.PHE.NHSDeaths},
		s0_data.SourceFunc{SourceName: contracts.SourceHospitalAdmissions, URL: c.PHE.BaseURL(), Fn: c.PHE.HospitalAdmissions},
		s0_data.SourceFunc{SourceName: contracts.SourceTriageOnline, URL: c.NHS.PageURL(), Fn: c.NHS.Online},
		s0_data.SourceFunc{SourceName: contracts.SourceTriagePathways, URL: c.NHS.PageURL(), Fn: c.NHS.Pathways},
		s0_data.SourceFunc{SourceName: contracts.SourceScotlandCases, URL: c.Scotland.CasesURL(), Fn: c.Scotland.Cases},
		s0_data.SourceFunc{SourceName: contracts.SourceAppExposures, URL: c.App.ExposuresURL(), Fn: c.App.Exposures},
		s0_data.SourceFunc{SourceName: contracts.SourceRiskyVenues, URL: c.App.VenuesURL(), Fn: c.App.RiskyVenues},
	}
}
