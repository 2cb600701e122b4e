package policyconfig

import (
	"fmt"
	"time"

	"github.com/wonny/covid-report/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var knownSources = map[contracts.SourceName]bool{
	contracts.SourceUKCases:            true,
	contracts.SourceLTLACases:          true,
	contracts.SourcePublishedCases:     true,
	contracts.SourceTesting:            true,
	contracts.SourceAgeRates:           true,
	contracts.SourceNHSDeaths:          true,
	contracts.SourceHospitalAdmissions: true,
	contracts.SourceTriageOnline:       true,
	contracts.SourceTriagePathways:     true,
	contracts.SourceScotlandCases:      true,
	contracts.SourceAppExposures:       true,
	contracts.SourceRiskyVenues:        true,
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Smoothing ===
	if cfg.Smoothing.Window < 1 || cfg.Smoothing.Window%2 == 0 {
		return ValidationError{"smoothing.window", "must be odd and >= 1"}
	}
	if cfg.Smoothing.ProvisionalDays < 0 {
		return ValidationError{"smoothing.provisional_days", "must be >= 0"}
	}

	// === Scoring ===
	if cfg.Scoring.RecentDays < 1 {
		return ValidationError{"scoring.recent_days", "must be >= 1"}
	}
	if cfg.Scoring.Sensitivity <= 0 {
		return ValidationError{"scoring.sensitivity", "must be > 0"}
	}
	if cfg.Scoring.StableBand < 0 || cfg.Scoring.StableBand >= 1 {
		return ValidationError{"scoring.stable_band", "must be in [0, 1)"}
	}
	for name, w := range cfg.Scoring.Weights.AsMap() {
		if w < 0 {
			return ValidationError{"scoring.weights." + name, "must be >= 0"}
		}
	}
	if cfg.Scoring.Weights.Sum() <= 0 {
		return ValidationError{"scoring.weights", "at least one weight must be > 0"}
	}

	// === Map ===
	if cfg.Map.PerPopulation <= 0 {
		return ValidationError{"map.per_population", "must be > 0"}
	}
	if err := validateOptionalDate(cfg.Map.Since); err != nil {
		return ValidationError{"map.since", err.Error()}
	}

	// === Charts ===
	if err := validateOptionalDate(cfg.Charts.Since); err != nil {
		return ValidationError{"charts.since", err.Error()}
	}
	if err := validateOptionalDate(cfg.Charts.HeatmapSince); err != nil {
		return ValidationError{"charts.heatmap_since", err.Error()}
	}

	// === Corrections ===
	for i, set := range cfg.Corrections {
		field := fmt.Sprintf("corrections[%d]", i)
		if !knownSources[set.Source] {
			return ValidationError{field + ".source", fmt.Sprintf("unknown source %q", set.Source)}
		}
		for j, fix := range set.Fixes {
			fixField := fmt.Sprintf("%s.fixes[%d]", field, j)
			if len(fix.Labels) == 0 {
				return ValidationError{fixField + ".labels", "required"}
			}
			if _, err := time.Parse("2006-01-02", fix.Date); err != nil {
				return ValidationError{fixField + ".date", "must be YYYY-MM-DD"}
			}
			if fix.Value != nil && *fix.Value < 0 {
				return ValidationError{fixField + ".value", "counts must be >= 0"}
			}
		}
	}

	return nil
}

func validateOptionalDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("must be YYYY-MM-DD")
	}
	return nil
}
