package policyconfig

import "github.com/wonny/covid-report/internal/contracts"

// Config는 리포트 파이프라인의 정책 설정 (평활, 점수, 지도, 보정)
type Config struct {
	Meta        Meta      `yaml:"meta" json:"meta"`
	Smoothing   Smoothing `yaml:"smoothing" json:"smoothing"`
	Scoring     Scoring   `yaml:"scoring" json:"scoring"`
	Map         MapPolicy `yaml:"map" json:"map"`
	Charts      Charts    `yaml:"charts" json:"charts"`
	Corrections []FixSet  `yaml:"corrections" json:"corrections"`
}

// Meta 메타 정보
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
}

// Smoothing S3: 중심 이동평균
type Smoothing struct {
	Window          int `yaml:"window" json:"window"`                     // 홀수, 기본 7
	ProvisionalDays int `yaml:"provisional_days" json:"provisional_days"` // 최근 N일은 미확정
}

// Scoring S5: 지역별 종합 추세 점수
type Scoring struct {
	RecentDays  int     `yaml:"recent_days" json:"recent_days"`
	Sensitivity float64 `yaml:"sensitivity" json:"sensitivity"`
	StableBand  float64 `yaml:"stable_band" json:"stable_band"`
	Weights     Weights `yaml:"weights" json:"weights"`
}

// Weights per score component. Zero drops the component.
type Weights struct {
	Deaths         float64 `yaml:"deaths" json:"deaths"`
	Cases          float64 `yaml:"cases" json:"cases"`
	TriageOnline   float64 `yaml:"triage_online" json:"triage_online"`
	TriagePathways float64 `yaml:"triage_pathways" json:"triage_pathways"`
	Admissions     float64 `yaml:"admissions" json:"admissions"`
}

// AsMap returns weights keyed by component name
func (w Weights) AsMap() map[string]float64 {
	return map[string]float64{
		contracts.ComponentDeaths:         w.Deaths,
		contracts.ComponentCases:          w.Cases,
		contracts.ComponentTriageOnline:   w.TriageOnline,
		contracts.ComponentTriagePathways: w.TriagePathways,
		contracts.ComponentAdmissions:     w.Admissions,
	}
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.Deaths + w.Cases + w.TriageOnline + w.TriagePathways + w.Admissions
}

// MapPolicy S6: 지도 데이터
type MapPolicy struct {
	PerPopulation float64 `yaml:"per_population" json:"per_population"`
	Since         string  `yaml:"since" json:"since"` // YYYY-MM-DD, 빈 값이면 전체
}

// Charts S6: 차트 표시 범위
type Charts struct {
	Since        string `yaml:"since" json:"since"`
	HeatmapSince string `yaml:"heatmap_since" json:"heatmap_since"`
}

// FixSet groups overrides for one source table
type FixSet struct {
	Source contracts.SourceName `yaml:"source" json:"source"`
	Fixes  []Fix                `yaml:"fixes" json:"fixes"`
}

// Fix overrides a single (labels, date) cell. A null value retracts it.
type Fix struct {
	Labels map[string]string `yaml:"labels" json:"labels"`
	Date   string            `yaml:"date" json:"date"` // YYYY-MM-DD
	Value  *float64          `yaml:"value" json:"value"`
	Note   string            `yaml:"note,omitempty" json:"note,omitempty"`
}

// FixesFor returns the overrides configured for source
func (c *Config) FixesFor(source contracts.SourceName) []Fix {
	out := make([]Fix, 0)
	for _, set := range c.Corrections {
		if set.Source == source {
			out = append(out, set.Fixes...)
		}
	}
	return out
}

// Default returns the built-in policy used when no file is given
func Default() *Config {
	return &Config{
		Meta: Meta{
			PolicyID: "uk_covid_report",
			Version:  "1",
		},
		Smoothing: Smoothing{
			Window:          7,
			ProvisionalDays: 7,
		},
		Scoring: Scoring{
			RecentDays:  7,
			Sensitivity: 1.0,
			StableBand:  0.05,
			Weights: Weights{
				Deaths:         1,
				Cases:          1,
				TriageOnline:   1,
				TriagePathways: 1,
				Admissions:     1,
			},
		},
		Map: MapPolicy{
			PerPopulation: 100000,
		},
		Charts: Charts{
			Since:        "2020-03-01",
			HeatmapSince: "2020-09-01",
		},
		Corrections: []FixSet{},
	}
}
