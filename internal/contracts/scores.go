package contracts

import (
	"sort"
	"time"
)

// Direction is the human label attached to a composite score
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionStable  Direction = "stable"
	DirectionFalling Direction = "falling"
)

// Score component names, also used as policy weight keys
const (
	ComponentDeaths         = "deaths"
	ComponentCases          = "cases"
	ComponentTriageOnline   = "triage_online"
	ComponentTriagePathways = "triage_pathways"
	ComponentAdmissions     = "admissions"
)

// ComponentTrend is one input's recent-vs-baseline comparison for a region
type ComponentTrend struct {
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	Value    float64 `json:"value"` // -1.0 ~ 1.0
}

// RegionScore is the composite trend indicator for one region
// ⭐ SSOT: S5 → S6 점수 전달
type RegionScore struct {
	Region     string                    `json:"region"`
	Score      float64                   `json:"score"` // -1.0 ~ 1.0
	Direction  Direction                 `json:"direction"`
	Components map[string]ComponentTrend `json:"components"`
	Partial    bool                      `json:"partial"`
	Missing    []string                  `json:"missing,omitempty"`
}

// ScoreSet holds scores for every region that had at least one input
type ScoreSet struct {
	AsOf    time.Time          `json:"as_of"`
	Weights map[string]float64 `json:"weights"`
	Regions []RegionScore      `json:"regions"`
}

// Get returns the score for region, if present
func (s *ScoreSet) Get(region string) (RegionScore, bool) {
	for _, r := range s.Regions {
		if r.Region == region {
			return r, true
		}
	}
	return RegionScore{}, false
}

// Len returns the number of scored regions
func (s *ScoreSet) Len() int {
	return len(s.Regions)
}

// SortByScore orders regions by descending score, ties by name
func (s *ScoreSet) SortByScore() {
	sort.SliceStable(s.Regions, func(i, j int) bool {
		if s.Regions[i].Score != s.Regions[j].Score {
			return s.Regions[i].Score > s.Regions[j].Score
		}
		return s.Regions[i].Region < s.Regions[j].Region
	})
}
