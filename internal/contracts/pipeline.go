package contracts

import "time"

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 메트릭 라벨에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5 → S6
//   Data  Correction  Aggregation  Smoothing  Normalise  Scoring  Report

// Stage represents a pipeline stage
type Stage string

const (
	// StageDataAccess S0: 외부 소스 수집 및 참조 테이블 로딩
	// 위치: internal/s0_data/, internal/external/
	StageDataAccess Stage = "S0_DATA_ACCESS"

	// StageCorrection S1: 알려진 데이터 오류 보정
	// 위치: internal/s1_correction/
	StageCorrection Stage = "S1_CORRECTION"

	// StageAggregation S2: 세부 지역 → NHS 지역 합산
	// 위치: internal/s2_aggregation/
	StageAggregation Stage = "S2_AGGREGATION"

	// StageSmoothing S3: 7일 중심 이동평균, provisional 분리
	// 위치: internal/s3_smoothing/
	StageSmoothing Stage = "S3_SMOOTHING"

	// StageNormalisation S4: 인구 대비 비율
	// 위치: internal/s4_normalise/
	StageNormalisation Stage = "S4_NORMALISATION"

	// StageScoring S5: 지역별 종합 추세 점수
	// 위치: internal/s5_scoring/
	StageScoring Stage = "S5_SCORING"

	// StagePresentation S6: 차트, HTML 페이지, 지도 데이터
	// 위치: internal/s6_report/
	StagePresentation Stage = "S6_PRESENTATION"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageDataAccess:
		return "S0"
	case StageCorrection:
		return "S1"
	case StageAggregation:
		return "S2"
	case StageSmoothing:
		return "S3"
	case StageNormalisation:
		return "S4"
	case StageScoring:
		return "S5"
	case StagePresentation:
		return "S6"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageDataAccess,
		StageCorrection,
		StageAggregation,
		StageSmoothing,
		StageNormalisation,
		StageScoring,
		StagePresentation,
	}
}

// SectionOutcome records how one guarded render section ended
type SectionOutcome struct {
	Page    string `json:"page"`
	Section string `json:"section"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// RunResult summarises one pipeline run
type RunResult struct {
	RunID           string           `json:"run_id"`
	PolicyHash      string           `json:"policy_hash"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	CompletedStages []Stage          `json:"completed_stages"`
	Pages           []string         `json:"pages"`
	Sections        []SectionOutcome `json:"sections"`
	Quality         DataQuality      `json:"quality"`
}

// Duration returns the wall time of the run
func (r *RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// FailedSections returns the sections that were omitted from output
func (r *RunResult) FailedSections() []SectionOutcome {
	failed := make([]SectionOutcome, 0)
	for _, s := range r.Sections {
		if !s.OK {
			failed = append(failed, s)
		}
	}
	return failed
}
