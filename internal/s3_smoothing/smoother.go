package s3_smoothing

import (
	"errors"
	"fmt"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/table"
)

// Options controls one Smooth call
type Options struct {
	Window          int  // 홀수, ≥ 1
	ProvisionalDays int  // 최근 N일은 Final에서 제외
	Cumulative      bool // 누적값이면 먼저 일별 차분
	FillZero        bool // 건수: 내부 결측만 0으로, 끝의 미보고일은 유지 (비율은 false)
}

// Result holds the two smoothed variants of a series
type Result struct {
	Final       *table.Table // 확정 구간만 사용
	Provisional *table.Table // 전체 구간 사용
}

// Smoother computes centred rolling means. It has no state.
type Smoother struct{}

// NewSmoother creates a new Smoother
func NewSmoother() *Smoother {
	return &Smoother{}
}

// Smooth computes Final from the series with the last ProvisionalDays dates
// removed (before differencing) and Provisional from the full series. Dates
// without Window/2 neighbours on both sides are dropped. When there are too
// few dates, the affected output is empty and an
// *contracts.InsufficientDataError is returned alongside it.
// ⭐ SSOT: S2 → S3 이동평균
func (s *Smoother) Smooth(series *table.Table, opts Options) (Result, error) {
	if opts.Window < 1 || opts.Window%2 == 0 {
		return Result{}, fmt.Errorf("smoothing window must be odd and >= 1, got %d", opts.Window)
	}
	if opts.ProvisionalDays < 0 {
		return Result{}, fmt.Errorf("provisional days must be >= 0, got %d", opts.ProvisionalDays)
	}

	final, finalErr := s.rolling(series.DropTail(opts.ProvisionalDays), opts)
	provisional, provErr := s.rolling(series, opts)

	res := Result{Final: final, Provisional: provisional}

	// 데이터 부족은 경고성 오류: 결과는 그대로 돌려줌
	var insufficient *contracts.InsufficientDataError
	for _, err := range []error{finalErr, provErr} {
		if err == nil {
			continue
		}
		if !errors.As(err, &insufficient) {
			return Result{}, err
		}
	}
	if finalErr != nil {
		return res, finalErr
	}
	return res, provErr
}

func (s *Smoother) rolling(t *table.Table, opts Options) (*table.Table, error) {
	if opts.Cumulative {
		t = t.Diff()
	}
	if opts.FillZero {
		t = t.FillInterior(0)
	}
	return t.Rolling(opts.Window)
}
