package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// SourceFetchError: 외부 소스 접근 실패 또는 잘못된 데이터 (섹션만 생략)
type SourceFetchError struct {
	Source SourceName
	URL    string
	Err    error
}

func (e *SourceFetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError: 참조/보정 테이블과 실제 데이터 형태 불일치 (치명적, 실행 중단)
type SchemaMismatchError struct {
	Table  string
	Detail string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: %s", e.Table, e.Detail)
}

// InsufficientDataError: 이동평균 창보다 짧은 시계열
type InsufficientDataError struct {
	Series string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("series %s has %d dates, window needs %d", e.Series, e.Have, e.Need)
}

// AlignmentGap describes rows excluded because a code had no lookup entry.
// It is a warning value, never returned as an error.
type AlignmentGap struct {
	Stage  Stage
	Table  string
	Lookup string
	Codes  []string
	Rows   int
}

// Empty reports whether nothing was excluded
func (g AlignmentGap) Empty() bool {
	return g.Rows == 0 && len(g.Codes) == 0
}

func (g AlignmentGap) String() string {
	return fmt.Sprintf("%s: %d rows of %s had codes missing from %s: %s",
		g.Stage, g.Rows, g.Table, g.Lookup, strings.Join(g.Codes, ","))
}

// IsFatal reports whether err must abort the run. A schema mismatch is
// fatal unless it came from a source fetch, where it only costs that
// source's sections.
func IsFatal(err error) bool {
	var fetchErr *SourceFetchError
	if errors.As(err, &fetchErr) {
		return false
	}
	var schemaErr *SchemaMismatchError
	return errors.As(err, &schemaErr)
}
