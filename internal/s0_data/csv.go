package s0_data

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wonny/covid-report/internal/contracts"
)

// CSV is a parsed file with header-addressed columns
type CSV struct {
	Name    string
	Header  []string
	Records [][]string
	cols    map[string]int
}

// ParseCSV reads data and checks that every required column is present.
// A missing column is a *contracts.SchemaMismatchError naming the file.
func ParseCSV(name string, data []byte, required ...string) (*CSV, error) {
	// UTF-8 BOM (엑셀 저장 파일)
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &contracts.SchemaMismatchError{Table: name, Detail: "file is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	c := &CSV{Name: name, Header: header, cols: make(map[string]int, len(header))}
	for i, h := range header {
		c.cols[strings.TrimSpace(h)] = i
	}

	missing := make([]string, 0)
	for _, col := range required {
		if _, ok := c.cols[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &contracts.SchemaMismatchError{
			Table:  name,
			Detail: fmt.Sprintf("missing columns %v (have %v)", missing, header),
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		c.Records = append(c.Records, record)
	}

	return c, nil
}

// Has reports whether the column exists
func (c *CSV) Has(col string) bool {
	_, ok := c.cols[col]
	return ok
}

// Get returns the trimmed cell for col, or "" if the record is short
func (c *CSV) Get(record []string, col string) string {
	i, ok := c.cols[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParseCount parses a count that may use thousands separators.
// Blank or suppressed cells ("", "*", "NA") are NaN.
func ParseCount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "*", "NA", "N/A", "-":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
