// Package parser turns uploaded tabular files into in-memory tables and
// loads them into per-file DuckDB stores.
package parser

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/data-explorer/backend/internal/models"
)

// Parser defines the interface for tabular file parsers.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// Format returns the file format handled by the parser.
	Format() models.FileFormat
	// CanParse reports whether the file name carries a handled extension.
	CanParse(fileName string) bool
	// Parse reads the whole file into a table.
	Parse(r io.Reader) (*models.Table, error)
}

// ErrorKind classifies a ParseError.
type ErrorKind string

const (
	ErrKindUnsupported ErrorKind = "unsupported_format"
	ErrKindMalformed   ErrorKind = "malformed"
)

// ErrNoHeader is returned for files without a header row.
var ErrNoHeader = errors.New("file has no header row")

// ParseError reports a file that could not be turned into a table.
type ParseError struct {
	File string
	Kind ErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Kind == ErrKindUnsupported {
		return fmt.Sprintf("%s: unsupported file format", e.File)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// naValues are cell texts treated as missing, as spreadsheet tools do.
var naValues = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "#N/A": {}, "NAN": {}, "-NAN": {},
	"NULL": {}, "NONE": {}, "<NA>": {},
}

func isMissing(s string) bool {
	_, ok := naValues[strings.ToUpper(s)]
	return ok
}

// InferType guesses the column type of a single non-missing cell.
func InferType(raw string) models.ColumnType {
	s := strings.TrimSpace(raw)
	if isMissing(s) {
		return models.ColumnTypeString
	}

	switch strings.ToUpper(s) {
	case "TRUE", "FALSE":
		return models.ColumnTypeBoolean
	}

	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.ColumnTypeInteger
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return models.ColumnTypeDouble
	}

	return models.ColumnTypeString
}

// widen returns the narrowest type that can hold values of both a and b.
func widen(a, b models.ColumnType) models.ColumnType {
	if a == "" {
		return b
	}
	if a == b {
		return a
	}
	numeric := func(t models.ColumnType) bool {
		return t == models.ColumnTypeInteger || t == models.ColumnTypeDouble
	}
	if numeric(a) && numeric(b) {
		return models.ColumnTypeDouble
	}
	return models.ColumnTypeString
}

// ParseValue converts a raw cell to the Go value for its column type.
// Missing cells become nil.
func ParseValue(raw string, ctype models.ColumnType) any {
	s := strings.TrimSpace(raw)
	if isMissing(s) {
		return nil
	}

	switch ctype {
	case models.ColumnTypeBoolean:
		return strings.EqualFold(s, "TRUE")
	case models.ColumnTypeInteger:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		return v
	case models.ColumnTypeDouble:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return v
	default:
		return raw
	}
}

// BuildTable infers column types from string records and converts them.
// Rows are padded or truncated to the header width; blank rows are dropped.
func BuildTable(header []string, records [][]string) (*models.Table, error) {
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	names := normalizeHeader(header)
	width := len(names)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if blankRecord(rec) {
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		rows = append(rows, row)
	}

	types := make([]models.ColumnType, width)
	for _, row := range rows {
		for i, cell := range row {
			if isMissing(strings.TrimSpace(cell)) {
				continue
			}
			types[i] = widen(types[i], InferType(cell))
		}
	}

	table := &models.Table{
		Columns: make([]models.Column, width),
		Rows:    make([][]any, len(rows)),
	}
	for i, name := range names {
		ct := types[i]
		if ct == "" {
			ct = models.ColumnTypeString
		}
		table.Columns[i] = models.Column{Name: name, Type: ct}
	}
	for r, row := range rows {
		values := make([]any, width)
		for i, cell := range row {
			values[i] = ParseValue(cell, table.Columns[i].Type)
		}
		table.Rows[r] = values
	}

	return table, nil
}

// normalizeHeader trims names, fills blanks and de-duplicates.
func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		if n, ok := seen[key]; ok {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s_%d", base, n)
				if _, taken := seen[strings.ToLower(name)]; !taken {
					break
				}
			}
			seen[key] = n
			key = strings.ToLower(name)
		}
		seen[key] = 1
		names[i] = name
	}
	return names
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
