package parser

import (
	"fmt"
	"io"

	"github.com/data-explorer/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

// XLSXParser reads the first sheet of an Office Open XML workbook.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

func (p *XLSXParser) Name() string {
	return "xlsx"
}

func (p *XLSXParser) Format() models.FileFormat {
	return models.FormatXLSX
}

func (p *XLSXParser) CanParse(fileName string) bool {
	return hasExt(fileName, ".xlsx")
}

func (p *XLSXParser) Parse(r io.Reader) (*models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	header, records := splitHeader(rows)
	return BuildTable(header, records)
}

// splitHeader treats the first non-blank row as the header.
func splitHeader(rows [][]string) ([]string, [][]string) {
	for i, row := range rows {
		if !blankRecord(row) {
			return row, rows[i+1:]
		}
	}
	return nil, nil
}
