package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/data-explorer/backend/internal/models"
	"github.com/extrame/xls"
)

// XLSParser reads the first sheet of a legacy BIFF (.xls) workbook.
type XLSParser struct {
	charset string
}

func NewXLSParser() *XLSParser {
	return &XLSParser{charset: "utf-8"}
}

func (p *XLSParser) Name() string {
	return "xls"
}

func (p *XLSParser) Format() models.FileFormat {
	return models.FormatXLS
}

func (p *XLSParser) CanParse(fileName string) bool {
	return hasExt(fileName, ".xls")
}

func (p *XLSParser) Parse(r io.Reader) (table *models.Table, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}

	// The BIFF reader panics on some corrupt inputs.
	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = fmt.Errorf("corrupt workbook: %v", rec)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), p.charset)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("no workbook stream found")
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no readable sheet")
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		// LastCol is one past the last cell when a ROW record is present
		// and the last cell itself otherwise.
		cells := make([]string, 0, row.LastCol()+1)
		for j := 0; j <= row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		rows = append(rows, cells)
	}

	header, records := splitHeader(rows)
	for _, rec := range records {
		for len(header) > 0 && len(header) < len(rec) {
			header = append(header, "")
		}
	}
	return BuildTable(header, records)
}
