// Package models contains domain types for the AI Data Explorer.
package models

// ColumnType is the inferred type of a table column.
type ColumnType string

const (
	ColumnTypeBoolean ColumnType = "boolean"
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeDouble  ColumnType = "double"
	ColumnTypeString  ColumnType = "varchar"
)

// Column describes a single table column.
type Column struct {
	Name string     `json:"name" msgpack:"name"`
	Type ColumnType `json:"type" msgpack:"type"`
}

// Table is a parsed tabular file. Each row has exactly len(Columns) cells;
// a nil cell is an empty value.
type Table struct {
	Columns []Column `json:"columns" msgpack:"columns"`
	Rows    [][]any  `json:"rows" msgpack:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Head returns a table holding the first n rows. n is clamped to the table
// length, never padded.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{
		Columns: t.Columns,
		Rows:    t.Rows[:n],
	}
}

// Preview is the top-N view of a selected file.
type Preview struct {
	FileID    string `json:"fileId" msgpack:"fileId"`
	FileName  string `json:"fileName" msgpack:"fileName"`
	Requested int    `json:"requested" msgpack:"requested"`
	TotalRows int    `json:"totalRows" msgpack:"totalRows"`
	Table     *Table `json:"table" msgpack:"table"`
}
