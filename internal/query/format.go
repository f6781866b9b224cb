package query

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/data-explorer/backend/internal/models"
)

// NoRowsText is the answer text for an empty result.
const NoRowsText = "No rows matched."

// BuildAnswer turns a query result into an answer. A single cell becomes a
// text answer; anything else is a table with a plain-text rendering.
func BuildAnswer(result *models.Table, truncated bool) *models.Answer {
	if result.Len() == 0 {
		return &models.Answer{Kind: models.AnswerKindText, Text: NoRowsText, Table: result}
	}

	if result.Len() == 1 && len(result.Columns) == 1 {
		text := FormatValue(result.Rows[0][0])
		if result.Rows[0][0] == nil {
			text = "No value."
		}
		return &models.Answer{Kind: models.AnswerKindText, Text: text}
	}

	text := RenderTable(result)
	if truncated {
		text += fmt.Sprintf("\n(showing first %d rows)", result.Len())
	}
	return &models.Answer{
		Kind:      models.AnswerKindTable,
		Text:      text,
		Table:     result,
		Truncated: truncated,
	}
}

// RenderTable lays a table out in aligned plain-text columns.
func RenderTable(t *models.Table) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.ColumnNames(), "\t"))
	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()

	return strings.TrimRight(b.String(), "\n")
}

// FormatValue renders a single cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
