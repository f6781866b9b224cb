package query

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/parser"
)

const systemPrompt = `You are a data analyst answering questions about one table.
The table is stored in DuckDB under the name "data".

Reply with exactly one DuckDB SQL query in a ` + "```sql" + ` code block that answers the question.
Rules:
- Only SELECT or WITH ... SELECT statements. Never modify data.
- Quote column names with double quotes.
- Return a single value when the question asks for one number or word.
- Add ORDER BY and LIMIT when the question asks for a top or bottom list.

If the question cannot be answered with SQL (for example it asks for an
opinion or about something not in the table), reply with a single line
starting with "ANSWER:" followed by a short plain-text answer.`

// BuildPrompt describes the table and the question for the model. Only the
// schema and the sample rows are sent, never the full table.
func BuildPrompt(columns []models.Column, rowCount int, samples *models.Table, question string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("TABLE: %s (%d rows)\n", parser.TableName, rowCount))
	b.WriteString("COLUMNS:\n")
	for _, c := range columns {
		b.WriteString(fmt.Sprintf("- %s %s\n", parser.QuoteIdent(c.Name), strings.ToUpper(string(c.Type))))
	}

	if samples != nil && samples.Len() > 0 {
		b.WriteString(fmt.Sprintf("\nSAMPLE ROWS (first %d, CSV):\n", samples.Len()))
		b.WriteString(samplesCSV(samples))
	}

	b.WriteString("\nQUESTION: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n")
	return b.String()
}

func samplesCSV(t *models.Table) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Write(t.ColumnNames())
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = FormatValue(v)
		}
		w.Write(rec)
	}
	w.Flush()
	return b.String()
}
