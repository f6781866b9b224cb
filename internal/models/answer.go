package models

// AnswerKind tells the client how to render an answer.
type AnswerKind string

const (
	AnswerKindText  AnswerKind = "text"
	AnswerKindTable AnswerKind = "table"
)

// Answer is the result of a natural-language question about a table.
type Answer struct {
	Kind      AnswerKind `json:"kind"`
	Text      string     `json:"text"`
	Table     *Table     `json:"table,omitempty"`
	SQL       string     `json:"sql,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
	ElapsedMs int64      `json:"elapsedMs"`
}
