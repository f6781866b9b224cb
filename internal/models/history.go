package models

import "time"

// Feedback is the user's verdict on an answer.
type Feedback string

const (
	FeedbackUnset Feedback = ""
	FeedbackYes   Feedback = "Yes"
	FeedbackNo    Feedback = "No"
)

// HistoryEntry records one asked question and the answer it received.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Feedback  Feedback  `json:"feedback,omitempty"`
	Failed    bool      `json:"failed,omitempty"` // Response holds an error message
	FileID    string    `json:"fileId,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
