package session

import (
	"context"
	"errors"
	"strings"

	"github.com/data-explorer/backend/internal/history"
	"github.com/data-explorer/backend/internal/logger"
	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/query"
)

// Acknowledgements shown after feedback is recorded.
const (
	FeedbackThanks  = "Thanks for your feedback!"
	FeedbackImprove = "We'll use that to improve."
	HistoryCleared  = "History cleared."
)

// AskResult is the outcome of one question. Exactly one of Answer and Error
// is set.
type AskResult struct {
	Question string         `json:"question"`
	Answer   *models.Answer `json:"answer,omitempty"`
	Response string         `json:"response"`
	Error    string         `json:"error,omitempty"`
	EntryID  string         `json:"entryId,omitempty"`
}

// Ask answers question against the selected file and records it in the
// session history. A query failure is not returned as an error: it becomes
// the response text and is recorded according to the history options.
func (m *Manager) Ask(ctx context.Context, sessionID, question string) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	state, err := m.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	state.Session.CurrentQuestion = question
	f, ds, err := state.selectedLocked()
	state.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log := m.log.With("session", sessionID, "file", f.ID)
	ctx = logger.WithContext(ctx, log)

	result := &AskResult{Question: question}
	record := history.Record{Prompt: question, FileID: f.ID, FileName: f.Name}

	answer, err := m.engine.Answer(ctx, ds, question)
	var qe *query.QueryError
	switch {
	case err == nil:
		result.Answer = answer
		result.Response = answer.Text
		record.Response = answer.Text
	case errors.As(err, &qe):
		result.Error = qe.Error()
		result.Response = "Error: " + qe.Error()
		record.Response = result.Response
		record.Failed = true
		log.Warn("question failed", "kind", qe.Kind, "error", qe.Err)
	default:
		return nil, err
	}

	result.EntryID, err = state.History.Append(record)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// History returns the session's entries, most recent first.
func (m *Manager) History(sessionID string) ([]models.HistoryEntry, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return nil, err
	}
	return state.History.List(), nil
}

// ClearHistory empties the session's history.
func (m *Manager) ClearHistory(sessionID string) error {
	state, err := m.state(sessionID)
	if err != nil {
		return err
	}
	state.History.Clear()
	return nil
}

// SelectHistoryPrompt makes a past prompt the current question and returns it.
func (m *Manager) SelectHistoryPrompt(sessionID string, index int) (string, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return "", err
	}

	prompt, err := state.History.SelectPrompt(index)
	if err != nil {
		return "", err
	}

	state.mu.Lock()
	state.Session.CurrentQuestion = prompt
	state.mu.Unlock()
	return prompt, nil
}

// SetFeedback labels the most recent answer and returns the acknowledgement.
func (m *Manager) SetFeedback(sessionID string, label models.Feedback) (string, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return "", err
	}
	if err := state.History.SetFeedback(label); err != nil {
		return "", err
	}
	return Acknowledgement(label), nil
}

// SetFeedbackFor labels the entry entryID and returns the acknowledgement.
func (m *Manager) SetFeedbackFor(sessionID, entryID string, label models.Feedback) (string, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return "", err
	}
	if err := state.History.SetFeedbackFor(entryID, label); err != nil {
		return "", err
	}
	return Acknowledgement(label), nil
}

// Acknowledgement is the message shown after label is recorded.
func Acknowledgement(label models.Feedback) string {
	if label == models.FeedbackNo {
		return FeedbackImprove
	}
	return FeedbackThanks
}
