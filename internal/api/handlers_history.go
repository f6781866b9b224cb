// handlers_history.go - Question history and feedback handlers
package api

import (
	"net/http"

	"github.com/data-explorer/backend/internal/history"
	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	sessions Explorer
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(sessions Explorer) HistoryHandler {
	return &HistoryHandlerImpl{sessions: sessions}
}

// historyItem is a history entry with its shortened display label.
type historyItem struct {
	models.HistoryEntry
	Index int    `json:"index"`
	Label string `json:"label"`
}

// HandleGetHistory returns the session's history, most recent first
func (h *HistoryHandlerImpl) HandleGetHistory(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	entries, err := h.sessions.History(id)
	if err != nil {
		return err
	}

	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = historyItem{
			HistoryEntry: e,
			Index:        i,
			Label:        history.Label(e.Prompt),
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": items,
		"total":   len(items),
	})
}

// HandleClearHistory drops every history entry
func (h *HistoryHandlerImpl) HandleClearHistory(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.sessions.ClearHistory(id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": session.HistoryCleared})
}

// HandleSelectHistory makes a past prompt the current question
func (h *HistoryHandlerImpl) HandleSelectHistory(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req selectHistoryRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Index == nil {
		return NewValidationError("index")
	}

	prompt, err := h.sessions.SelectHistoryPrompt(id, *req.Index)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"prompt": prompt})
}

// HandleFeedback labels the most recent answer
func (h *HistoryHandlerImpl) HandleFeedback(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	msg, err := h.sessions.SetFeedback(id, req.Label)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}

// HandleEntryFeedback labels the history entry named in the path
func (h *HistoryHandlerImpl) HandleEntryFeedback(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	entryID := c.Param("entryId")
	if entryID == "" {
		return NewValidationError("entryId")
	}

	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	msg, err := h.sessions.SetFeedbackFor(id, entryID, req.Label)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}

// Request types

type selectHistoryRequest struct {
	Index *int `json:"index"`
}

type feedbackRequest struct {
	Label models.Feedback `json:"label"`
}
