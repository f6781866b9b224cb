// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// SessionHandler handles session lifecycle operations
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// FileHandler handles uploads and file selection within a session
type FileHandler interface {
	HandleUploadFiles(c echo.Context) error
	HandleUploadBase64(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleSelectFile(c echo.Context) error
}

// QueryHandler handles previews and questions about the selected file
type QueryHandler interface {
	HandleSetPreviewRows(c echo.Context) error
	HandlePreview(c echo.Context) error
	HandlePreviewMsgpack(c echo.Context) error
	HandleAsk(c echo.Context) error
}

// HistoryHandler handles the question history and feedback
type HistoryHandler interface {
	HandleGetHistory(c echo.Context) error
	HandleClearHistory(c echo.Context) error
	HandleSelectHistory(c echo.Context) error
	HandleFeedback(c echo.Context) error
	HandleEntryFeedback(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Explorer is the session API the handlers depend on.
// This allows mocking in tests
type Explorer interface {
	CreateSession() *models.ExploreSession
	GetSession(id string) (*models.ExploreSession, error)
	TouchSession(id string) bool
	DeleteSession(id string) error
	Count() int

	AddFile(ctx context.Context, sessionID, name string, r io.Reader) (*models.FileInfo, error)
	ListFiles(sessionID string) ([]*models.FileInfo, error)
	RemoveFile(sessionID, fileID string) error
	SelectFile(sessionID, fileID string) (*models.FileInfo, error)

	SetPreviewRows(sessionID string, rows int) error
	Preview(ctx context.Context, sessionID string, rows int) (*models.Preview, error)
	Ask(ctx context.Context, sessionID, question string) (*session.AskResult, error)

	History(sessionID string) ([]models.HistoryEntry, error)
	ClearHistory(sessionID string) error
	SelectHistoryPrompt(sessionID string, index int) (string, error)
	SetFeedback(sessionID string, label models.Feedback) (string, error)
	SetFeedbackFor(sessionID, entryID string, label models.Feedback) (string, error)
}

var _ Explorer = (*session.Manager)(nil)
