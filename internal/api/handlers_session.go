// handlers_session.go - Session lifecycle handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions Explorer
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions Explorer) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions}
}

// HandleCreateSession starts an empty exploration session
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, h.sessions.CreateSession())
}

// HandleGetSession returns the session's files, selection and settings
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	sess, err := h.sessions.GetSession(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession ends a session, discarding its files and history
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.sessions.DeleteSession(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive protects a session from idle cleanup
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func sessionID(c echo.Context) (string, error) {
	id := c.Param("sessionId")
	if id == "" {
		return "", NewValidationError("sessionId")
	}
	return id, nil
}
