// handlers_query.go - Preview and question handlers
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// QueryHandlerImpl implements the QueryHandler interface
type QueryHandlerImpl struct {
	sessions Explorer
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(sessions Explorer) QueryHandler {
	return &QueryHandlerImpl{sessions: sessions}
}

// HandleSetPreviewRows changes the session's default preview size
func (h *QueryHandlerImpl) HandleSetPreviewRows(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req previewRowsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.sessions.SetPreviewRows(id, req.Rows); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"rows": req.Rows})
}

// HandlePreview returns the top rows of the selected file
func (h *QueryHandlerImpl) HandlePreview(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	rows, err := previewRowsParam(c)
	if err != nil {
		return err
	}

	preview, err := h.sessions.Preview(c.Request().Context(), id, rows)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, preview)
}

// HandlePreviewMsgpack returns the same preview encoded as msgpack
func (h *QueryHandlerImpl) HandlePreviewMsgpack(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	rows, err := previewRowsParam(c)
	if err != nil {
		return err
	}

	preview, err := h.sessions.Preview(c.Request().Context(), id, rows)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(preview)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleAsk answers a question about the selected file. A query failure is
// part of a successful response: it carries an error message and is
// recorded in the history like any other answer.
func (h *QueryHandlerImpl) HandleAsk(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return NewValidationError("question")
	}

	result, err := h.sessions.Ask(c.Request().Context(), id, req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// previewRowsParam reads ?rows=N. Zero means the session default.
func previewRowsParam(c echo.Context) (int, error) {
	s := c.QueryParam("rows")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, NewValidationError("rows")
	}
	return n, nil
}

// Request types

type previewRowsRequest struct {
	Rows int `json:"rows"`
}

type askRequest struct {
	Question string `json:"question"`
}
