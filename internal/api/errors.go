// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/data-explorer/backend/internal/history"
	"github.com/data-explorer/backend/internal/logger"
	"github.com/data-explorer/backend/internal/parser"
	"github.com/data-explorer/backend/internal/session"
	"github.com/data-explorer/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// Error codes sent in APIError.Code.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeValidation      = "VALIDATION_ERROR"
	CodeIndexOutOfRange = "INDEX_OUT_OF_RANGE"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeParse           = "PARSE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
	CodeHTTP            = "HTTP_ERROR"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: message,
	}
}

// NewParseError creates a 422 error for a file that could not be read.
func NewParseError(err *parser.ParseError) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeParse,
		Message: "Could not read file: " + err.Error(),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromError maps a domain error onto an APIError. Errors it does not know
// become 500s carrying err's text as details.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var parseErr *parser.ParseError
	switch {
	case errors.As(err, &parseErr):
		return NewParseError(parseErr)

	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrFileNotFound),
		errors.Is(err, history.ErrEntryNotFound),
		errors.Is(err, storage.ErrFileNotFound):
		return &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}

	case errors.Is(err, history.ErrIndexOutOfRange):
		return &APIError{Status: http.StatusBadRequest, Code: CodeIndexOutOfRange, Message: err.Error()}

	case errors.Is(err, session.ErrEmptyQuestion),
		errors.Is(err, session.ErrInvalidPreviewRows),
		errors.Is(err, session.ErrNoFileSelected),
		errors.Is(err, session.ErrFileNotQueryable),
		errors.Is(err, history.ErrEmptyPrompt),
		errors.Is(err, history.ErrInvalidFeedback):
		return &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: err.Error()}

	case errors.Is(err, history.ErrFeedbackAlreadySet),
		errors.Is(err, history.ErrFeedbackNotAllowed):
		return NewConflictError(err.Error())

	case errors.Is(err, storage.ErrFileTooLarge):
		return &APIError{Status: http.StatusRequestEntityTooLarge, Code: CodeTooLarge, Message: err.Error()}
	}

	return NewInternalError("An unexpected error occurred", err)
}

// NewErrorHandler returns an echo error handler that renders APIErrors as
// JSON. Details of internal errors are only sent when showDetails is set.
func NewErrorHandler(showDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    CodeHTTP,
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		} else {
			apiErr = FromError(err)
		}

		if apiErr.Status >= http.StatusInternalServerError {
			logger.FromContext(c.Request().Context()).Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"error", err)
			if !showDetails {
				apiErr = &APIError{Status: apiErr.Status, Code: apiErr.Code, Message: apiErr.Message}
			}
		}

		if c.Request().Method == http.MethodHead {
			c.NoContent(apiErr.Status)
			return
		}
		c.JSON(apiErr.Status, apiErr)
	}
}
