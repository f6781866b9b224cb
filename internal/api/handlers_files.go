// handlers_files.go - File upload and selection handlers
package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/data-explorer/backend/internal/logger"
	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/parser"
	"github.com/labstack/echo/v4"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	sessions   Explorer
	allowedExt map[string]bool
}

// NewFileHandler creates a new file handler. An empty allowedExt accepts
// every extension the parser registry knows.
func NewFileHandler(sessions Explorer, allowedExt []string) FileHandler {
	h := &FileHandlerImpl{sessions: sessions}
	if len(allowedExt) == 0 {
		allowedExt = parser.GetGlobalRegistry().Extensions()
	}
	h.allowedExt = make(map[string]bool, len(allowedExt))
	for _, ext := range allowedExt {
		h.allowedExt[strings.ToLower(ext)] = true
	}
	return h
}

// uploadResult reports one file of a multipart upload.
type uploadResult struct {
	Name  string           `json:"name"`
	File  *models.FileInfo `json:"file,omitempty"`
	Error string           `json:"error,omitempty"`
}

// HandleUploadFiles accepts one or more "files" parts. Each file is parsed
// independently; a file that cannot be read is reported and the rest are
// still loaded.
func (h *FileHandlerImpl) HandleUploadFiles(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		return NewValidationError("files")
	}

	ctx := c.Request().Context()
	log := logger.FromContext(ctx)
	results := make([]uploadResult, 0, len(headers))

	for _, fh := range headers {
		res := uploadResult{Name: fh.Filename}
		if err := h.checkExtension(fh.Filename); err != nil {
			res.Error = err.Message
			results = append(results, res)
			continue
		}

		src, err := fh.Open()
		if err != nil {
			res.Error = "Could not read file: " + err.Error()
			results = append(results, res)
			continue
		}
		info, err := h.sessions.AddFile(ctx, id, fh.Filename, src)
		src.Close()

		res.File = info
		if err != nil {
			apiErr := FromError(err)
			if apiErr.Status == http.StatusNotFound {
				return apiErr
			}
			res.Error = apiErr.Message
			log.Info("upload rejected", "session", id, "name", fh.Filename, "error", err)
		}
		results = append(results, res)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"files": results,
	})
}

// HandleUploadBase64 accepts a single file as base64 JSON
func (h *FileHandlerImpl) HandleUploadBase64(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkExtension(req.Name); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}
	src, err := decodeContent(decoded, req.Encoding)
	if err != nil {
		return NewBadRequestError("invalid file encoding", err)
	}
	defer src.Close()

	info, err := h.sessions.AddFile(c.Request().Context(), id, req.Name, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleListFiles returns the session's files in upload order
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	files, err := h.sessions.ListFiles(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, files)
}

// HandleDeleteFile removes a file from the session
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}
	if err := h.sessions.RemoveFile(id, fileID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSelectFile makes a parsed file the target of previews and questions
func (h *FileHandlerImpl) HandleSelectFile(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req selectFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.sessions.SelectFile(id, req.FileID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// decodeContent unwraps the transfer encoding of a base64 upload.
func decodeContent(data []byte, encoding string) (io.ReadCloser, error) {
	switch encoding {
	case "", "identity":
		return io.NopCloser(bytes.NewReader(data)), nil
	case "gzip":
		if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
			return nil, fmt.Errorf("not a gzip stream")
		}
		return gzip.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func (h *FileHandlerImpl) checkExtension(name string) *APIError {
	ext := strings.ToLower(filepath.Ext(name))
	if !h.allowedExt[ext] {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    CodeValidation,
			Message: fmt.Sprintf("Could not read file: %s: unsupported file type %q", name, ext),
		}
	}
	return nil
}

// Request types

type uploadFileRequest struct {
	Name     string `json:"name"`
	Data     string `json:"data"`     // Base64-encoded file content
	Encoding string `json:"encoding"` // "" or "gzip"
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type selectFileRequest struct {
	FileID string `json:"fileId"`
}
