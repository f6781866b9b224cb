// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/data-explorer/backend/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions          Explorer
	AllowedExtensions []string
	AllowFileDeletion bool
	Version           string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Session SessionHandler
	Files   FileHandler
	Query   QueryHandler
	History HistoryHandler

	allowFileDeletion bool
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:            NewHealthHandler(deps.Version, deps.Sessions),
		Session:           NewSessionHandler(deps.Sessions),
		Files:             NewFileHandler(deps.Sessions, deps.AllowedExtensions),
		Query:             NewQueryHandler(deps.Sessions),
		History:           NewHistoryHandler(deps.Sessions),
		allowFileDeletion: deps.AllowFileDeletion,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Session lifecycle
	apiGroup.POST("/sessions", handlers.Session.HandleCreateSession)
	sessionGroup := apiGroup.Group("/sessions/:sessionId")
	sessionGroup.GET("", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/keepalive", handlers.Session.HandleSessionKeepAlive)

	// Files
	sessionGroup.POST("/files", handlers.Files.HandleUploadFiles)
	sessionGroup.POST("/files/base64", handlers.Files.HandleUploadBase64)
	sessionGroup.GET("/files", handlers.Files.HandleListFiles)
	if handlers.allowFileDeletion {
		sessionGroup.DELETE("/files/:fileId", handlers.Files.HandleDeleteFile)
	}
	sessionGroup.PUT("/selection", handlers.Files.HandleSelectFile)

	// Preview and questions
	sessionGroup.PUT("/preview-rows", handlers.Query.HandleSetPreviewRows)
	sessionGroup.GET("/preview", handlers.Query.HandlePreview)
	sessionGroup.GET("/preview/msgpack", handlers.Query.HandlePreviewMsgpack)
	sessionGroup.POST("/ask", handlers.Query.HandleAsk)

	// History and feedback
	sessionGroup.GET("/history", handlers.History.HandleGetHistory)
	sessionGroup.DELETE("/history", handlers.History.HandleClearHistory)
	sessionGroup.POST("/history/select", handlers.History.HandleSelectHistory)
	sessionGroup.POST("/history/:entryId/feedback", handlers.History.HandleEntryFeedback)
	sessionGroup.POST("/feedback", handlers.History.HandleFeedback)
}

// MiddlewareConfig selects the middleware installed by SetupMiddleware.
type MiddlewareConfig struct {
	RequestLogging    bool
	ShowErrorDetails  bool
	RequestTimeout    time.Duration
	EnableCompression bool
	CompressionLevel  int
	BodyLimit         string
	EnableCORS        bool
	AllowOrigins      []string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = NewErrorHandler(cfg.ShowErrorDetails)

	e.Use(middleware.RequestID())
	e.Use(requestLogger())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/keepalive") || path == "/api/health"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.FromContext(c.Request().Context()).LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.FromContext(c.Request().Context()).Error("panic recovered",
				"error", err, "stack", string(stack))
			return err
		},
	}))

	if cfg.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: cfg.RequestTimeout,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/ask") ||
					strings.Contains(path, "/files")
			},
			ErrorMessage: "Request timeout - query took too long",
		}))
	}

	if cfg.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.CompressionLevel,
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}

// requestLogger stores a logger tagged with the request id in the request
// context, so handlers and the session layer log with it.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				return next(c)
			}
			req := c.Request()
			ctx := logger.WithContext(req.Context(), logger.L.With("request_id", id))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
