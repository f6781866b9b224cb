package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/data-explorer/backend/internal/api"
	"github.com/data-explorer/backend/internal/config"
	"github.com/data-explorer/backend/internal/history"
	"github.com/data-explorer/backend/internal/logger"
	"github.com/data-explorer/backend/internal/parser"
	"github.com/data-explorer/backend/internal/query"
	"github.com/data-explorer/backend/internal/session"
	"github.com/data-explorer/backend/internal/storage"
	"github.com/data-explorer/backend/internal/web"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	if err := config.LoadEnv(); err != nil {
		return err
	}

	configPath := filepath.Join(exeDir, config.FileName)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)
	log := logger.Component("server")

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return err
	}
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir(), maxUpload)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; questions will fail until it is configured")
	}
	engine := query.NewOpenAIEngine(query.Config{
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		SampleRows:    cfg.LLM.SampleRows,
		MaxResultRows: cfg.LLM.MaxResultRows,
	}, nil)

	sessionMgr := session.NewManager(fileStore, parser.GetGlobalRegistry(), engine, session.Options{
		TempDir:     cfg.Storage.TempDirectory,
		MaxSessions: cfg.Processing.MaxSessions,
		History: history.Options{
			RecordFailures:          cfg.History.RecordFailures,
			AllowFeedbackOnFailures: cfg.History.AllowFeedbackOnFailures,
		},
		Duck: parser.DuckSettings{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		},
	})
	defer sessionMgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessionMgr.CleanupOldSessions(cfg.SessionTimeout()); n > 0 {
					log.Info("expired idle sessions", "count", n)
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging:    cfg.Advanced.EnableRequestLogging,
		ShowErrorDetails:  strings.EqualFold(cfg.Advanced.LogLevel, "debug"),
		RequestTimeout:    time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		EnableCompression: cfg.Processing.EnableCompression,
		CompressionLevel:  cfg.Processing.CompressionLevel,
		BodyLimit:         cfg.Server.BodyLimit,
		EnableCORS:        cfg.Server.EnableCORS,
		AllowOrigins:      splitOrigins(cfg.Server.AllowOrigins),
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions:          sessionMgr,
		AllowedExtensions: cfg.AllowedExtensions(),
		AllowFileDeletion: cfg.Security.AllowFileDeletion,
		Version:           Version,
	}))

	// Register embedded frontend if available
	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("failed to register static routes", "error", err)
			embeddedMode = false
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, embeddedMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func printBanner(cfg *config.AppConfig, configPath string, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Embedded front end"
	}
	model := cfg.LLM.Model
	if cfg.LLM.APIKey == "" {
		model += " (no API key)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           AI Data Explorer                                ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Model:      %-45s║\n", model)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embedded {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
