// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up next to the executable.
const FileName = "dataexplorer.yaml"

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Processing ProcessingConfig `mapstructure:"processing" yaml:"processing"`
	Security   SecurityConfig   `mapstructure:"security" yaml:"security"`
	Advanced   AdvancedConfig   `mapstructure:"advanced" yaml:"advanced"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                  int    `mapstructure:"port" yaml:"port"`
	BindAddress           string `mapstructure:"bind_address" yaml:"bind_address"`
	EnableCORS            bool   `mapstructure:"enable_cors" yaml:"enable_cors"`
	AllowOrigins          string `mapstructure:"allow_origins" yaml:"allow_origins"`
	ReadTimeout           int    `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeout          int    `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	IdleTimeout           int    `mapstructure:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	BodyLimit             string `mapstructure:"body_limit" yaml:"body_limit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `mapstructure:"data_directory" yaml:"data_directory"`
	UploadsDirectory string `mapstructure:"uploads_directory" yaml:"uploads_directory"`
	TempDirectory    string `mapstructure:"temp_directory" yaml:"temp_directory"`
	MaxUploadSize    string `mapstructure:"max_upload_size" yaml:"max_upload_size"`
}

// ProcessingConfig contains session settings
type ProcessingConfig struct {
	MaxSessions            int  `mapstructure:"max_sessions" yaml:"max_sessions"`
	SessionTimeoutMinutes  int  `mapstructure:"session_timeout_minutes" yaml:"session_timeout_minutes"`
	CleanupIntervalMinutes int  `mapstructure:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
	EnableCompression      bool `mapstructure:"enable_compression" yaml:"enable_compression"`
	CompressionLevel       int  `mapstructure:"compression_level" yaml:"compression_level"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool   `mapstructure:"allow_file_deletion" yaml:"allow_file_deletion"`
	AllowedFileTypes  string `mapstructure:"allowed_file_types" yaml:"allowed_file_types"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat            string `mapstructure:"log_format" yaml:"log_format"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging" yaml:"enable_request_logging"`
	DuckDBThreads        int    `mapstructure:"duckdb_threads" yaml:"duckdb_threads"`
	DuckDBMemoryLimit    string `mapstructure:"duckdb_memory_limit" yaml:"duckdb_memory_limit"`
}

// LLMConfig holds the language model settings. The API key is only read
// from the environment and never written to the config file.
type LLMConfig struct {
	APIKey        string  `mapstructure:"-" yaml:"-"`
	BaseURL       string  `mapstructure:"base_url" yaml:"base_url"`
	Model         string  `mapstructure:"model" yaml:"model"`
	Temperature   float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	SampleRows    int     `mapstructure:"sample_rows" yaml:"sample_rows"`
	MaxResultRows int     `mapstructure:"max_result_rows" yaml:"max_result_rows"`
}

// HistoryConfig controls how failed answers enter the history.
type HistoryConfig struct {
	RecordFailures          bool `mapstructure:"record_failures" yaml:"record_failures"`
	AllowFeedbackOnFailures bool `mapstructure:"allow_feedback_on_failures" yaml:"allow_feedback_on_failures"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                  8089,
			BindAddress:           "0.0.0.0",
			EnableCORS:            true,
			AllowOrigins:          "*",
			ReadTimeout:           30,
			WriteTimeout:          120,
			IdleTimeout:           120,
			RequestTimeoutSeconds: 30,
			BodyLimit:             "200M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
			MaxUploadSize:    "200M",
		},
		Processing: ProcessingConfig{
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			AllowedFileTypes:  ".csv,.xls,.xlsx",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
			DuckDBThreads:        2,
			DuckDBMemoryLimit:    "512MB",
		},
		LLM: LLMConfig{
			Model:         "gpt-4o-mini",
			Temperature:   0,
			MaxTokens:     512,
			SampleRows:    5,
			MaxResultRows: 200,
		},
		History: HistoryConfig{
			RecordFailures:          true,
			AllowFeedbackOnFailures: true,
		},
	}
}

// LoadEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file, creating it with defaults
// on first run.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		v := viper.New()
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# AI Data Explorer configuration\n# This file is auto-generated on first run\n# OPENAI_API_KEY is read from the environment or a .env file\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR relocates uploads and temp files under it
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.TempDirectory = filepath.Join(dataDir, "temp")
	}

	// DUCKDB_TEMP_DIR override (special handling)
	if tempDir := os.Getenv("DUCKDB_TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}

	c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.TempDirectory,
	} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := bytes.Parse(c.Server.BodyLimit); err != nil {
		return fmt.Errorf("invalid body limit %q: %w", c.Server.BodyLimit, err)
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}
	if c.Processing.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive")
	}
	return nil
}

// MaxUploadBytes returns the per-file upload limit in bytes.
func (c *AppConfig) MaxUploadBytes() (int64, error) {
	if c.Storage.MaxUploadSize == "" {
		return 0, nil
	}
	n, err := bytes.Parse(c.Storage.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max upload size %q: %w", c.Storage.MaxUploadSize, err)
	}
	return n, nil
}

// AllowedExtensions returns the lower-cased upload extension allowlist.
func (c *AppConfig) AllowedExtensions() []string {
	var exts []string
	for _, e := range strings.Split(c.Security.AllowedFileTypes, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

// SessionTimeout returns how long an idle session is kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle sessions are swept.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
