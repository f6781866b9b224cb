package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "DATA_DIR", "DUCKDB_TEMP_DIR", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_CreatesDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file is written on first run")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.Storage.UploadsDirectory)
	assert.True(t, cfg.History.RecordFailures)
	assert.True(t, cfg.History.AllowFeedbackOnFailures)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "record_failures: true")
	assert.NotContains(t, string(data), "api_key")
}

func TestLoadConfig_ReadsFileOverDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	content := `server:
  port: 9000
llm:
  model: gpt-4o
  sample_rows: 3
history:
  record_failures: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.BindAddress, "unset keys keep defaults")
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.SampleRows)
	assert.Equal(t, 200, cfg.LLM.MaxResultRows)
	assert.False(t, cfg.History.RecordFailures)
	assert.True(t, cfg.History.AllowFeedbackOnFailures)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "elsewhere")

	t.Setenv("PORT", "7777")
	t.Setenv("DATA_DIR", data)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(filepath.Join(dir, FileName))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, filepath.Join(data, "uploads"), cfg.Storage.UploadsDirectory)
	assert.Equal(t, filepath.Join(data, "temp"), cfg.Storage.TempDirectory)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, "0.0.0.0:7777", cfg.GetServerAddr())
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  max_upload_size: lots\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	assert.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPENAI_API_KEY=from-dotenv\n"), 0644))
	os.Unsetenv("OPENAI_API_KEY")
	require.NoError(t, LoadEnv(envFile))
	assert.Equal(t, "from-dotenv", os.Getenv("OPENAI_API_KEY"))
}

func TestAppConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()

	n, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(200*1024*1024), n)

	cfg.Security.AllowedFileTypes = " .CSV, xlsx ,,"
	assert.Equal(t, []string{".csv", ".xlsx"}, cfg.AllowedExtensions())

	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	cfg.Processing.CleanupIntervalMinutes = 0
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval())

	dir := t.TempDir()
	cfg.Storage.DataDirectory = filepath.Join(dir, "d")
	cfg.Storage.UploadsDirectory = filepath.Join(dir, "d", "u")
	cfg.Storage.TempDirectory = filepath.Join(dir, "d", "t")
	require.NoError(t, cfg.EnsureDirectories())
	_, err = os.Stat(cfg.Storage.TempDirectory)
	assert.NoError(t, err)
}
