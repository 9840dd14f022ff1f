package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "./zim_files", cfg.Archives.Directory)
	assert.Equal(t, 10, cfg.Archives.CacheSize)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 5, cfg.Search.MaxConcurrent)
	assert.Equal(t, 100, cfg.Search.CacheSize)
	assert.Equal(t, "text", cfg.Content.DefaultFormat)
	assert.Equal(t, 50000, cfg.Content.MaxLength)
	assert.Equal(t, 10, cfg.Content.RedirectDepth)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
archives:
  directory: /srv/zim
  cache_size: 3
search:
  max_results: 40
  timeout: 10s
  max_concurrent: 2
content:
  default_format: html
  redirect_depth: 4
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/zim", cfg.Archives.Directory)
	assert.Equal(t, 3, cfg.Archives.CacheSize)
	assert.Equal(t, 40, cfg.Search.MaxResults)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 2, cfg.Search.MaxConcurrent)
	assert.Equal(t, "html", cfg.Content.DefaultFormat)
	assert.Equal(t, 4, cfg.Content.RedirectDepth)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// unset values still get defaults
	assert.Equal(t, 100, cfg.Search.CacheSize)
	assert.Equal(t, 50000, cfg.Content.MaxLength)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "archives: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Equal(t, "./zim_files", cfg.Archives.Directory)
	assert.Equal(t, 100, cfg.Search.MaxResults)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `
archives:
  directory: /srv/zim
search:
  max_results: 40
`)

	t.Setenv("ZIM_FILES_DIRECTORY", "/env/zim")
	t.Setenv("MAX_SEARCH_RESULTS", "25")
	t.Setenv("SEARCH_TIMEOUT", "45s")
	t.Setenv("REDIRECT_DEPTH", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/env/zim", cfg.Archives.Directory)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, 45*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 3, cfg.Content.RedirectDepth)
}

func TestEnvDurationAcceptsBareSeconds(t *testing.T) {
	t.Setenv("SEARCH_TIMEOUT", "45")

	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Equal(t, 45*time.Second, cfg.Search.Timeout)
}

func TestEnvOverridesApplyToDefaults(t *testing.T) {
	t.Setenv("ARCHIVE_CACHE_SIZE", "2")
	t.Setenv("DEFAULT_CONTENT_FORMAT", "html")

	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Equal(t, 2, cfg.Archives.CacheSize)
	assert.Equal(t, "html", cfg.Content.DefaultFormat)
}
