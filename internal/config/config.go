// Package config loads the ZIM MCP server configuration from a YAML file,
// .env files, and environment variable overrides.
package config

import "time"

// Config holds the ZIM MCP server configuration.
type Config struct {
	Archives ArchivesConfig `yaml:"archives"`
	Search   SearchConfig   `yaml:"search"`
	Content  ContentConfig  `yaml:"content"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ArchivesConfig holds archive discovery and caching settings.
type ArchivesConfig struct {
	// Directory is scanned for ZIM archives on startup and refresh.
	Directory string `yaml:"directory" env:"ZIM_FILES_DIRECTORY"`
	// CacheSize bounds the number of simultaneously open archive handles.
	CacheSize int `yaml:"cache_size" env:"ARCHIVE_CACHE_SIZE"`
}

// SearchConfig holds federated search settings.
type SearchConfig struct {
	// MaxResults caps max_results on search calls and bounds per-archive fetches.
	MaxResults int `yaml:"max_results" env:"MAX_SEARCH_RESULTS"`
	// Timeout bounds each per-archive search during fan-out.
	Timeout time.Duration `yaml:"timeout" env:"SEARCH_TIMEOUT"`
	// MaxConcurrent bounds how many archives are searched in parallel.
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT_SEARCHES"`
	// CacheSize bounds the number of cached merged result sets.
	CacheSize int `yaml:"cache_size" env:"SEARCH_CACHE_SIZE"`
}

// ContentConfig holds content extraction settings.
type ContentConfig struct {
	// DefaultFormat is used when a tool call omits the format argument.
	DefaultFormat string `yaml:"default_format" env:"DEFAULT_CONTENT_FORMAT"`
	// MaxLength truncates extracted content beyond this many characters.
	MaxLength int `yaml:"max_length" env:"MAX_CONTENT_LENGTH"`
	// RedirectDepth bounds redirect chain following.
	RedirectDepth int `yaml:"redirect_depth" env:"REDIRECT_DEPTH"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Defaults applied when the config file or environment leaves values unset.
const (
	defaultDirectory     = "./zim_files"
	defaultArchiveCache  = 10
	defaultMaxResults    = 100
	defaultTimeout       = 30 * time.Second
	defaultMaxConcurrent = 5
	defaultSearchCache   = 100
	defaultFormat        = "text"
	defaultMaxLength     = 50000
	defaultRedirectDepth = 10
)

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	setDefaults(cfg)

	// Re-apply env overrides after defaults (env always wins)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadOrDefault loads config from file, or returns defaults if the file
// doesn't exist. MCP servers are commonly launched without a config file.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = NewDefault()
		applyEnvOverrides(cfg)
	}
	return cfg
}

// NewDefault creates a new config with all default values.
func NewDefault() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	if cfg.Archives.Directory == "" {
		cfg.Archives.Directory = defaultDirectory
	}
	if cfg.Archives.CacheSize <= 0 {
		cfg.Archives.CacheSize = defaultArchiveCache
	}

	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = defaultMaxResults
	}
	if cfg.Search.Timeout <= 0 {
		cfg.Search.Timeout = defaultTimeout
	}
	if cfg.Search.MaxConcurrent <= 0 {
		cfg.Search.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Search.CacheSize <= 0 {
		cfg.Search.CacheSize = defaultSearchCache
	}

	if cfg.Content.DefaultFormat == "" {
		cfg.Content.DefaultFormat = defaultFormat
	}
	if cfg.Content.MaxLength <= 0 {
		cfg.Content.MaxLength = defaultMaxLength
	}
	if cfg.Content.RedirectDepth <= 0 {
		cfg.Content.RedirectDepth = defaultRedirectDepth
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
