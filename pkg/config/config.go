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
	"gopkg.in/yaml.v3"
)

// Filename conflict policies.
const (
	ConflictUniquify  = "uniquify"
	ConflictOverwrite = "overwrite"
)

// Config holds all settings for postgrab.
type Config struct {
	Download   DownloadConfig   `yaml:"download" json:"download"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`
	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Bridge     BridgeConfig     `yaml:"bridge" json:"bridge"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// DownloadConfig controls the download queue manager.
type DownloadConfig struct {
	// MaxConcurrent caps the sliding window of in-flight downloads.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`
	// LaunchDelay is the fixed delay before starting each subsequent item.
	LaunchDelay time.Duration `yaml:"launch_delay" json:"launch_delay"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	// MinFileSize rejects suspiciously small responses (tracking pixels).
	MinFileSize int64 `yaml:"min_file_size" json:"min_file_size"`
}

// RetryConfig controls per-item retry with linear backoff.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
}

// ExtractionConfig tunes the page heuristics.
type ExtractionConfig struct {
	ReadyTimeout  time.Duration `yaml:"ready_timeout" json:"ready_timeout"`
	ReadyInterval time.Duration `yaml:"ready_interval" json:"ready_interval"`
	// CarouselMaxStale is how many consecutive rescans may yield no new
	// images before carousel navigation gives up.
	CarouselMaxStale int           `yaml:"carousel_max_stale" json:"carousel_max_stale"`
	CarouselMaxPages int           `yaml:"carousel_max_pages" json:"carousel_max_pages"`
	CarouselDelay    time.Duration `yaml:"carousel_delay" json:"carousel_delay"`
	// MinImageSize drops declared-size images below this many pixels per side.
	MinImageSize int `yaml:"min_image_size" json:"min_image_size"`
}

// FetchConfig controls the page-fetching client.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
}

// OutputConfig controls where and how files land on disk.
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	// ConflictPolicy is "uniquify" or "overwrite".
	ConflictPolicy string `yaml:"conflict_policy" json:"conflict_policy"`
	WriteManifest  bool   `yaml:"write_manifest" json:"write_manifest"`
}

// BridgeConfig controls the local HTTP/WebSocket bridge.
type BridgeConfig struct {
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Download: DownloadConfig{
			MaxConcurrent: 3,
			LaunchDelay:   500 * time.Millisecond,
			Timeout:       30 * time.Second,
			MinFileSize:   0,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       500 * time.Millisecond,
		},
		Extraction: ExtractionConfig{
			ReadyTimeout:     10 * time.Second,
			ReadyInterval:    500 * time.Millisecond,
			CarouselMaxStale: 2,
			CarouselMaxPages: 20,
			CarouselDelay:    700 * time.Millisecond,
			MinImageSize:     150,
		},
		Fetch: FetchConfig{
			Timeout:           20 * time.Second,
			CacheTTL:          30 * time.Second,
			RequestsPerMinute: 60,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Output: OutputConfig{
			Directory:      "./downloads",
			ConflictPolicy: ConflictUniquify,
			WriteManifest:  true,
		},
		Bridge: BridgeConfig{
			ListenAddr:     "127.0.0.1:8749",
			RequestTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides settings from POSTGRAB_* environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("POSTGRAB_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Download.MaxConcurrent = n
		}
	}
	if v := os.Getenv("POSTGRAB_LAUNCH_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.Download.LaunchDelay = d
		}
	}
	if v := os.Getenv("POSTGRAB_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("POSTGRAB_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.Retry.Delay = d
		}
	}
	if v := os.Getenv("POSTGRAB_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("POSTGRAB_USER_AGENT"); v != "" {
		c.Fetch.UserAgent = v
	}
	if v := os.Getenv("POSTGRAB_BRIDGE_ADDR"); v != "" {
		c.Bridge.ListenAddr = v
	}
	if v := os.Getenv("POSTGRAB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the standard locations and silently uses defaults when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		".postgrab.yaml",
		".postgrab.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "postgrab", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".postgrab.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	if c.Download.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("download.max_concurrent must be positive"))
	}
	if c.Download.MaxConcurrent > 10 {
		errs = append(errs, errors.New("download.max_concurrent should not exceed 10"))
	}
	if c.Download.LaunchDelay < 0 {
		errs = append(errs, errors.New("download.launch_delay cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download.timeout must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry.max_attempts cannot be negative"))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, errors.New("retry.delay cannot be negative"))
	}
	if c.Extraction.ReadyTimeout <= 0 {
		errs = append(errs, errors.New("extraction.ready_timeout must be positive"))
	}
	if c.Extraction.ReadyInterval <= 0 {
		errs = append(errs, errors.New("extraction.ready_interval must be positive"))
	}
	if c.Extraction.CarouselMaxStale <= 0 {
		errs = append(errs, errors.New("extraction.carousel_max_stale must be positive"))
	}
	if c.Extraction.CarouselMaxPages <= 0 {
		errs = append(errs, errors.New("extraction.carousel_max_pages must be positive"))
	}
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output.directory is required"))
	}
	switch strings.ToLower(c.Output.ConflictPolicy) {
	case ConflictUniquify, ConflictOverwrite:
	default:
		errs = append(errs, errors.New("output.conflict_policy must be uniquify or overwrite"))
	}
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Clone returns a deep-enough copy; all fields are value types.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// MergeFlags applies command line flag overrides.
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.MaxConcurrent = concurrent
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr, ok := flags["listen"].(string); ok && addr != "" {
		c.Bridge.ListenAddr = addr
	}
}

// Load builds the effective configuration.
// Precedence: flags > environment (.env included) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".postgrab.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
