// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// DefaultUserID is the user the client acts as when none is configured.
const DefaultUserID = "00000000-0000-0000-0000-000000000001"

// Config represents the complete geltek configuration.
type Config struct {
	Service ServiceConfig `toml:"service" json:"service" yaml:"service"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// ServiceConfig describes how to reach the remote chat service.
type ServiceConfig struct {
	// BaseURL is the service root; endpoint paths are appended to it.
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	// UserID identifies the user whose chats are listed and written.
	UserID string `toml:"user_id" json:"user_id" yaml:"user_id"`
	// RequestTimeout bounds the chat list and history calls.
	RequestTimeout Duration `toml:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	// IdleTimeout ends a reply stream that delivers no bytes for this long.
	// Zero disables the check.
	IdleTimeout Duration `toml:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`
	// RequestsPerSecond limits outgoing requests; zero disables limiting.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	// Burst is the number of requests allowed at once above the rate.
	Burst int `toml:"burst" json:"burst" yaml:"burst"`
}

// UIConfig contains terminal UI settings. It is the part of the
// configuration that is reloaded live while the TUI runs.
type UIConfig struct {
	// SidebarLimit is the number of chats listed in the sidebar.
	SidebarLimit int `toml:"sidebar_limit" json:"sidebar_limit" yaml:"sidebar_limit"`
	// RenderMarkdown renders finished assistant replies with glamour.
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown" yaml:"render_markdown"`
	// WordWrap is the wrap width used for rendered markdown.
	WordWrap int `toml:"word_wrap" json:"word_wrap" yaml:"word_wrap"`
	// ShowTimestamps prints message times next to role labels.
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps" yaml:"show_timestamps"`
}

// LoggingConfig controls the diagnostic log.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`
	// File is the log path; empty means ~/.geltek/geltek.log.
	File string `toml:"file" json:"file" yaml:"file"`
}

// Default returns a new Config with default values. BaseURL has no default.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			UserID:            DefaultUserID,
			RequestTimeout:    Duration(30 * time.Second),
			IdleTimeout:       Duration(60 * time.Second),
			RequestsPerSecond: 5,
			Burst:             10,
		},
		UI: UIConfig{
			SidebarLimit:   7,
			RenderMarkdown: true,
			WordWrap:       80,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// A bare integer is read as seconds.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the geltek configuration directory path.
// GELTEK_HOME overrides the default ~/.geltek.
func ConfigDir() (string, error) {
	if dir := os.Getenv("GELTEK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".geltek"), nil
}

// ConfigPath returns the path to the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultLogPath returns the log file used when logging.file is empty.
func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "geltek.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load assembles the configuration from defaults, the TOML file at path
// (the default location when path is empty), a .env file and the
// environment.
//
// A missing file is not an error. Load does not validate: commands that
// contact the service call Validate before issuing the first request.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	LoadDotEnv()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	return cfg, nil
}

// LoadTOML decodes the file at path over cfg.
func LoadTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("parse %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads .env from the working directory into the process
// environment. Variables that are already set keep their values.
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// ApplyEnvOverrides applies environment variable overrides:
//   - GELTEK_BASE_URL, or NEXT_PUBLIC_API_BASE_URL: service.base_url
//   - GELTEK_USER_ID: service.user_id
//   - GELTEK_IDLE_TIMEOUT: service.idle_timeout
//   - GELTEK_LOG_LEVEL: logging.level
//   - GELTEK_LOG_FILE: logging.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NEXT_PUBLIC_API_BASE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("GELTEK_BASE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("GELTEK_USER_ID"); v != "" {
		c.Service.UserID = v
	}
	if v := os.Getenv("GELTEK_IDLE_TIMEOUT"); v != "" {
		var d Duration
		if err := d.UnmarshalText([]byte(v)); err == nil {
			c.Service.IdleTimeout = d
		}
	}
	if v := os.Getenv("GELTEK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GELTEK_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// SetDefaults normalizes values and fills in settings left empty.
func (c *Config) SetDefaults() {
	def := Default()
	c.Service.BaseURL = strings.TrimRight(strings.TrimSpace(c.Service.BaseURL), "/")
	c.Service.UserID = strings.TrimSpace(c.Service.UserID)
	if c.Service.UserID == "" {
		c.Service.UserID = def.Service.UserID
	}
	if c.Service.RequestTimeout == 0 {
		c.Service.RequestTimeout = def.Service.RequestTimeout
	}
	if c.Service.Burst <= 0 {
		c.Service.Burst = 1
	}
	if c.UI.SidebarLimit == 0 {
		c.UI.SidebarLimit = def.UI.SidebarLimit
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = def.UI.WordWrap
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ConfigurationError represents a missing or invalid setting. It is fatal:
// it is reported at startup, before any request is made.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigurationErrors is a collection of configuration errors.
type ConfigurationErrors []ConfigurationError

func (e ConfigurationErrors) Error() string {
	if len(e) == 0 {
		return "no configuration errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ConfigurationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i := range e {
		out[i] = e[i]
	}
	return out
}

// missingBaseURL explains how to supply the service URL.
const missingBaseURL = "not set; add base_url to [service] or export GELTEK_BASE_URL"

// Validate checks the configuration. It returns ConfigurationErrors or nil.
func (c *Config) Validate() error {
	var errs ConfigurationErrors

	if err := ValidateBaseURL(c.Service.BaseURL); err != nil {
		errs = append(errs, *err)
	}
	if c.Service.UserID == "" {
		errs = append(errs, ConfigurationError{Field: "service.user_id", Message: "must not be empty"})
	}
	if c.Service.RequestTimeout < 0 {
		errs = append(errs, ConfigurationError{Field: "service.request_timeout", Message: "must not be negative"})
	}
	if c.Service.IdleTimeout < 0 {
		errs = append(errs, ConfigurationError{Field: "service.idle_timeout", Message: "must not be negative (use 0 to disable)"})
	}
	if c.Service.RequestsPerSecond < 0 {
		errs = append(errs, ConfigurationError{Field: "service.requests_per_second", Message: "must not be negative (use 0 to disable)"})
	}
	if c.UI.SidebarLimit < 1 {
		errs = append(errs, ConfigurationError{Field: "ui.sidebar_limit", Message: "must be at least 1"})
	}
	if c.UI.WordWrap < 20 {
		errs = append(errs, ConfigurationError{Field: "ui.word_wrap", Message: "must be at least 20"})
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ConfigurationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateBaseURL checks that raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) *ConfigurationError {
	if raw == "" {
		return &ConfigurationError{Field: "service.base_url", Message: missingBaseURL}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationError{Field: "service.base_url", Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationError{Field: "service.base_url", Message: fmt.Sprintf("scheme must be http or https, got '%s'", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigurationError{Field: "service.base_url", Message: "missing host"}
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it from the
// default location on first access if SetGlobal was never called.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.Lock()
		defer globalConfigMu.Unlock()
		if globalConfig != nil {
			return
		}
		cfg, err := Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the process-wide configuration. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// UpdateGlobalUI swaps the UI section of the process-wide configuration.
func UpdateGlobalUI(ui UIConfig) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		return
	}
	next := globalConfig.Clone()
	next.UI = ui
	globalConfig = next
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
