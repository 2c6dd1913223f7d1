package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/storage"
)

// Config is the resolved contentstream configuration.
type Config struct {
	Endpoint            string
	Storage             storage.Kind
	StoragePath         string
	LogFile             string
	LogLevel            string
	ScrollDebounce      time.Duration
	ResizeDebounce      time.Duration
	NotReadyDelay       time.Duration
	NotReadyRetries     int
	PageLimit           int
	ExclusiveProperties []string
	Theme               string
	PrefsPath           string
}

const (
	defaultConfigPath      = "~/.config/contentstream/config.toml"
	defaultPrefsPath       = "~/.config/contentstream/prefs.toml"
	defaultLogFile         = "~/.local/state/contentstream/contentstream.log"
	defaultEndpoint        = "http://127.0.0.1:8080/widget"
	defaultLogLevel        = "info"
	defaultScrollDebounce  = 333 * time.Millisecond
	defaultResizeDebounce  = 500 * time.Millisecond
	defaultNotReadyDelay   = 50 * time.Millisecond
	defaultNotReadyRetries = 200
)

// fileConfig mirrors the TOML document. Pointers distinguish an explicit zero
// from a missing key.
type fileConfig struct {
	Endpoint            string   `toml:"endpoint"`
	Storage             string   `toml:"storage"`
	StoragePath         string   `toml:"storage_path"`
	LogFile             *string  `toml:"log_file"`
	LogLevel            string   `toml:"log_level"`
	ScrollDebounceMS    *int     `toml:"scroll_debounce_ms"`
	ResizeDebounceMS    *int     `toml:"resize_debounce_ms"`
	NotReadyDelayMS     *int     `toml:"not_ready_delay_ms"`
	NotReadyRetries     *int     `toml:"not_ready_retries"`
	PageLimit           int      `toml:"page_limit"`
	ExclusiveProperties []string `toml:"exclusive_properties"`
	Theme               string   `toml:"theme"`
	PrefsPath           string   `toml:"prefs_path"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Endpoint:            defaultEndpoint,
		Storage:             storage.KindFile,
		LogFile:             mustExpand(defaultLogFile),
		LogLevel:            defaultLogLevel,
		ScrollDebounce:      defaultScrollDebounce,
		ResizeDebounce:      defaultResizeDebounce,
		NotReadyDelay:       defaultNotReadyDelay,
		NotReadyRetries:     defaultNotReadyRetries,
		ExclusiveProperties: append([]string(nil), filters.DefaultExclusiveProperties...),
		PrefsPath:           mustExpand(defaultPrefsPath),
	}
}

// Load locates and parses the config file, falling back to defaults when it
// is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.merge(raw); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(raw fileConfig) error {
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		c.Endpoint = v
	}
	if v := strings.ToLower(strings.TrimSpace(raw.Storage)); v != "" {
		switch kind := storage.Kind(v); kind {
		case storage.KindFile, storage.KindSQLite, storage.KindMemory, storage.KindNone:
			c.Storage = kind
		default:
			return fmt.Errorf("parse config: unknown storage %q", raw.Storage)
		}
	}
	if v := strings.TrimSpace(raw.StoragePath); v != "" {
		expanded, err := expandPath(v)
		if err != nil {
			return fmt.Errorf("resolve storage_path: %w", err)
		}
		c.StoragePath = expanded
	}
	if raw.LogFile != nil {
		// An explicit empty log_file sends logs to stderr.
		c.LogFile = ""
		if v := strings.TrimSpace(*raw.LogFile); v != "" {
			c.LogFile = mustExpand(v)
		}
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	c.ScrollDebounce = millis(raw.ScrollDebounceMS, c.ScrollDebounce)
	c.ResizeDebounce = millis(raw.ResizeDebounceMS, c.ResizeDebounce)
	c.NotReadyDelay = millis(raw.NotReadyDelayMS, c.NotReadyDelay)
	if raw.NotReadyRetries != nil && *raw.NotReadyRetries != 0 {
		c.NotReadyRetries = *raw.NotReadyRetries
	}
	if raw.PageLimit > 0 {
		c.PageLimit = raw.PageLimit
	}
	if props := trimAll(raw.ExclusiveProperties); len(props) > 0 {
		c.ExclusiveProperties = props
	}
	c.Theme = strings.TrimSpace(raw.Theme)
	if v := strings.TrimSpace(raw.PrefsPath); v != "" {
		c.PrefsPath = mustExpand(v)
	}
	return nil
}

// Policy returns the exclusive-property policy described by the config.
func (c Config) Policy() filters.Policy {
	return filters.NewPolicy(c.ExclusiveProperties)
}

func millis(v *int, fallback time.Duration) time.Duration {
	if v == nil || *v <= 0 {
		return fallback
	}
	return time.Duration(*v) * time.Millisecond
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// DefaultPath returns the config path used when none is given.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
