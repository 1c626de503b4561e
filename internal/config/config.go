package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Store backends for persisted state.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds application configuration.
type Config struct {
	// StoreBackend selects where groups, rules and settings persist:
	// "sqlite" (baseDir/grove.db) or "badger" (baseDir/badger).
	StoreBackend string `mapstructure:"store_backend"`

	// HostFile is the JSON session file the offline browser host reads and writes.
	HostFile string `mapstructure:"host_file"`

	// RulesFile is an optional YAML rules file used by "rules import" and
	// "rules watch" when no path is given.
	RulesFile string `mapstructure:"rules_file"`

	// SessionMaxResults caps how many recently closed entries are imported.
	SessionMaxResults int `mapstructure:"session_max_results"`

	// ArchiveClosesTabs closes an active group's tabs after archiving it.
	ArchiveClosesTabs bool `mapstructure:"archive_closes_tabs"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default. Only set if you experience contention.
	DBMaxOpenConns int `mapstructure:"db_max_open_conns"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `mapstructure:"db_max_idle_conns"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `mapstructure:"disabled_tools"`
}

// DefaultConfig returns the default configuration for baseDir.
func DefaultConfig(baseDir string) *Config {
	return &Config{
		StoreBackend:      BackendSQLite,
		HostFile:          filepath.Join(baseDir, "host.json"),
		SessionMaxResults: 60,
		LogLevel:          "info",
	}
}

// Load loads configuration from baseDir/config.json and GROVE_* environment
// variables. Missing files yield defaults.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.grove.
func Load(baseDir string) (*Config, error) {
	return LoadWithRepo(baseDir, "")
}

// LoadWithRepo loads configuration from both global (~/.grove) and repo (.grove) directories.
// Repo config is found by walking upward from startDir to find the nearest .grove/config.json.
// Repo config takes precedence for scalar values; disabled_tools lists are merged.
// Environment variables take precedence over both files.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	v := newViper(globalDir)

	if err := readFile(v, filepath.Join(globalDir, "config.json"), false); err != nil {
		return nil, err
	}
	globalTools := v.GetStringSlice("disabled_tools")

	var repoTools []string
	if startDir != "" {
		if repoPath := FindRepoConfig(startDir); repoPath != "" {
			repo := viper.New()
			if err := readFile(repo, repoPath, false); err != nil {
				return nil, err
			}
			repoTools = repo.GetStringSlice("disabled_tools")
			if err := readFile(v, repoPath, true); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, fromEnv := os.LookupEnv("GROVE_DISABLED_TOOLS"); !fromEnv {
		cfg.DisabledTools = mergeStringSlice(globalTools, repoTools)
	} else {
		cfg.DisabledTools = mergeStringSlice(cfg.DisabledTools, nil)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return cfg, nil
}

func newViper(baseDir string) *viper.Viper {
	d := DefaultConfig(baseDir)
	v := viper.New()
	v.SetDefault("store_backend", d.StoreBackend)
	v.SetDefault("host_file", d.HostFile)
	v.SetDefault("rules_file", d.RulesFile)
	v.SetDefault("session_max_results", d.SessionMaxResults)
	v.SetDefault("archive_closes_tabs", d.ArchiveClosesTabs)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("db_max_open_conns", 0)
	v.SetDefault("db_max_idle_conns", 0)
	v.SetDefault("disabled_tools", []string{})

	v.SetConfigType("json")
	v.SetEnvPrefix("GROVE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// readFile reads (or merges) a JSON config file into v. A missing file is not an error.
func readFile(v *viper.Viper, path string, merge bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	var err error
	if merge {
		err = v.MergeInConfig()
	} else {
		err = v.ReadInConfig()
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// FindRepoConfig walks upward from startDir to find the nearest .grove/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".grove", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("store_backend must be %q or %q, got %q", BackendSQLite, BackendBadger, c.StoreBackend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SessionMaxResults <= 0 {
		return fmt.Errorf("session_max_results must be positive, got %d", c.SessionMaxResults)
	}
	if c.HostFile == "" {
		return errors.New("host_file must be set")
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		return errors.New("db connection limits must not be negative")
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
