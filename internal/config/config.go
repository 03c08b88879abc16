package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// LockTimeoutMs bounds how long an operation waits for exclusive access
	// to an application, slot or offer before failing with BUSY.
	LockTimeoutMs int `json:"lock_timeout_ms"`

	// EnforceOfferDeadline turns accept_by into a hard limit: responses after
	// the deadline fail with DEADLINE_PASSED instead of being recorded.
	EnforceOfferDeadline bool `json:"enforce_offer_deadline,omitempty"`

	// NotifyMaxAttempts is how many times an event is handed to the notifier
	// before the failure is logged and dropped.
	NotifyMaxAttempts int `json:"notify_max_attempts"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "application", "slot", "offer", "history".
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// RedisURL enables cross-process entity locks and event publishing.
	// Empty means in-process locks and log-only notification.
	RedisURL string `json:"redis_url,omitempty"`

	// RedisChannel is the pub/sub channel workflow events are published on.
	RedisChannel string `json:"redis_channel,omitempty"`

	// HTTPBind and HTTPPort control the address used by `placement serve`.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LockTimeoutMs:     2000,
		NotifyMaxAttempts: 3,
		RedisChannel:      "placement.events",
		HTTPBind:          "127.0.0.1",
		HTTPPort:          8088,
	}
}

// LockTimeout returns LockTimeoutMs as a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.placement.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.placement) and repo (.placement) directories.
// Repo config is found by walking upward from startDir to find the nearest .placement/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .placement/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".placement", "config.json")
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

// LoadEnv reads an optional .env file from dir and applies PLACEMENT_*
// overrides from the process environment on top of cfg.
// Variables already set in the environment win over the .env file.
func LoadEnv(cfg *Config, dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return ApplyEnv(cfg, os.LookupEnv)
}

// ApplyEnv overlays PLACEMENT_* variables resolved through lookup onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) (*Config, error) {
	overlay := &Config{}

	ints := []struct {
		key string
		dst *int
	}{
		{"PLACEMENT_LOCK_TIMEOUT_MS", &overlay.LockTimeoutMs},
		{"PLACEMENT_NOTIFY_MAX_ATTEMPTS", &overlay.NotifyMaxAttempts},
		{"PLACEMENT_DB_MAX_OPEN_CONNS", &overlay.DBMaxOpenConns},
		{"PLACEMENT_DB_MAX_IDLE_CONNS", &overlay.DBMaxIdleConns},
		{"PLACEMENT_HTTP_PORT", &overlay.HTTPPort},
	}
	for _, v := range ints {
		raw, ok := lookup(v.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.key, err)
		}
		*v.dst = n
	}

	if raw, ok := lookup("PLACEMENT_ENFORCE_OFFER_DEADLINE"); ok && strings.TrimSpace(raw) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("PLACEMENT_ENFORCE_OFFER_DEADLINE: %w", err)
		}
		overlay.EnforceOfferDeadline = b
	}
	if raw, ok := lookup("PLACEMENT_REDIS_URL"); ok {
		overlay.RedisURL = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("PLACEMENT_REDIS_CHANNEL"); ok {
		overlay.RedisChannel = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("PLACEMENT_HTTP_BIND"); ok {
		overlay.HTTPBind = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("PLACEMENT_DISABLED_TOOLS"); ok {
		overlay.DisabledTools = strings.Split(raw, ",")
	}

	return Merge(cfg, overlay), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.LockTimeoutMs = firstNonZero(overlay.LockTimeoutMs, base.LockTimeoutMs)
	result.NotifyMaxAttempts = firstNonZero(overlay.NotifyMaxAttempts, base.NotifyMaxAttempts)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.HTTPPort = firstNonZero(overlay.HTTPPort, base.HTTPPort)
	result.RedisURL = firstNonEmpty(overlay.RedisURL, base.RedisURL)
	result.RedisChannel = firstNonEmpty(overlay.RedisChannel, base.RedisChannel)
	result.HTTPBind = firstNonEmpty(overlay.HTTPBind, base.HTTPBind)

	// Booleans: overlay wins if true, else base
	result.EnforceOfferDeadline = base.EnforceOfferDeadline || overlay.EnforceOfferDeadline

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
