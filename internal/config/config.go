// Package config loads histograph configuration from defaults, an optional
// YAML file and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// HTTP server
	ServerPort string `yaml:"server_port"`
	ServerURL  string `yaml:"server_url"`

	// Logging
	LogFile      string     `yaml:"log_file"`
	LogLevelName string     `yaml:"log_level"`
	LogLevel     slog.Level `yaml:"-"`

	// Action engine
	Languages     []string `yaml:"languages"`
	BulkBatchSize int      `yaml:"bulk_batch_size"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "histograph",
		SurrealDBDatabase:  "graph",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		ServerPort: "8484",
		ServerURL:  "http://localhost:8484",

		LogFile:      "/tmp/histograph.log",
		LogLevelName: "INFO",
		LogLevel:     slog.LevelInfo,

		Languages:     []string{"en", "fr", "de"},
		BulkBatchSize: 100,
	}
}

// Load builds the configuration. When HISTOGRAPH_CONFIG names a YAML file it
// is applied over the defaults; environment variables are applied last.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("HISTOGRAPH_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.SurrealDBURL, "SURREALDB_URL")
	setString(&c.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	setString(&c.SurrealDBDatabase, "SURREALDB_DATABASE")
	setString(&c.SurrealDBUser, "SURREALDB_USER")
	setString(&c.SurrealDBPass, "SURREALDB_PASS")
	setString(&c.SurrealDBAuthLevel, "SURREALDB_AUTH_LEVEL")

	setString(&c.ServerPort, "HISTOGRAPH_SERVER_PORT")
	setString(&c.ServerURL, "HISTOGRAPH_SERVER_URL")

	setString(&c.LogFile, "HISTOGRAPH_LOG_FILE")
	setString(&c.LogLevelName, "HISTOGRAPH_LOG_LEVEL")

	if v := os.Getenv("HISTOGRAPH_LANGUAGES"); v != "" {
		c.Languages = splitList(v)
	}
	if v := os.Getenv("HISTOGRAPH_BULK_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HISTOGRAPH_BULK_BATCH_SIZE: %w", err)
		}
		c.BulkBatchSize = n
	}
	return nil
}

var languageCode = regexp.MustCompile(`^[a-z]{2}$`)

// Validate checks values that would otherwise fail deep inside the engine.
func (c Config) Validate() error {
	if len(c.Languages) == 0 {
		return fmt.Errorf("config: at least one language is required")
	}
	for _, lang := range c.Languages {
		if !languageCode.MatchString(lang) {
			return fmt.Errorf("config: invalid language code %q", lang)
		}
	}
	if c.BulkBatchSize <= 0 {
		return fmt.Errorf("config: bulk batch size must be positive, got %d", c.BulkBatchSize)
	}
	if c.SurrealDBAuthLevel != "root" && c.SurrealDBAuthLevel != "database" {
		return fmt.Errorf("config: auth level must be root or database, got %q", c.SurrealDBAuthLevel)
	}
	return nil
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
