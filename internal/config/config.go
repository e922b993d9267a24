// Package config provides configuration management for promptvault.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultHTTPAddr is the default listen address.
	DefaultHTTPAddr = "127.0.0.1:8080"
	// DefaultTokenTTL is the default lifetime of issued tokens.
	DefaultTokenTTL = 24 * time.Hour
	// DefaultMaxConns is the default database pool size.
	DefaultMaxConns = 4

	dataDirName      = ".promptvault"
	settingsFileName = "settings.yaml"
	dbFileName       = "promptvault.db"
	envPrefix        = "PROMPTVAULT_"
)

// Config holds the server configuration.
type Config struct {
	HTTPAddr       string        `yaml:"http_addr"`
	DBDriver       string        `yaml:"db_driver"`
	DBPath         string        `yaml:"db_path"`
	DatabaseURL    string        `yaml:"database_url"`
	MaxConns       int           `yaml:"max_conns"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	LogFile        string        `yaml:"log_file"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// DataDir returns the data directory path.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbFileName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsFileName)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a default settings file, with a fresh token
// secret, if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := Default()
	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generate jwt secret: %w", err)
	}
	cfg.JWTSecret = secret

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll ensures the data directory and settings file exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := EnsureSettings(); err != nil {
		return fmt.Errorf("create settings: %w", err)
	}
	return nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:       DefaultHTTPAddr,
		DBDriver:       "sqlite",
		DBPath:         DBPath(),
		MaxConns:       DefaultMaxConns,
		TokenTTL:       DefaultTokenTTL,
		LogLevel:       "info",
		LogFormat:      "console",
		MetricsEnabled: true,
	}
}

// Load builds the configuration from defaults, the settings file, .env files
// and PROMPTVAULT_* environment variables, later sources winning. An
// unreadable settings file is logged and skipped.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			log.Warn().Err(err).Str("path", SettingsPath()).Msg("Invalid settings file, using defaults")
		} else {
			cfg.merge(&fileCfg)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read settings: %w", err)
	}

	loadDotEnv(".env", filepath.Join(DataDir(), ".env"))
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
// A failed load yields the defaults.
func Get() *Config {
	configMu.RLock()
	if globalConfig != nil {
		defer configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig != nil {
		return globalConfig
	}
	cfg, err := Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = Default()
	}
	globalConfig = cfg
	return globalConfig
}

// Validate checks values that have a fixed domain.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db_driver must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required for the postgres driver")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be positive, got %d", c.MaxConns)
	}
	return nil
}

// merge overlays the non-zero fields of o. metrics_enabled is taken as is
// since false is meaningful.
func (c *Config) merge(o *Config) {
	setString(&c.HTTPAddr, o.HTTPAddr)
	setString(&c.DBDriver, o.DBDriver)
	setString(&c.DBPath, o.DBPath)
	setString(&c.DatabaseURL, o.DatabaseURL)
	setString(&c.JWTSecret, o.JWTSecret)
	setString(&c.LogLevel, o.LogLevel)
	setString(&c.LogFormat, o.LogFormat)
	setString(&c.LogFile, o.LogFile)
	if o.MaxConns > 0 {
		c.MaxConns = o.MaxConns
	}
	if o.TokenTTL > 0 {
		c.TokenTTL = o.TokenTTL
	}
	c.MetricsEnabled = o.MetricsEnabled
}

func (c *Config) applyEnv() error {
	setString(&c.HTTPAddr, env("HTTP_ADDR"))
	setString(&c.DBDriver, env("DB_DRIVER"))
	setString(&c.DBPath, env("DB_PATH"))
	setString(&c.DatabaseURL, env("DATABASE_URL"))
	setString(&c.JWTSecret, env("JWT_SECRET"))
	setString(&c.LogLevel, env("LOG_LEVEL"))
	setString(&c.LogFormat, env("LOG_FORMAT"))
	setString(&c.LogFile, env("LOG_FILE"))

	if v := env("MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_CONNS: %w", envPrefix, err)
		}
		c.MaxConns = n
	}
	if v := env("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTOKEN_TTL: %w", envPrefix, err)
		}
		c.TokenTTL = d
	}
	if v := env("METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMETRICS_ENABLED: %w", envPrefix, err)
		}
		c.MetricsEnabled = b
	}
	return nil
}

// loadDotEnv loads the files that exist. Variables already set are kept.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Failed to load env file")
			continue
		}
		log.Debug().Str("path", p).Msg("Env file loaded")
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
