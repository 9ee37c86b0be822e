// Package config loads service configuration from defaults, an optional config file,
// a .env file and CLEANRATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CLEANRATE_STORAGE_DRIVER.
const EnvPrefix = "CLEANRATE"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverNeo4j  = "neo4j"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `json:"server"      mapstructure:"server"`
	Storage     StorageConfig     `json:"storage"     mapstructure:"storage"`
	Propagation PropagationConfig `json:"propagation" mapstructure:"propagation"`
	Log         LogConfig         `json:"log"         mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `json:"addr"          mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout"  mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// StorageConfig selects and configures the repository backend.
type StorageConfig struct {
	Driver string       `json:"driver" mapstructure:"driver"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Neo4j  Neo4jConfig  `json:"neo4j"  mapstructure:"neo4j"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// Neo4jConfig holds the bolt connection settings.
type Neo4jConfig struct {
	URI      string `json:"uri"                mapstructure:"uri"`
	Username string `json:"username"           mapstructure:"username"`
	Password string `json:"password"           mapstructure:"password"`
	Database string `json:"database,omitempty" mapstructure:"database"`
}

// PropagationConfig bounds retries of conflicting rating transactions.
type PropagationConfig struct {
	MaxAttempts    int           `json:"max_attempts"    mapstructure:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"     mapstructure:"max_backoff"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `json:"level"  mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.sqlite.path", "cleanrate.db")
	v.SetDefault("storage.neo4j.uri", "neo4j://neo4j:7687")
	v.SetDefault("storage.neo4j.username", "neo4j")
	v.SetDefault("storage.neo4j.password", "password")
	v.SetDefault("storage.neo4j.database", "")
	v.SetDefault("propagation.max_attempts", 3)
	v.SetDefault("propagation.initial_backoff", "10ms")
	v.SetDefault("propagation.max_backoff", "200ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration. An empty path skips the config file; a missing .env file is
// not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ValidateSettings(v.AllSettings()); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Propagation.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("propagation.max_attempts must be > 0")
	}
	return cfg, nil
}
