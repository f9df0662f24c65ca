// Package config loads and validates the YAML configuration for the
// lsmkv server: the tree's storage options, the transport's listen
// address, and the optional auth shared secret.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// StorageConfig maps directly onto lsm.Options.
type StorageConfig struct {
	DBPath                 string  `yaml:"db_path" validate:"required"`
	BufferCapacity         int     `yaml:"buffer_capacity" validate:"required,min=1"`
	BaseLevelTableCapacity int     `yaml:"base_level_table_capacity" validate:"required,min=1"`
	TotalLevels            int     `yaml:"total_levels" validate:"required,min=1,max=32"`
	LevelSizeRatio         float64 `yaml:"level_size_ratio" validate:"required,gt=1"`
	BloomFalsePositiveRate float64 `yaml:"bloom_false_positive_rate" validate:"required,gt=0,lt=1"`
}

// AuthConfig configures the optional shared-secret/JWT handshake gating
// command frames on the transport.
type AuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SharedSecret  string        `yaml:"shared_secret" validate:"required_if=Enabled true,omitempty,min=8"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// TransportConfig configures the mangos REP socket the server listens on.
type TransportConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
}

// MetricsConfig configures the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr" validate:"required_if=Enabled true"`
}

// Config is the top-level server configuration document.
type Config struct {
	Storage   StorageConfig   `yaml:"storage" validate:"required"`
	Transport TransportConfig `yaml:"transport" validate:"required"`
	Auth      AuthConfig      `yaml:"auth"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Default returns a configuration usable for local development: an
// unauthenticated Unix-domain-socket server rooted at dbPath.
func Default(dbPath string) Config {
	return Config{
		Storage: StorageConfig{
			DBPath:                 dbPath,
			BufferCapacity:         1000,
			BaseLevelTableCapacity: 4,
			TotalLevels:            7,
			LevelSizeRatio:         10,
			BloomFalsePositiveRate: 0.01,
		},
		Transport: TransportConfig{
			ListenAddr: "ipc:///tmp/lsmkv.sock",
		},
		Auth: AuthConfig{
			Enabled:       false,
			TokenDuration: 15 * time.Minute,
		},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}
