// Package config loads the Network Planner's runtime configuration.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the wirewardend server.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Vault       VaultConfig    `mapstructure:"vault"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// VaultConfig carries the process-wide AEAD secret used to seal private
// key and PSK material at rest. The secret itself is never put in the
// config file; it is read once from the environment at startup.
type VaultConfig struct {
	SealKeyBase64 string `mapstructure:"-"`
}

// SealKey decodes the 32-byte XChaCha20-Poly1305 key.
func (v VaultConfig) SealKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(v.SealKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("vault: seal key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault: seal key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SealKeyEnvVar is the environment variable holding the base64-encoded
// 32-byte process-wide AEAD secret (WIREWARDEN_SEAL_KEY via the
// automatic env prefix below).
const SealKeyEnvVar = "WIREWARDEN_SEAL_KEY"

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/wirewarden")

	v.SetEnvPrefix("WIREWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Vault.SealKeyBase64 = v.GetString("seal_key")
	if cfg.Vault.SealKeyBase64 == "" {
		return nil, fmt.Errorf("%s must be set", SealKeyEnvVar)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wirewarden")
	v.SetDefault("database.password", "wirewarden")
	v.SetDefault("database.database", "wirewarden")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
}
