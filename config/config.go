package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable pointing at an optional YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Inference InferenceConfig `koanf:"inference"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            string        `koanf:"port"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects the relational store. Driver is "postgres" or "sqlite";
// Path is only read for sqlite.
type DatabaseConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`
	Path     string `koanf:"path"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

type JWTConfig struct {
	Secret string        `koanf:"secret"`
	Expiry time.Duration `koanf:"expiry"`
}

// RateLimitConfig carries one budget per route in "<limit>/<window>" form, e.g. "5/1m".
type RateLimitConfig struct {
	Store      string `koanf:"store"`
	Predict    string `koanf:"predict"`
	Login      string `koanf:"login"`
	Register   string `koanf:"register"`
	RecipeSave string `koanf:"recipe_save"`
	Rate       string `koanf:"rate"`
	Default    string `koanf:"default"`
}

type InferenceConfig struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	FoodThreshold float64       `koanf:"food_threshold"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	// Breaker trips after this many consecutive engine failures.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
	// MaxRPS throttles outbound engine calls per instance; 0 disables it.
	MaxRPS float64 `koanf:"max_rps"`
	Burst  int     `koanf:"burst"`
}

type StorageConfig struct {
	Bucket string `koanf:"bucket"`
	Region string `koanf:"region"`
}

// Enabled reports whether generated-recipe images should be uploaded to S3.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			CORSOrigins:     []string{"http://localhost:5173"},
			MaxUploadBytes:  16 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "recipelens",
			SSLMode: "disable",
			Path:    "recipelens.db",
		},
		JWT: JWTConfig{
			Expiry: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Store:      "memory",
			Predict:    "5/1m",
			Login:      "5/1m",
			Register:   "3/1h",
			RecipeSave: "20/1h",
			Rate:       "10/1h",
			Default:    "120/1m",
		},
		Inference: InferenceConfig{
			Timeout:         60 * time.Second,
			FoodThreshold:   0.15,
			CacheTTL:        10 * time.Minute,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
			Burst:           1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// environment variables and finally Docker secrets, then validates it for the
// current environment.
func LoadConfig() (*Config, error) {
	envName := GetEnvironment()
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitListValue(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	// CI runners have no secrets mount; everything else may override from /run/secrets.
	if envName != CI {
		for name, path := range secretMappings {
			if value := readSecret(name); value != "" {
				if err := k.Set(path, value); err != nil {
					return nil, fmt.Errorf("failed to apply secret %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL returns the lib/pq style connection URL used by the migrate command.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// splitListValue turns a comma separated env value into a string slice.
func splitListValue(k *koanf.Koanf, path string) error {
	raw, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if err := k.Set(path, items); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// secretMappings maps Docker secret file names to config paths.
var secretMappings = map[string]string{
	"db_user":        "database.user",
	"db_password":    "database.password",
	"jwt_secret":     "jwt.secret",
	"redis_password": "redis.password",
	"redis_url":      "redis.url",
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
