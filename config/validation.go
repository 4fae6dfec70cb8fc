package config

import (
	"fmt"
	"strings"

	"github.com/pageza/recipe-lens/backend/internal/ratelimit"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks if the configuration meets the requirements for the current environment
func ValidateConfig(cfg *Config) error {
	env := GetEnvironment()
	var errs []string
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg}.Error())
	}

	if cfg.JWT.Secret == "" {
		add("jwt.secret", "is required")
	} else if env == Production && len(cfg.JWT.Secret) < 32 {
		add("jwt.secret", "must be at least 32 characters in production")
	}
	if cfg.JWT.Expiry <= 0 {
		add("jwt.expiry", "must be positive")
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" || cfg.Database.Name == "" || cfg.Database.User == "" {
			add("database", "host, name and user are required for postgres")
		}
		if env == Production && cfg.Database.Password == "" {
			add("database.password", "db_password secret is required")
		}
	case "sqlite":
		if env == Production {
			add("database.driver", "sqlite is single-instance only and not allowed in production")
		}
		if cfg.Database.Path == "" {
			add("database.path", "is required for sqlite")
		}
	default:
		add("database.driver", fmt.Sprintf("unsupported driver %q", cfg.Database.Driver))
	}

	switch cfg.RateLimit.Store {
	case "redis":
		if !cfg.Redis.Enabled() {
			add("rate_limit.store", "redis store requires redis.url or redis.host")
		}
	case "memory":
		if env == Production {
			add("rate_limit.store", "memory store only limits a single instance; use redis in production")
		}
	default:
		add("rate_limit.store", fmt.Sprintf("unsupported store %q", cfg.RateLimit.Store))
	}

	rules := map[string]string{
		"rate_limit.predict":     cfg.RateLimit.Predict,
		"rate_limit.login":       cfg.RateLimit.Login,
		"rate_limit.register":    cfg.RateLimit.Register,
		"rate_limit.recipe_save": cfg.RateLimit.RecipeSave,
		"rate_limit.rate":        cfg.RateLimit.Rate,
		"rate_limit.default":     cfg.RateLimit.Default,
	}
	for field, raw := range rules {
		if _, err := ratelimit.ParseRule(raw); err != nil {
			add(field, err.Error())
		}
	}

	if cfg.Inference.URL == "" && env == Production {
		add("inference.url", "is required")
	}
	if cfg.Inference.Timeout <= 0 {
		add("inference.timeout", "must be positive")
	}
	if cfg.Inference.FoodThreshold < 0 || cfg.Inference.FoodThreshold > 1 {
		add("inference.food_threshold", "must be between 0 and 1")
	}
	if cfg.Inference.MaxRPS < 0 {
		add("inference.max_rps", "must not be negative")
	}

	if cfg.Server.MaxUploadBytes <= 0 {
		add("server.max_upload_bytes", "must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}
