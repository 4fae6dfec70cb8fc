package config

import (
	"os"
	"strings"
)

// Environment represents the current runtime environment
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

// GetEnvironment determines the current environment
func GetEnvironment() Environment {
	if os.Getenv("CI") == "true" {
		return CI
	}

	switch Environment(os.Getenv("ENV")) {
	case Production:
		return Production
	case Test:
		return Test
	default:
		return Development
	}
}

// IsProduction returns true if the current environment is production
func IsProduction() bool {
	return GetEnvironment() == Production
}

// envMappings translates the flat variable names used by the compose files
// into koanf paths. Unknown variables are ignored.
var envMappings = map[string]string{
	"server_host":      "server.host",
	"server_port":      "server.port",
	"cors_origins":     "server.cors_origins",
	"max_upload_bytes": "server.max_upload_bytes",
	"shutdown_timeout": "server.shutdown_timeout",

	"db_driver":   "database.driver",
	"db_host":     "database.host",
	"db_port":     "database.port",
	"db_user":     "database.user",
	"db_password": "database.password",
	"db_name":     "database.name",
	"db_ssl_mode": "database.ssl_mode",
	"db_path":     "database.path",

	"redis_url":      "redis.url",
	"redis_host":     "redis.host",
	"redis_port":     "redis.port",
	"redis_password": "redis.password",
	"redis_db":       "redis.db",

	"jwt_secret": "jwt.secret",
	"jwt_expiry": "jwt.expiry",

	// CI provides credentials under TEST_ names.
	"test_db_password":    "database.password",
	"test_jwt_secret":     "jwt.secret",
	"test_redis_password": "redis.password",
	"test_redis_url":      "redis.url",

	"rate_limit_store":       "rate_limit.store",
	"rate_limit_predict":     "rate_limit.predict",
	"rate_limit_login":       "rate_limit.login",
	"rate_limit_register":    "rate_limit.register",
	"rate_limit_recipe_save": "rate_limit.recipe_save",
	"rate_limit_rate":        "rate_limit.rate",
	"rate_limit_default":     "rate_limit.default",

	"inference_url":              "inference.url",
	"inference_timeout":          "inference.timeout",
	"inference_food_threshold":   "inference.food_threshold",
	"inference_cache_ttl":        "inference.cache_ttl",
	"inference_breaker_failures": "inference.breaker_failures",
	"inference_breaker_cooldown": "inference.breaker_cooldown",
	"inference_max_rps":          "inference.max_rps",
	"inference_burst":            "inference.burst",

	"s3_bucket_name": "storage.bucket",
	"aws_region":     "storage.region",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
