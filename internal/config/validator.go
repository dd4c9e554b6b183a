package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateStatic checks the parts of cfg that need no network access and
// reports every failing section at once.
func ValidateStatic(cfg *Config) error {
	errs := []error{
		validateServer(cfg.Server),
		validateBroker(cfg.Broker),
		validateDatabase(cfg.Database),
		validateEngine(cfg.Engine),
	}
	if cfg.Idempotency.Enabled {
		errs = append(errs, validateIdempotency(cfg.Idempotency, cfg.Database.Redis))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return invalid(field, "port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateServer(cfg ServerConfig) error {
	if err := validatePort("server.port", cfg.Port); err != nil {
		return err
	}
	if cfg.ReadTimeoutSeconds <= 0 {
		return invalid("server.read_timeout_seconds", "read timeout must be positive")
	}
	if cfg.WriteTimeoutSeconds <= 0 {
		return invalid("server.write_timeout_seconds", "write timeout must be positive")
	}
	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return invalid("broker.type", "broker type is required")
	case "kafka":
		return validateKafka(cfg.Kafka)
	case "none":
		return nil
	default:
		return invalid("broker.type", "unknown broker type: %s (supported: kafka, none)", cfg.Type)
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return invalid("broker.kafka.brokers", "at least one Kafka broker is required")
	}
	if i := slices.Index(cfg.Brokers, ""); i >= 0 {
		return invalid(fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
	}
	if cfg.GroupID == "" {
		return invalid("broker.kafka.group_id", "Kafka consumer group ID is required")
	}
	if cfg.InputTopic == "" {
		return invalid("broker.kafka.input_topic", "input topic is required")
	}
	return validateRetry(cfg.Retry)
}

func validateRetry(cfg RetryConfig) error {
	switch {
	case cfg.MaxAttempts < 0:
		return invalid("broker.kafka.retry.max_attempts", "max_attempts must be non-negative")
	case cfg.InitialInterval < 0:
		return invalid("broker.kafka.retry.initial_interval", "initial_interval must be non-negative")
	case cfg.MaxInterval < 0:
		return invalid("broker.kafka.retry.max_interval", "max_interval must be non-negative")
	case cfg.MaxInterval > 0 && cfg.MaxInterval < cfg.InitialInterval:
		return invalid("broker.kafka.retry.max_interval", "max_interval must be greater than or equal to initial_interval")
	case cfg.Multiplier <= 0:
		return invalid("broker.kafka.retry.multiplier", "multiplier must be positive")
	}
	return nil
}

// validateDatabase only checks stores that are at least partly configured;
// both are optional.
func validateDatabase(cfg DatabaseConfig) error {
	var errs []error
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		errs = append(errs, validatePostgres(cfg.Postgres))
	}
	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		errs = append(errs, validateRedis(cfg.Redis))
	}
	return errors.Join(errs...)
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return invalid("database.postgres.host", "PostgreSQL host is required")
	}
	if err := validatePort("database.postgres.port", cfg.Port); err != nil {
		return err
	}
	if cfg.User == "" {
		return invalid("database.postgres.user", "PostgreSQL user is required")
	}
	if cfg.DBName == "" {
		return invalid("database.postgres.dbname", "PostgreSQL database name is required")
	}
	if cfg.SSLMode != "" && !slices.Contains(sslModes, strings.ToLower(cfg.SSLMode)) {
		return invalid("database.postgres.sslmode", "invalid SSL mode: %s (valid: %s)", cfg.SSLMode, strings.Join(sslModes, ", "))
	}
	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return invalid("database.redis.host", "Redis host is required")
	}
	return validatePort("database.redis.port", cfg.Port)
}

func validateEngine(cfg EngineConfig) error {
	if cfg.Noise.Window < 0 {
		return invalid("engine.noise.window", "window must be non-negative")
	}
	if cfg.Noise.Threshold < 0 {
		return invalid("engine.noise.threshold", "threshold must be non-negative, got %d", cfg.Noise.Threshold)
	}
	for i, marker := range cfg.Noise.BotMarkers {
		if strings.TrimSpace(marker) == "" {
			return invalid(fmt.Sprintf("engine.noise.bot_markers[%d]", i), "bot marker cannot be empty")
		}
	}
	if cfg.Rules.Watch && cfg.Rules.File == "" {
		return invalid("engine.rules.watch", "watch requires engine.rules.file to be set")
	}
	if cfg.Rules.ReloadIntervalSeconds < 0 {
		return invalid("engine.rules.reload_interval_seconds", "reload interval must be non-negative")
	}
	return nil
}

func validateIdempotency(cfg IdempotencyConfig, redis RedisConfig) error {
	if !redis.Enabled() {
		return invalid("idempotency.enabled", "idempotency requires database.redis to be configured")
	}
	if cfg.TTLSeconds <= 0 {
		return invalid("idempotency.ttl_seconds", "TTL must be positive")
	}
	return nil
}
