package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "cache.max_size_bytes")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateCache()...)
	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateBatch()...)
	errors = append(errors, c.validateListening()...)
	errors = append(errors, c.validateFeedback()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateCache validates the CacheConfig
func (c *Config) validateCache() []ValidationError {
	var errors []ValidationError

	if c.Cache.MaxSizeBytes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.max_size_bytes",
			Value:   c.Cache.MaxSizeBytes,
			Message: "must be positive",
		})
	}
	if c.Cache.CleanupIntervalSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.cleanup_interval_seconds",
			Value:   c.Cache.CleanupIntervalSeconds,
			Message: "must be non-negative",
		})
	}
	if c.Cache.DefaultTTLSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.default_ttl_seconds",
			Value:   c.Cache.DefaultTTLSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if c.Scheduler.MaxTimeoutGrowthSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_timeout_growth_seconds",
			Value:   c.Scheduler.MaxTimeoutGrowthSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateBatch validates the BatchConfig
func (c *Config) validateBatch() []ValidationError {
	var errors []ValidationError

	if c.Batch.WindowMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "batch.window_ms",
			Value:   c.Batch.WindowMs,
			Message: "must be positive",
		})
	}
	if c.Batch.MaxSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "batch.max_size",
			Value:   c.Batch.MaxSize,
			Message: "must be positive",
		})
	}
	for _, taskType := range c.Batch.Types {
		if !IsValidBatchType(taskType) {
			errors = append(errors, ValidationError{
				Field:   "batch.types",
				Value:   taskType,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBatchTypes(), ", ")),
			})
		}
	}

	return errors
}

// validateListening validates the ListeningConfig
func (c *Config) validateListening() []ValidationError {
	var errors []ValidationError

	if c.Listening.ListenTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "listening.listen_timeout_seconds",
			Value:   c.Listening.ListenTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Listening.MaxSilenceSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "listening.max_silence_seconds",
			Value:   c.Listening.MaxSilenceSeconds,
			Message: "must be positive",
		})
	}
	if c.Listening.SettleDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "listening.settle_delay_ms",
			Value:   c.Listening.SettleDelayMs,
			Message: "must be non-negative",
		})
	}
	if c.Listening.PollIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "listening.poll_interval_ms",
			Value:   c.Listening.PollIntervalMs,
			Message: "must be positive",
		})
	}

	return errors
}

// validateFeedback validates the FeedbackConfig
func (c *Config) validateFeedback() []ValidationError {
	var errors []ValidationError

	if c.Feedback.Volume < 0 || c.Feedback.Volume > 1 {
		errors = append(errors, ValidationError{
			Field:   "feedback.volume",
			Value:   c.Feedback.Volume,
			Message: "must be between 0.0 and 1.0",
		})
	}
	if c.Feedback.DelayBetweenMessagesMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "feedback.delay_between_messages_ms",
			Value:   c.Feedback.DelayBetweenMessagesMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
