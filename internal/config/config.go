package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Omni configuration
type Config struct {
	// OfflineMode disables all tasks that require network connectivity.
	// Hybrid tasks degrade to their cached/offline paths.
	OfflineMode bool `mapstructure:"offline_mode"`

	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Listening ListeningConfig `mapstructure:"listening"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CacheConfig controls the adaptive result cache
type CacheConfig struct {
	// MaxSizeBytes is the total size budget for cached values (default: 10MB)
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
	// CleanupIntervalSeconds is the starting cleanup interval. The cache tunes
	// it at runtime within [60s, 3600s] based on size pressure and eviction rate.
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds"`
	// DefaultTTLSeconds is the TTL applied to entries cached by the dispatch
	// path when the caller does not specify one (0 = no expiry)
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds"`
}

// SchedulerConfig controls task execution behavior
type SchedulerConfig struct {
	// MaxTimeoutGrowthSeconds caps how far a single timeout event can push the
	// adaptive timeout above its current value (default: 30)
	MaxTimeoutGrowthSeconds int `mapstructure:"max_timeout_growth_seconds"`
}

// BatchConfig controls batching of same-type task submissions
type BatchConfig struct {
	// WindowMs is how long a batch window stays open before flushing (default: 5000)
	WindowMs int `mapstructure:"window_ms"`
	// MaxSize flushes the window immediately once this many items collect (default: 10)
	MaxSize int `mapstructure:"max_size"`
	// Types lists the task types eligible for batching (default: weather, calendar)
	Types []string `mapstructure:"types"`
}

// ListeningConfig controls the wake word / speech capture cycle
type ListeningConfig struct {
	// ListenTimeoutSeconds returns to idle if no speech arrives (default: 5)
	ListenTimeoutSeconds int `mapstructure:"listen_timeout_seconds"`
	// MaxSilenceSeconds returns to idle if partial speech stalls (default: 2)
	MaxSilenceSeconds int `mapstructure:"max_silence_seconds"`
	// SettleDelayMs is the pause between wake word detection and recognition
	// start, letting audio hardware switch modes (default: 300)
	SettleDelayMs int `mapstructure:"settle_delay_ms"`
	// PollIntervalMs is the wake-word/recognizer polling cadence (default: 100)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
}

// FeedbackConfig controls spoken feedback
type FeedbackConfig struct {
	// Enabled turns all spoken feedback on or off (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Volume is the synthesizer volume in [0.0, 1.0] (default: 0.8)
	Volume float64 `mapstructure:"volume"`
	// SilentMode drops every message except Critical ones (default: false)
	SilentMode bool `mapstructure:"silent_mode"`
	// DelayBetweenMessagesMs is the cooldown between consecutive spoken
	// messages; Critical messages ignore it (default: 500)
	DelayBetweenMessagesMs int `mapstructure:"delay_between_messages_ms"`
	// HapticEnabled fires the haptic hook for Critical/High messages (default: false)
	HapticEnabled bool `mapstructure:"haptic_enabled"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for log files; empty logs to stderr (default: "")
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		OfflineMode: false,
		Cache: CacheConfig{
			MaxSizeBytes:           10 * 1024 * 1024, // 10MB
			CleanupIntervalSeconds: 300,              // 5 minutes; self-tunes within [60s, 3600s]
			DefaultTTLSeconds:      300,
		},
		Scheduler: SchedulerConfig{
			MaxTimeoutGrowthSeconds: 30,
		},
		Batch: BatchConfig{
			WindowMs: 5000,
			MaxSize:  10,
			Types:    []string{"weather", "calendar"},
		},
		Listening: ListeningConfig{
			ListenTimeoutSeconds: 5,
			MaxSilenceSeconds:    2,
			SettleDelayMs:        300,
			PollIntervalMs:       100,
		},
		Feedback: FeedbackConfig{
			Enabled:                true,
			Volume:                 0.8,
			SilentMode:             false,
			DelayBetweenMessagesMs: 500,
			HapticEnabled:          false,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "", // Empty means stderr
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// CleanupInterval returns the cache cleanup interval as a time.Duration
func (c *CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// DefaultTTL returns the default cache TTL as a time.Duration (0 means no expiry)
func (c *CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// MaxTimeoutGrowth returns the adaptive timeout growth cap as a time.Duration
func (c *SchedulerConfig) MaxTimeoutGrowth() time.Duration {
	return time.Duration(c.MaxTimeoutGrowthSeconds) * time.Second
}

// Window returns the batch window duration as a time.Duration
func (c *BatchConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// ListenTimeout returns the no-speech timeout as a time.Duration
func (c *ListeningConfig) ListenTimeout() time.Duration {
	return time.Duration(c.ListenTimeoutSeconds) * time.Second
}

// MaxSilence returns the mid-speech silence limit as a time.Duration
func (c *ListeningConfig) MaxSilence() time.Duration {
	return time.Duration(c.MaxSilenceSeconds) * time.Second
}

// SettleDelay returns the post-wake-word settle delay as a time.Duration
func (c *ListeningConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// PollInterval returns the polling cadence as a time.Duration
func (c *ListeningConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DelayBetweenMessages returns the feedback cooldown as a time.Duration
func (c *FeedbackConfig) DelayBetweenMessages() time.Duration {
	return time.Duration(c.DelayBetweenMessagesMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("offline_mode", defaults.OfflineMode)

	// Cache defaults
	viper.SetDefault("cache.max_size_bytes", defaults.Cache.MaxSizeBytes)
	viper.SetDefault("cache.cleanup_interval_seconds", defaults.Cache.CleanupIntervalSeconds)
	viper.SetDefault("cache.default_ttl_seconds", defaults.Cache.DefaultTTLSeconds)

	// Scheduler defaults
	viper.SetDefault("scheduler.max_timeout_growth_seconds", defaults.Scheduler.MaxTimeoutGrowthSeconds)

	// Batch defaults
	viper.SetDefault("batch.window_ms", defaults.Batch.WindowMs)
	viper.SetDefault("batch.max_size", defaults.Batch.MaxSize)
	viper.SetDefault("batch.types", defaults.Batch.Types)

	// Listening defaults
	viper.SetDefault("listening.listen_timeout_seconds", defaults.Listening.ListenTimeoutSeconds)
	viper.SetDefault("listening.max_silence_seconds", defaults.Listening.MaxSilenceSeconds)
	viper.SetDefault("listening.settle_delay_ms", defaults.Listening.SettleDelayMs)
	viper.SetDefault("listening.poll_interval_ms", defaults.Listening.PollIntervalMs)

	// Feedback defaults
	viper.SetDefault("feedback.enabled", defaults.Feedback.Enabled)
	viper.SetDefault("feedback.volume", defaults.Feedback.Volume)
	viper.SetDefault("feedback.silent_mode", defaults.Feedback.SilentMode)
	viper.SetDefault("feedback.delay_between_messages_ms", defaults.Feedback.DelayBetweenMessagesMs)
	viper.SetDefault("feedback.haptic_enabled", defaults.Feedback.HapticEnabled)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "omni")
	}
	// Fall back to ~/.config/omni
	home, err := os.UserHomeDir()
	if err != nil {
		return ".omni"
	}
	return filepath.Join(home, ".config", "omni")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidBatchTypes returns the task type names eligible for batching
func ValidBatchTypes() []string {
	return []string{"weather", "calendar", "timer", "device_control"}
}

// IsValidBatchType checks if the given task type name can be batched
func IsValidBatchType(taskType string) bool {
	for _, valid := range ValidBatchTypes() {
		if strings.EqualFold(taskType, valid) {
			return true
		}
	}
	return false
}
