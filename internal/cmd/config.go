package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/omnivoice/omni/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Omni configuration",
	Long: `View or modify Omni configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  omni config set feedback.silent_mode true
  omni config set batch.window_ms 3000
  omni config set cache.max_size_bytes 5242880

Valid keys:
  offline_mode                        - Start in offline mode (true/false)
  cache.max_size_bytes                - Cache size budget in bytes
  cache.cleanup_interval_seconds      - Starting cache cleanup interval
  cache.default_ttl_seconds           - Default TTL for cached results
  scheduler.max_timeout_growth_seconds - Cap on adaptive timeout growth
  batch.window_ms                     - Batch window duration
  batch.max_size                      - Items that flush a window early
  listening.listen_timeout_seconds    - No-speech timeout
  listening.max_silence_seconds       - Mid-speech silence limit
  listening.settle_delay_ms           - Post-wake-word settle delay
  listening.poll_interval_ms          - Wake word / recognizer poll cadence
  feedback.enabled                    - Spoken feedback on/off (true/false)
  feedback.volume                     - Synthesizer volume, 0.0 to 1.0
  feedback.silent_mode                - Only speak critical messages (true/false)
  feedback.delay_between_messages_ms  - Cooldown between spoken messages
  feedback.haptic_enabled             - Haptic pulses for urgent messages (true/false)
  logging.enabled                     - Debug logging on/off (true/false)
  logging.level                       - debug, info, warn, or error
  logging.dir                         - Log directory, empty for stderr`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/omni/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Printf("offline_mode: %v\n", cfg.OfflineMode)
	fmt.Println()

	fmt.Println("cache:")
	fmt.Printf("  max_size_bytes: %d\n", cfg.Cache.MaxSizeBytes)
	fmt.Printf("  cleanup_interval_seconds: %d\n", cfg.Cache.CleanupIntervalSeconds)
	fmt.Printf("  default_ttl_seconds: %d\n", cfg.Cache.DefaultTTLSeconds)

	fmt.Println("scheduler:")
	fmt.Printf("  max_timeout_growth_seconds: %d\n", cfg.Scheduler.MaxTimeoutGrowthSeconds)

	fmt.Println("batch:")
	fmt.Printf("  window_ms: %d\n", cfg.Batch.WindowMs)
	fmt.Printf("  max_size: %d\n", cfg.Batch.MaxSize)
	fmt.Printf("  types: %s\n", strings.Join(cfg.Batch.Types, ", "))

	fmt.Println("listening:")
	fmt.Printf("  listen_timeout_seconds: %d\n", cfg.Listening.ListenTimeoutSeconds)
	fmt.Printf("  max_silence_seconds: %d\n", cfg.Listening.MaxSilenceSeconds)
	fmt.Printf("  settle_delay_ms: %d\n", cfg.Listening.SettleDelayMs)
	fmt.Printf("  poll_interval_ms: %d\n", cfg.Listening.PollIntervalMs)

	fmt.Println("feedback:")
	fmt.Printf("  enabled: %v\n", cfg.Feedback.Enabled)
	fmt.Printf("  volume: %.1f\n", cfg.Feedback.Volume)
	fmt.Printf("  silent_mode: %v\n", cfg.Feedback.SilentMode)
	fmt.Printf("  delay_between_messages_ms: %d\n", cfg.Feedback.DelayBetweenMessagesMs)
	fmt.Printf("  haptic_enabled: %v\n", cfg.Feedback.HapticEnabled)

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  dir: %s\n", cfg.Logging.Dir)
	fmt.Printf("  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Printf("  max_backups: %d\n", cfg.Logging.MaxBackups)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"offline_mode":                         "bool",
		"cache.max_size_bytes":                 "int",
		"cache.cleanup_interval_seconds":       "int",
		"cache.default_ttl_seconds":            "int",
		"scheduler.max_timeout_growth_seconds": "int",
		"batch.window_ms":                      "int",
		"batch.max_size":                       "int",
		"listening.listen_timeout_seconds":     "int",
		"listening.max_silence_seconds":        "int",
		"listening.settle_delay_ms":            "int",
		"listening.poll_interval_ms":           "int",
		"feedback.enabled":                     "bool",
		"feedback.volume":                      "float",
		"feedback.silent_mode":                 "bool",
		"feedback.delay_between_messages_ms":   "int",
		"feedback.haptic_enabled":              "bool",
		"logging.enabled":                      "bool",
		"logging.level":                        "string",
		"logging.dir":                          "string",
		"logging.max_size_mb":                  "int",
		"logging.max_backups":                  "int",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'omni config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		if key == "logging.level" && !isValidLevel(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	case "float":
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected number", key)
		}
		if floatVal < 0 || floatVal > 1 {
			return fmt.Errorf("invalid value for %s: must be between 0.0 and 1.0", key)
		}
		typedValue = floatVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func isValidLevel(level string) bool {
	for _, valid := range config.ValidLogLevels() {
		if strings.EqualFold(level, valid) {
			return true
		}
	}
	return false
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'omni config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Omni Configuration

# Disable tasks that require network access. Hybrid tasks fall back to
# their cached or local paths.
offline_mode: false

# Result cache
cache:
  # Total size budget for cached results in bytes (default: 10MB)
  max_size_bytes: 10485760
  # Starting cleanup interval in seconds; self-tunes between 60 and 3600
  cleanup_interval_seconds: 300
  # TTL applied to cached task results
  default_ttl_seconds: 300

# Task scheduling
scheduler:
  # Cap on how much one timeout event can grow the adaptive timeout
  max_timeout_growth_seconds: 30

# Batching of same-type task submissions
batch:
  # How long a batch window stays open
  window_ms: 5000
  # Items that flush a window before the timer fires
  max_size: 10
  # Task types eligible for batching
  types:
    - weather
    - calendar

# Wake word and speech capture
listening:
  # Return to idle when no speech arrives
  listen_timeout_seconds: 5
  # Return to idle when an utterance stalls
  max_silence_seconds: 2
  # Pause between wake word and recognition start
  settle_delay_ms: 300
  # Polling cadence for the wake word detector and recognizer
  poll_interval_ms: 100

# Spoken feedback
feedback:
  enabled: true
  volume: 0.8
  # Only speak critical messages
  silent_mode: false
  # Cooldown between consecutive spoken messages
  delay_between_messages_ms: 500
  haptic_enabled: false

# Debug logging
logging:
  enabled: true
  # debug, info, warn, or error
  level: info
  # Log directory; empty logs to stderr
  dir: ""
  max_size_mb: 10
  max_backups: 3
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}
