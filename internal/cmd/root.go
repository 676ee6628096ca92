package cmd

import (
	"strings"

	"github.com/omnivoice/omni/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "omni",
	Short: "Local voice assistant task core",
	Long: `Omni is a local voice assistant core: it listens for a wake word,
captures speech, and executes the resolved tasks (weather, calendar,
timers, device control) under adaptive scheduling with result caching
and prioritized spoken feedback.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/omni/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().Bool("offline", false, "start in offline mode")
	_ = viper.BindPFlag("offline_mode", rootCmd.PersistentFlags().Lookup("offline"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/omni")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OMNI")
	// Replace dots with underscores for nested keys in env vars
	// e.g., OMNI_FEEDBACK_SILENT_MODE for feedback.silent_mode
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
