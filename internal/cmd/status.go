package cmd

import (
	"fmt"
	"strings"

	"github.com/omnivoice/omni/internal/config"
	"github.com/omnivoice/omni/internal/task"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and scheduling profile",
	Long: `Display the effective configuration after defaults, config file, and
environment overrides, plus the per-priority scheduling table.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Println(titleStyle.Render("Omni configuration"))
	fmt.Println()

	mode := okStyle.Render("online")
	if cfg.OfflineMode {
		mode = warnStyle.Render("offline")
	}
	printField("Mode", mode)
	printField("Cache size", fmt.Sprintf("%d bytes", cfg.Cache.MaxSizeBytes))
	printField("Cache cleanup", cfg.Cache.CleanupInterval().String())
	printField("Cache TTL", cfg.Cache.DefaultTTL().String())
	printField("Batch window", cfg.Batch.Window().String())
	printField("Batch max size", fmt.Sprintf("%d", cfg.Batch.MaxSize))
	printField("Batch types", strings.Join(cfg.Batch.Types, ", "))
	printField("Listen timeout", cfg.Listening.ListenTimeout().String())
	printField("Max silence", cfg.Listening.MaxSilence().String())
	printField("Feedback", onOff(cfg.Feedback.Enabled))
	printField("Silent mode", onOff(cfg.Feedback.SilentMode))
	printField("Feedback cooldown", cfg.Feedback.DelayBetweenMessages().String())
	printField("Logging", fmt.Sprintf("%s (%s)", onOff(cfg.Logging.Enabled), cfg.Logging.Level))

	fmt.Println()
	fmt.Println(titleStyle.Render("Scheduling profile"))
	fmt.Println()
	fmt.Printf("  %-10s %-8s %-10s %-10s %s\n",
		labelStyle.Render("priority"), labelStyle.Render("retries"),
		labelStyle.Render("delay"), labelStyle.Render("timeout"),
		labelStyle.Render("task types"))
	for _, pri := range task.Priorities() {
		profile := pri.Profile()
		fmt.Printf("  %-10s %-8d %-10s %-10s %s\n",
			pri, profile.MaxRetries, profile.BaseDelay, profile.BaseTimeout,
			strings.Join(typesFor(pri), ", "))
	}

	return nil
}

// typesFor lists the task types scheduled at a priority.
func typesFor(pri task.Priority) []string {
	var names []string
	for _, t := range task.Types() {
		if task.PriorityFor(t) == pri {
			names = append(names, t.String())
		}
	}
	return names
}

func printField(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", label)), valueStyle.Render(value))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
