package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omnivoice/omni/internal/config"
	"github.com/omnivoice/omni/internal/console"
	"github.com/omnivoice/omni/internal/logging"
	"github.com/omnivoice/omni/internal/processor"
	"github.com/omnivoice/omni/internal/task"
	"github.com/spf13/cobra"
)

// stopGrace bounds shutdown: batch draining and the farewell message
// must fit in it.
const stopGrace = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the assistant with console speech",
	Long: `Run the assistant loop using the terminal in place of audio.

Type the wake phrase ("hey omni") to wake the assistant, then type your
request; spoken feedback is printed. The wake phrase and request can
share a line: "hey omni, weather in london". Press Ctrl+C to stop.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		defer logger.Close()
	}

	io := console.New(os.Stdin, os.Stdout, console.Options{
		Render: func(text string) string {
			return speechStyle.Render("omni> ") + text
		},
	})

	// The executor and batch handler maps are filled after construction
	// so their closures can reach the processor (the timer executor
	// speaks through its feedback queue).
	executors := make(map[task.Type]task.Runner)
	batchHandlers := make(map[task.Type]task.BatchHandler)

	proc, err := processor.New(processor.Options{
		Config:        cfg,
		Recognizer:    io,
		Synthesizer:   io,
		Detector:      io,
		Executors:     executors,
		BatchHandlers: batchHandlers,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	registerExecutors(executors, batchHandlers, proc)

	io.Start()
	if err := proc.Start(); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Omni"))
	fmt.Println(promptStyle.Render(`Say "hey omni" to start. Ctrl+C to quit.`))
	if proc.Offline() {
		fmt.Println(warnStyle.Render("Running in offline mode."))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println()
	fmt.Println(promptStyle.Render("Shutting down..."))

	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	proc.Stop(ctx)
	return nil
}
