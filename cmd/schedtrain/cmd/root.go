package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	dataDir  string
)

var rootCmd = &cobra.Command{
	Use:   "schedtrain",
	Short: "Training runs with per-step scheduled hyperparameters",
	Long: `schedtrain runs gradient descent demos whose hyperparameters follow
linear warmup/decay or cyclical schedules. Runs write checkpoints to a
data directory and can be resumed after an interruption.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			level = log.InfoLevel
		}
		log.SetLevel(level)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.SetOutput(os.Stdout)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoint storage")
}

// interruptContext returns a context that is cancelled on SIGINT or
// SIGTERM, so an interrupted run saves a checkpoint before exiting.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-stopSignal:
			cancel()
		}
	}()
	return ctx, cancel
}
