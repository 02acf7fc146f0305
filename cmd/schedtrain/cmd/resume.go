package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/checkpoint"
)

var resumeSteps int

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume a checkpointed run",
	Long: `Resume a run from its latest checkpoint. The problem and optimizer are
rebuilt from the run configuration embedded in the checkpoint, then
parameters, optimizer state and schedule positions are restored and
training continues to the configured step count.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeSteps, "steps", 0, "New total step count (0 = the original count)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	id := args[0]

	store, err := checkpoint.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	cp, err := store.LoadCheckpoint(id)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	spec, err := runSpecFromMetadata(cp.Metadata)
	if err != nil {
		return err
	}
	if resumeSteps > 0 {
		spec.Loop.Steps = resumeSteps
	}
	log.WithFields(log.Fields{"run": id, "step": cp.Step}).Info("resuming run")

	ctx, cancel := interruptContext()
	defer cancel()
	return startRun(ctx, id, spec, true)
}
