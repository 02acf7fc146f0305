package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/checkpoint"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage run checkpoints",
	Long: `Manage run checkpoints, including listing stored runs and cleaning old
checkpoints by age or count.`,
}

var listCheckpointsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored checkpoints",
	RunE:  runListCheckpoints,
}

var cleanCheckpointsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old checkpoints",
	Long: `Delete checkpoints based on a retention policy: keep only the most
recent N runs, delete runs older than N days, or both.`,
	RunE: runCleanCheckpoints,
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)
	checkpointsCmd.AddCommand(listCheckpointsCmd)
	checkpointsCmd.AddCommand(cleanCheckpointsCmd)

	cleanCheckpointsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the most recent N runs (0 = keep all)")
	cleanCheckpointsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanCheckpointsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListCheckpoints(cmd *cobra.Command, args []string) error {
	store, err := checkpoint.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	infos, err := store.ListCheckpoints()
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No checkpoints found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tSTEP\tEPOCH\tLOSS\tSIZE")
	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := dirSize(filepath.Join(dataDir, "runs", info.RunID)); err == nil {
			sizeStr = formatBytes(size)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.6g\t%s\n",
			info.RunID,
			info.CreatedAt.Format("2006-01-02 15:04:05"),
			info.Step,
			info.Epoch,
			info.Loss,
			sizeStr,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal checkpoints: %d\n", len(infos))
	return nil
}

func runCleanCheckpoints(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	store, err := checkpoint.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	infos, err := store.ListCheckpoints()
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No checkpoints to clean.")
		return nil
	}

	toDelete := selectCheckpointsForDeletion(infos, keepLast, olderThanDays)
	if len(toDelete) == 0 {
		fmt.Println("No checkpoints match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d checkpoint(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (step %d, %s)\n", info.RunID, info.Step, info.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := store.DeleteCheckpoint(info.RunID); err != nil {
			log.WithFields(log.Fields{"run": info.RunID}).WithError(err).Error("failed to delete checkpoint")
			failed++
		} else {
			log.WithField("run", info.RunID).Info("deleted checkpoint")
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d checkpoint(s), %d failed.\n", deleted, failed)
	return nil
}

// selectCheckpointsForDeletion applies the retention policy: runs older
// than the age limit go, and beyond that the oldest runs go until only
// keepLast remain.
func selectCheckpointsForDeletion(infos []checkpoint.Info, keepLast, olderThanDays int) []checkpoint.Info {
	var toDelete []checkpoint.Info
	marked := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.CreatedAt.Before(cutoff) {
				toDelete = append(toDelete, info)
				marked[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]checkpoint.Info, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		})
		for _, info := range sorted[:len(sorted)-keepLast] {
			if !marked[info.RunID] {
				toDelete = append(toDelete, info)
				marked[info.RunID] = true
			}
		}
	}

	return toDelete
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
