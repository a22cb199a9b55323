package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/syncer"
	"github.com/pulsepoint/pulsepoint/internal/engine/watch"
	"github.com/pulsepoint/pulsepoint/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync <local-path> <remote-path>",
	Short: "Synchronise a local folder with a remote pCloud folder",
	Long: `Sync compares a local directory tree against a remote pCloud folder
and reconciles the difference according to --direction: upload-only,
download-only, or bidirectional (where mismatches are left untouched
rather than guessed at). With --watch, sync stays running and triggers a
new pass after each debounced burst of local filesystem activity.`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("direction", "bidirectional", "Sync direction: upload, download, or bidirectional")
	syncCmd.Flags().String("compare", "size", "Comparison mode: size or hash")
	syncCmd.Flags().Bool("watch", false, "Keep running and re-sync on local filesystem changes")
	syncCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Debounce window for --watch")
	syncCmd.Flags().StringSlice("ignore", nil, "Glob pattern(s) to exclude from --watch, gitignore-style (repeatable)")
}

func runSync(cmd *cobra.Command, args []string) error {
	localPath, remotePath := args[0], args[1]
	direction, _ := cmd.Flags().GetString("direction")
	compare, _ := cmd.Flags().GetString("compare")
	watchMode, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	ignorePatterns, _ := cmd.Flags().GetStringSlice("ignore")

	client, err := newClient()
	if err != nil {
		return err
	}

	dir, err := parseDirection(direction)
	if err != nil {
		return err
	}
	mode, err := parseCompareMode(compare)
	if err != nil {
		return err
	}

	engine := syncer.New(client, mode, logger)

	runOnce := func(ctx context.Context) error {
		fmt.Printf("🔄 Syncing %s <-> %s (%s, compare by %s)\n", localPath, remotePath, dir, mode)
		start := time.Now()
		result, err := engine.Sync(ctx, localPath, remotePath, dir)
		if err != nil {
			fmt.Printf("❌ sync failed: %v\n", err)
			return err
		}
		fmt.Printf("✅ Sync pass complete in %s\n", utils.FormatDuration(time.Since(start).Round(time.Millisecond)))
		fmt.Printf("   📤 Uploaded: %d   📥 Downloaded: %d   ⏭️  Skipped: %d   ❌ Failed: %d\n",
			result.Uploaded, result.Downloaded, result.Skipped, result.Failed)
		return nil
	}

	if !watchMode {
		return runOnce(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runOnce(ctx); err != nil {
		logger.Warn("initial sync pass failed", zap.Error(err))
	}

	fmt.Printf("👁️  Watching %s for changes (Ctrl+C to stop)\n", localPath)
	w, err := watch.New(watch.Config{
		Root:     localPath,
		Debounce: debounce,
		Sync:     runOnce,
		Logger:   logger,
		Ignore:   watch.NewIgnoreMatcher(ignorePatterns),
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	err = w.Run(ctx)
	if err != nil && err != context.Canceled {
		return err
	}
	fmt.Printf("\n👋 Stopped watching\n")
	return nil
}

func parseDirection(s string) (syncer.Direction, error) {
	switch syncer.Direction(s) {
	case syncer.Upload, syncer.Download, syncer.Bidirectional:
		return syncer.Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction %q (want upload, download, or bidirectional)", s)
	}
}

func parseCompareMode(s string) (syncer.CompareMode, error) {
	switch syncer.CompareMode(s) {
	case syncer.SizeEqual, syncer.HashEqual:
		return syncer.CompareMode(s), nil
	default:
		return "", fmt.Errorf("unknown compare mode %q (want size or hash)", s)
	}
}
