package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/duplicate"
	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"github.com/pulsepoint/pulsepoint/internal/engine/plan"
	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/pulsepoint/pulsepoint/internal/engine/stream"
	"github.com/pulsepoint/pulsepoint/internal/engine/transfer"
	"github.com/pulsepoint/pulsepoint/pkg/progress"
	"github.com/pulsepoint/pulsepoint/pkg/utils"
	"github.com/spf13/cobra"
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> <remote-folder>",
	Short: "Upload a local file or folder to pCloud",
	Long: `Upload mirrors a local file or directory tree into a remote pCloud
folder. Directory uploads are planned up front, collisions are resolved
per the configured duplicate policy, and a resumable transfer state is
written so an interrupted batch can be continued with 'pulsepoint resume'.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().Bool("no-state", false, "Do not persist a resumable transfer state for this batch")
}

func runUpload(cmd *cobra.Command, args []string) error {
	localPath, remoteBase := args[0], args[1]
	noState, _ := cmd.Flags().GetBool("no-state")

	client, err := newClient()
	if err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if !info.IsDir() {
		return uploadSingleFile(client, localPath, remoteBase)
	}

	fmt.Printf("📤 Uploading %s -> %s\n", localPath, remoteBase)

	lp := plan.PlanLocalUpload(localPath, remoteBase)
	for _, pe := range lp.Errors {
		fmt.Printf("⚠️  skipped %s: %v\n", pe.Path, pe.Err)
	}

	fmt.Printf("📁 Ensuring %d remote folder(s)...\n", len(lp.Folders))
	ctx := context.Background()
	foldersResult := plan.EnsureFolders(lp.Folders, func(folder string) error {
		return client.CreateFolder(ctx, folder)
	})
	for _, f := range foldersResult.SortedFailedFolders() {
		fmt.Printf("❌ failed to create folder %s: %v\n", f, foldersResult.Failed[f])
	}

	cache := duplicate.NewListingCache(client)
	resolver := duplicate.NewResolver(resolveDuplicateMode(), cache, client, logger)

	var tasks []transfer.Task
	var totalBytes int64
	skipped := 0
	for _, t := range lp.Tasks {
		fi, err := os.Stat(t.LocalFile)
		if err != nil {
			fmt.Printf("⚠️  skipped %s: %v\n", t.LocalFile, err)
			continue
		}
		decision, err := resolver.Resolve(ctx, t.RemoteFolder, fi.Name(), fi.Size())
		if err != nil {
			fmt.Printf("⚠️  could not resolve duplicate policy for %s: %v\n", t.LocalFile, err)
			continue
		}
		if decision == duplicate.SkipExisting {
			skipped++
			continue
		}
		tasks = append(tasks, transfer.Task{Source: t.LocalFile, Destination: t.RemoteFolder, Size: fi.Size()})
		totalBytes += fi.Size()
	}

	if len(tasks) == 0 {
		fmt.Printf("✅ Nothing to upload (%d already present)\n", skipped)
		return nil
	}

	st := state.New(state.Upload, toPendingTasks(tasks), totalBytes)

	batchPath := ""
	if !noState {
		batchPath = statePath(st.ID)
		if err := state.Save(batchPath, st); err != nil {
			fmt.Printf("⚠️  failed to write transfer state: %v\n", err)
		}
	}

	cfg := resolveTransferConfig()
	cfg.State = st
	cfg = attachProgress(cfg, totalBytes)

	startTime := time.Now()
	result := transfer.Run(ctx, tasks, uploadOne(client), cfg)
	duration := time.Since(startTime)

	if !noState {
		if err := state.Save(batchPath, st); err != nil {
			fmt.Printf("⚠️  failed to save final transfer state: %v\n", err)
		}
	}

	printTransferSummary(result, skipped, duration, batchPath)
	return nil
}

func uploadSingleFile(client *pcloud.Client, localPath, remoteFolder string) error {
	fi, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	fmt.Printf("📤 Uploading %s -> %s (%.2f MB)\n", localPath, remoteFolder, float64(fi.Size())/(1<<20))

	ctx := context.Background()
	transferred, err := uploadOne(client)(ctx, transfer.Task{Source: localPath, Destination: remoteFolder, Size: fi.Size()}, nil)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Printf("✅ Uploaded %d bytes\n", transferred)
	return nil
}

// uploadOne builds the transfer.TransferFunc that drives a single upload
// attempt, dispatching to the simple or chunked pCloud upload path by file
// size, per spec §4.2/§10.2.
func uploadOne(client *pcloud.Client) transfer.TransferFunc {
	return func(ctx context.Context, task transfer.Task, onChunk func(n int64)) (int64, error) {
		name := filepath.Base(task.Source)
		if task.Size >= stream.ChunkedUploadThreshold {
			return chunkedUpload(ctx, client, task.Source, task.Destination, name, onChunk)
		}

		f, size, err := stream.OpenUploadSource(task.Source)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		counting := stream.NewCountingReader(f, onChunk)
		if _, err := client.UploadFile(ctx, task.Destination, name, counting, size); err != nil {
			return counting.TotalRead(), err
		}
		return counting.TotalRead(), nil
	}
}

// chunkedUpload drives the begin/write/finish trio over localPath's chunks,
// used once a file crosses stream.ChunkedUploadThreshold.
func chunkedUpload(ctx context.Context, client *pcloud.Client, localPath, remoteFolder, name string, onChunk func(n int64)) (int64, error) {
	it, err := stream.NewChunkIterator(localPath, stream.DefaultChunkSize)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	first, _, err := it.Next()
	if err != nil {
		if err == io.EOF {
			first = []byte{}
		} else {
			return 0, err
		}
	}

	uploadID, err := client.BeginChunkedUpload(ctx, first)
	if err != nil {
		return 0, err
	}
	var total int64
	if len(first) > 0 {
		total = int64(len(first))
		if onChunk != nil {
			onChunk(total)
		}
	}

	for {
		chunk, offset, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		if err := client.WriteChunk(ctx, uploadID, offset, chunk); err != nil {
			return total, err
		}
		total += int64(len(chunk))
		if onChunk != nil {
			onChunk(int64(len(chunk)))
		}
	}

	if _, err := client.FinishChunkedUpload(ctx, uploadID, remoteFolder, name); err != nil {
		return total, err
	}
	return total, nil
}

func toPendingTasks(tasks []transfer.Task) []state.PendingTask {
	out := make([]state.PendingTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, state.PendingTask{Source: t.Source, Destination: t.Destination})
	}
	return out
}

// attachProgress wires a throttled console reporter into cfg, reusing the
// batch's resolved Logger and leaving every other field untouched.
func attachProgress(cfg transfer.Config, totalBytes int64) transfer.Config {
	agg := progress.NewAggregator(func(s progress.Summary) {
		fmt.Printf("\r⏳ %d active, %d done, %d failed — %s / %s (%.1f KB/s)   ",
			s.ActiveFiles, s.CompletedFiles, s.FailedFiles,
			humanBytes(s.TransferredBytes), humanBytes(uint64(totalBytes)), s.BytesPerSecond/1024)
	})
	byteCounter := new(int64)
	cfg.ByteCounter = byteCounter
	cfg.Progress = func(fileName string, bytesDone, bytesTotal uint64) {
		fileState := progress.StateActive
		if bytesTotal > 0 && bytesDone >= bytesTotal {
			fileState = progress.StateCompleted
		}
		agg.Update(progress.Event{FileName: fileName, BytesDone: bytesDone, BytesTotal: bytesTotal, State: fileState})
	}
	return cfg
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printTransferSummary(result transfer.Result, skipped int, duration time.Duration, batchPath string) {
	fmt.Printf("\n")
	if len(result.Failed) == 0 {
		fmt.Printf("✅ Transfer complete\n")
	} else {
		fmt.Printf("⚠️  Transfer completed with errors\n")
	}
	fmt.Printf("📊 Summary:\n")
	fmt.Printf("   ✅ Succeeded: %d\n", len(result.Succeeded))
	fmt.Printf("   ❌ Failed: %d\n", len(result.Failed))
	fmt.Printf("   ⏭️  Skipped (already present): %d\n", skipped)
	fmt.Printf("   ⏱️  Time: %s\n", utils.FormatDuration(duration.Round(time.Millisecond)))
	if batchPath != "" {
		fmt.Printf("   💾 State: %s\n", batchPath)
	}
	if len(result.Failed) > 0 {
		fmt.Printf("   Failed files are recorded in the state file; 'pulsepoint resume' re-runs only pending files, not failed ones\n")
	}
}
