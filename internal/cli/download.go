package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"github.com/pulsepoint/pulsepoint/internal/engine/plan"
	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/pulsepoint/pulsepoint/internal/engine/stream"
	"github.com/pulsepoint/pulsepoint/internal/engine/transfer"
	"github.com/spf13/cobra"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <remote-path> <local-folder>",
	Short: "Download a remote file or folder from pCloud",
	Long: `Download mirrors a remote pCloud file or folder into a local
directory. Folder downloads are planned by descending the remote tree up
front, and a resumable transfer state is written so an interrupted batch
can be continued with 'pulsepoint resume'.`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Bool("no-state", false, "Do not persist a resumable transfer state for this batch")
}

func runDownload(cmd *cobra.Command, args []string) error {
	remotePath, localBase := args[0], args[1]
	noState, _ := cmd.Flags().GetBool("no-state")

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	items, err := client.ListFolder(ctx, path.Dir(remotePath))
	if err == nil {
		for _, it := range items {
			if it.Name == path.Base(remotePath) && !it.IsFolder {
				return downloadSingleFile(client, remotePath, localBase, it.Size)
			}
		}
	}

	fmt.Printf("📥 Downloading %s -> %s\n", remotePath, localBase)

	rp := plan.PlanRemoteDownload(ctx, client, remotePath, localBase)
	for _, pe := range rp.Errors {
		fmt.Printf("⚠️  could not list %s: %v\n", pe.Path, pe.Err)
	}

	fmt.Printf("📁 Ensuring %d local folder(s)...\n", len(rp.Folders))
	for _, folder := range rp.Folders {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			fmt.Printf("❌ failed to create folder %s: %v\n", folder, err)
		}
	}

	var tasks []transfer.Task
	var totalBytes int64
	for _, t := range rp.Tasks {
		size := remoteFileSize(ctx, client, t.RemoteFile)
		tasks = append(tasks, transfer.Task{Source: t.RemoteFile, Destination: t.LocalFolder, Size: size})
		totalBytes += size
	}

	if len(tasks) == 0 {
		fmt.Printf("✅ Nothing to download\n")
		return nil
	}

	st := state.New(state.Download, toPendingTasks(tasks), totalBytes)

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
	result := transfer.Run(ctx, tasks, downloadOne(client), cfg)
	duration := time.Since(startTime)

	if !noState {
		if err := state.Save(batchPath, st); err != nil {
			fmt.Printf("⚠️  failed to save final transfer state: %v\n", err)
		}
	}

	printTransferSummary(result, 0, duration, batchPath)
	return nil
}

func downloadSingleFile(client *pcloud.Client, remotePath, localFolder string, size int64) error {
	fmt.Printf("📥 Downloading %s -> %s (%.2f MB)\n", remotePath, localFolder, float64(size)/(1<<20))

	ctx := context.Background()
	transferred, err := downloadOne(client)(ctx, transfer.Task{Source: remotePath, Destination: localFolder, Size: size}, nil)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	fmt.Printf("✅ Downloaded %d bytes\n", transferred)
	return nil
}

// downloadOne builds the transfer.TransferFunc that drives a single
// download attempt, streaming the remote body straight to a local
// temporary file, per spec §4.2.
func downloadOne(client *pcloud.Client) transfer.TransferFunc {
	return func(ctx context.Context, task transfer.Task, onChunk func(n int64)) (int64, error) {
		body, size, err := client.OpenDownload(ctx, task.Source)
		if err != nil {
			return 0, err
		}
		defer body.Close()

		if size <= 0 {
			size = task.Size
		}
		if size <= 0 {
			size = -1
		}
		counting := stream.NewCountingReader(body, onChunk)
		if err := stream.DownloadSink(task.Destination, path.Base(task.Source), counting, size, nil); err != nil {
			return counting.TotalRead(), err
		}
		return counting.TotalRead(), nil
	}
}

func remoteFileSize(ctx context.Context, client *pcloud.Client, remotePath string) int64 {
	items, err := client.ListFolder(ctx, path.Dir(remotePath))
	if err != nil {
		return 0
	}
	name := path.Base(remotePath)
	for _, it := range items {
		if it.Name == name && !it.IsFolder {
			return it.Size
		}
	}
	return 0
}
