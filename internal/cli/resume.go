package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/resume"
	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/spf13/cobra"
)

// resumeCmd represents the resume command
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted transfer batch",
	Long: `Resume reloads a transfer state file's pending work and hands it
back to the coordinator, continuing an upload or download batch that was
interrupted. A state file failing its invariant checks is refused unless
--repair is given, per spec §4.6/§4.7.`,
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().String("state", "", "Path to a transfer state file (default: most recently modified batch)")
	resumeCmd.Flags().Bool("repair", false, "Mechanically repair a state file that fails validation before resuming")
}

func runResume(cmd *cobra.Command, args []string) error {
	statePathFlag, _ := cmd.Flags().GetString("state")
	repair, _ := cmd.Flags().GetBool("repair")

	if statePathFlag == "" {
		p, err := latestStatePath()
		if err != nil {
			return err
		}
		statePathFlag = p
	}

	loaded, err := state.Load(statePathFlag)
	if err != nil {
		return fmt.Errorf("failed to load transfer state: %w", err)
	}
	st := loaded.State

	report := state.Validate(st, loaded.ChecksumMismatch)
	if !report.IsValid {
		if !repair {
			return fmt.Errorf("transfer state is invalid (%v); rerun with --repair to fix it automatically", report.Issues)
		}
		if !report.CanRepair {
			return fmt.Errorf("transfer state has an unrepairable invalid direction: %v", report.Issues)
		}
		actions, err := state.Repair(st)
		if err != nil {
			return fmt.Errorf("repair failed: %w", err)
		}
		fmt.Printf("🔧 Repaired transfer state: %v\n", actions)
		if err := state.Save(statePathFlag, st); err != nil {
			fmt.Printf("⚠️  failed to persist repaired state: %v\n", err)
		}
	}

	if st.IsDone() {
		fmt.Printf("✅ Batch %s has no pending work\n", st.ID)
		return nil
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	transferOne := uploadOne(client)
	if st.Direction == state.Download {
		transferOne = downloadOne(client)
	}

	completed, failed, pending := st.Counts()
	fmt.Printf("▶️  Resuming batch %s (%s): %d completed, %d failed, %d pending\n",
		st.ID, st.Direction, completed, failed, pending)

	cfg := resolveTransferConfig()
	_, total := st.BytesProgress()
	cfg = attachProgress(cfg, total)

	driver := resume.NewDriver(transferOne)

	ctx := context.Background()
	start := time.Now()
	result := driver.Resume(ctx, st, cfg)
	duration := time.Since(start)

	if err := state.Save(statePathFlag, st); err != nil {
		fmt.Printf("⚠️  failed to save transfer state: %v\n", err)
	}

	printTransferSummary(result, 0, duration, statePathFlag)
	return nil
}
