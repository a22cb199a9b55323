package cli

import (
	"encoding/json"
	"fmt"

	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a transfer batch",
	Long: `Display the progress recorded in a transfer-state file: how many
files completed, failed, or are still pending, and whether the record
passes its own integrity checks.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("state", "", "Path to a transfer state file (default: most recently modified batch)")
	statusCmd.Flags().Bool("json", false, "Output status as JSON")
}

type statusOutput struct {
	ID               string   `json:"id"`
	Direction        string   `json:"direction"`
	TotalFiles       int      `json:"total_files"`
	Completed        int      `json:"completed"`
	Failed           int      `json:"failed"`
	Pending          int      `json:"pending"`
	TotalBytes       int64    `json:"total_bytes"`
	TransferredBytes int64    `json:"transferred_bytes"`
	Valid            bool     `json:"valid"`
	CanRepair        bool     `json:"can_repair"`
	Issues           []string `json:"issues,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("state")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if path == "" {
		p, err := latestStatePath()
		if err != nil {
			return err
		}
		path = p
	}

	result, err := state.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load transfer state: %w", err)
	}

	report := state.Validate(result.State, result.ChecksumMismatch)
	completed, failed, pending := result.State.Counts()

	out := statusOutput{
		ID:               result.State.ID,
		Direction:        string(result.State.Direction),
		TotalFiles:       result.State.TotalFiles,
		Completed:        completed,
		Failed:           failed,
		Pending:          pending,
		TotalBytes:       result.State.TotalBytes,
		TransferredBytes: result.State.TransferredBytes,
		Valid:            report.IsValid,
		CanRepair:        report.CanRepair,
		Issues:           report.Issues,
	}

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("🎯 Transfer Status: %s\n", out.ID)
	fmt.Printf("═══════════════════════════════════════\n\n")
	fmt.Printf("📁 State file: %s\n", path)
	fmt.Printf("🔀 Direction: %s\n\n", out.Direction)

	fmt.Printf("📊 Progress\n")
	fmt.Printf("───────────\n")
	fmt.Printf("  Total files: %d\n", out.TotalFiles)
	fmt.Printf("  ✅ Completed: %d\n", out.Completed)
	fmt.Printf("  ❌ Failed: %d\n", out.Failed)
	fmt.Printf("  ⏳ Pending: %d\n", out.Pending)
	fmt.Printf("  📦 Transferred: %d / %d bytes\n\n", out.TransferredBytes, out.TotalBytes)

	if out.Valid {
		fmt.Printf("✅ Record is internally consistent\n")
	} else {
		fmt.Printf("⚠️  Record has issues: %v\n", out.Issues)
		if out.CanRepair {
			fmt.Printf("   Run 'pulsepoint resume --repair' to fix it automatically\n")
		} else {
			fmt.Printf("   This record cannot be repaired automatically\n")
		}
	}

	return nil
}
