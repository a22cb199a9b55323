package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize PulsePoint configuration",
	Long: `Initialize PulsePoint configuration in your home directory.

This command creates the necessary configuration files and directories
for PulsePoint to operate. It will create:
- ~/.pulsepoint/config.yaml - Main configuration file
- ~/.pulsepoint/logs/ - Directory for log files
- ~/.pulsepoint/state/ - Directory for transfer state records`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	pulsepointDir := filepath.Join(home, ".pulsepoint")

	if err := os.MkdirAll(pulsepointDir, 0700); err != nil {
		return fmt.Errorf("failed to create PulsePoint directory: %w", err)
	}

	dirs := []string{"logs", "state"}
	for _, dir := range dirs {
		dirPath := filepath.Join(pulsepointDir, dir)
		if err := os.MkdirAll(dirPath, 0700); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	configPath := filepath.Join(pulsepointDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", configPath)
	}

	defaultConfig := map[string]interface{}{
		"version":        "1.0",
		"region":         "US",
		"worker_count":   0,
		"duplicate_mode": "rename",
		"retry": map[string]interface{}{
			"max_attempts": 3,
			"base_delay":   "1s",
		},
		"timeout": map[string]interface{}{
			"base":   "60s",
			"per_mb": "2s",
			"max":    "600s",
		},
		"logging": map[string]interface{}{
			"level":       "info",
			"output_path": filepath.Join(pulsepointDir, "logs", "pulsepoint.log"),
			"max_size":    100,
			"max_backups": 5,
			"max_age":     30,
		},
	}

	configData, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(configPath, configData, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("✅ PulsePoint initialized successfully!\n")
	fmt.Printf("📁 Configuration directory: %s\n", pulsepointDir)
	fmt.Printf("📝 Configuration file: %s\n", configPath)
	fmt.Printf("\n")
	fmt.Printf("Next steps:\n")
	fmt.Printf("1. Run 'pulsepoint auth login' to authenticate with pCloud\n")
	fmt.Printf("2. Run 'pulsepoint upload /path/to/folder /remote/folder' to transfer files\n")

	return nil
}
