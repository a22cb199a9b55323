package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/duplicate"
	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"github.com/pulsepoint/pulsepoint/internal/engine/sizing"
	"github.com/pulsepoint/pulsepoint/internal/engine/transfer"
	"github.com/pulsepoint/pulsepoint/pkg/utils"
	"github.com/spf13/viper"
)

// tokenPath is where the pCloud auth token persists across invocations,
// separate from config.yaml since it is a credential rather than a setting.
func tokenPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pulsepoint", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenPath()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), []byte(token), 0o600)
}

func loadToken() (string, error) {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func clearToken() error {
	err := os.Remove(tokenPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// newClient builds a pCloud client from the resolved config and installs
// the saved auth token, per spec §10.3. Callers that need a fresh login
// token instead (the auth command) build their own unauthenticated client.
func newClient() (*pcloud.Client, error) {
	region := pcloud.Region(viper.GetString("region"))
	workers := resolveWorkerCount()

	c := pcloud.NewClient(pcloud.ClientConfig{
		Region:      region,
		WorkerCount: workers,
		Logger:      logger,
	})

	token, err := loadToken()
	if err != nil {
		return nil, fmt.Errorf("not authenticated: run 'pulsepoint auth login' first: %w", err)
	}
	c.SetToken(token)
	return c, nil
}

// resolveWorkerCount honors an explicit worker_count setting, falling back
// to sizing.DefaultWorkerCount for 0 or unset, per spec §4.9.
func resolveWorkerCount() int {
	if w := viper.GetInt("worker_count"); w > 0 {
		return sizing.Clamp(w)
	}
	return sizing.DefaultWorkerCount(availableMemoryGiB())
}

// availableMemoryGiB is a coarse stand-in for the host's available memory:
// Go's standard library has no portable query for it, so pulsepoint assumes
// a conservative 4 GiB absent a way to measure it directly.
func availableMemoryGiB() float64 {
	return 4.0
}

func resolveTimeouts() sizing.TimeoutConfig {
	cfg := sizing.DefaultTimeoutConfig()
	if v := parseDurationSetting("timeout.base"); v > 0 {
		cfg.Base = v
	}
	if v := parseDurationSetting("timeout.per_mb"); v > 0 {
		cfg.PerMB = v
	}
	if v := parseDurationSetting("timeout.max"); v > 0 {
		cfg.Max = v
	}
	return cfg
}

// parseDurationSetting reads key as a duration, accepting utils.ParseDuration's
// "d" (days) unit for a large-batch timeout.max setting that's more natural to
// express in days than hours.
func parseDurationSetting(key string) time.Duration {
	raw := viper.GetString(key)
	if raw == "" {
		return 0
	}
	d, err := utils.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func resolveTransferConfig() transfer.Config {
	baseDelay := viper.GetDuration("retry.base_delay")
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxRetries := viper.GetInt("retry.max_attempts")
	if maxRetries <= 0 {
		maxRetries = transfer.DefaultMaxRetries
	}

	return transfer.Config{
		Workers:     resolveWorkerCount(),
		Timeouts:    resolveTimeouts(),
		MaxRetries:  maxRetries,
		BaseBackoff: baseDelay,
		Logger:      logger,
	}
}

func resolveDuplicateMode() duplicate.Mode {
	mode := duplicate.Mode(viper.GetString("duplicate_mode"))
	switch mode {
	case duplicate.Skip, duplicate.Overwrite, duplicate.Rename:
		return mode
	default:
		return duplicate.DefaultMode
	}
}

// statePath returns the path transfer state for a batch named by batchID is
// persisted to, per spec §4.6.
func statePath(batchID string) string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pulsepoint", "state", batchID+".json")
}

// latestStatePath returns the state file of the most recently modified
// batch, used by 'status' and 'resume' when no --state flag is given.
func latestStatePath() (string, error) {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".pulsepoint", "state")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("no transfer state found: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no transfer state found in %s", dir)
	}
	return newest, nil
}
