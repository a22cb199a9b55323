// Package cli implements the command-line interface for PulsePoint.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pulsepoint/pulsepoint/internal/pulselog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile     string
	verboseMode bool
	logger      *zap.Logger
	version     string
	buildDate   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pulsepoint",
	Short: "PulsePoint - resumable file transfer with pCloud",
	Long: `PulsePoint is a command-line tool for resumable, concurrent file
transfer between a local filesystem and pCloud, with duplicate handling,
crash-resumable transfer state, and bidirectional folder sync.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, bd string) {
	version = v
	buildDate = bd
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildDate)
}

func init() {
	logger = zap.NewNop()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pulsepoint/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "verbose output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
}

// initConfig reads in config file and ENV variables if set, then brings up
// the global pulselog logger from the resolved settings.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".pulsepoint"))
		viper.AddConfigPath("/etc/pulsepoint/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetDefault("region", "US")
	viper.SetDefault("worker_count", 0)
	viper.SetDefault("duplicate_mode", "rename")
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", "1s")
	viper.SetDefault("timeout.base", "60s")
	viper.SetDefault("timeout.per_mb", "2s")
	viper.SetDefault("timeout.max", "600s")
	viper.SetDefault("logging.level", "info")

	viper.SetEnvPrefix("PULSEPOINT")
	viper.AutomaticEnv()

	configRead := viper.ReadInConfig() == nil

	logCfg := pulselog.DefaultConfig()
	if lvl := viper.GetString("logging.level"); lvl != "" {
		logCfg.Level = lvl
	}
	logCfg.Development = verboseMode
	if err := pulselog.Initialize(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = pulselog.Get()

	if configRead && verboseMode {
		logger.Info("using config file", zap.String("file", viper.ConfigFileUsed()))
	}
}
