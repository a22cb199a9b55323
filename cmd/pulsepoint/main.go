// Package main is the entry point for the PulsePoint CLI application
package main

import (
	"fmt"
	"os"

	"github.com/pulsepoint/pulsepoint/internal/cli"
	"github.com/pulsepoint/pulsepoint/internal/pulselog"
)

// Version information (set during build)
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	// cli.Execute brings up the pulselog logger itself, from the resolved
	// config, during cobra.OnInitialize — there is nothing left to wire here.
	defer pulselog.Sync()

	cli.SetVersionInfo(Version, BuildDate)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
