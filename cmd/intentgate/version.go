package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Overridden at build time via -ldflags "-X main.semver=... -X main.commit=...".
var (
	semver = "dev"
	commit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("intentgate %s (commit %s)\n", semver, commit)
	},
}
