package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.2.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "geogate",
		Short: "Grounded geo-compliance classification",
		Long: `GeoGate - Grounded Geo-Compliance Classification

GeoGate decides whether a product feature needs geo-specific legal
compliance logic (YES), is purely a business decision (NO), or needs
human review (REVIEW). Every legal citation in an answer is traceable
to a fingerprinted snapshot of the reference rule corpus, and every
decision leaves an immutable audit record.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`GeoGate {{.Version}} - Grounded Geo-Compliance Classification
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
}
