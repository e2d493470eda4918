package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/geogate/geogate/audit"
	"github.com/geogate/geogate/config"
)

var auditSince time.Duration

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Replay the immutable audit log",
	Long: `Print audit records as JSON lines. Each record carries the corpus
and grounding fingerprints, the grounding id list, and the raw-output
hash needed to reconstruct why a decision was reached.`,
	Example: `  geogate audit                # everything
  geogate audit --since 24h    # last day only`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "Only records newer than this age (0 = all)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	since := time.Time{}
	if auditSince > 0 {
		since = time.Now().Add(-auditSince)
	}

	enc := json.NewEncoder(os.Stdout)
	count := 0
	err := audit.Replay(cfg.AuditDir, since, func(rec *audit.Record) error {
		count++
		return enc.Encode(rec)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d audit records\n", count)
	return nil
}
