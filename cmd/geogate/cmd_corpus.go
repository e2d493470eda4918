package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect the reference rule corpus",
	Long: `Show the loaded rule corpus and its content fingerprint. The
fingerprint is the hash recorded in every audit record, so it proves
which corpus snapshot grounded a given decision.`,
	RunE: runCorpus,
}

func init() {
	rootCmd.AddCommand(corpusCmd)
}

func runCorpus(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	ix := a.corpus.Index()
	fmt.Printf("corpus fingerprint: %s\n", ix.FingerprintHex())
	fmt.Printf("rules: %d\n\n", ix.Len())
	for _, r := range ix.Entries() {
		fmt.Printf("[%s] %s (%s, %s)\n", r.ID, r.Title, r.Jurisdiction, r.Severity)
	}
	return nil
}
