package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geogate/geogate/types"
)

var (
	batchInput   string
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Classify a batch of features from a JSON file",
	Long: `Classify many features concurrently. The input file holds a JSON
array of feature objects; classifications are independent and run on a
bounded worker pool. Results print as a JSON array in input order.`,
	Example: `  geogate batch -i features.json
  geogate batch -i features.json --workers 8`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "Input JSON file (array of features)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Worker pool size (default from config)")
	_ = batchCmd.MarkFlagRequired("input")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(batchInput) // #nosec G304 -- path is intentional user input
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	var features []types.Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return fmt.Errorf("failed to parse input file: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	workers := batchWorkers
	if workers <= 0 {
		workers = a.cfg.Pipeline.BatchWorkers
	}

	batch := a.classifier.ClassifyBatch(ctx, features, workers)

	results := make([]types.ConsensusResult, 0, len(batch))
	for _, b := range batch {
		results = append(results, b.Result)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
