package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geogate/geogate/policy"
	"github.com/geogate/geogate/types"
)

var (
	classifyID          string
	classifyTitle       string
	classifyDescription string
	classifyPRD         string
	classifyTRD         string
	classifyEscalation  bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one feature description",
	Long: `Classify a product-feature description as requiring geo-specific
legal compliance logic (YES), being a business decision (NO), or
needing human review (REVIEW).

The decision is grounded: every cited regulation is validated against
a fingerprinted snapshot of the reference rule corpus, and an immutable
audit record is appended for the call.`,
	Example: `  geogate classify -t "Curfew login blocker" -d "To comply with the Utah Social Media Regulation Act, implement curfew login restriction for minors"
  geogate classify -d "A/B test dark theme rollout in South Korea"`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&classifyID, "id", "", "Feature id (optional; enables scan persistence)")
	classifyCmd.Flags().StringVarP(&classifyTitle, "title", "t", "", "Feature title")
	classifyCmd.Flags().StringVarP(&classifyDescription, "description", "d", "", "Feature description")
	classifyCmd.Flags().StringVar(&classifyPRD, "prd", "", "PRD excerpt")
	classifyCmd.Flags().StringVar(&classifyTRD, "trd", "", "TRD excerpt")
	classifyCmd.Flags().BoolVar(&classifyEscalation, "escalation", false, "Evaluate escalation policies on the result")
	_ = classifyCmd.MarkFlagRequired("description")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	feature := types.Feature{
		ID:          classifyID,
		Title:       classifyTitle,
		Description: classifyDescription,
		PRD:         classifyPRD,
		TRD:         classifyTRD,
	}
	if err := feature.Validate(); err != nil {
		return err
	}

	result := a.classifier.Classify(ctx, feature)

	out := struct {
		types.ConsensusResult
		Escalation *policy.Result `json:"escalation,omitempty"`
	}{ConsensusResult: result}

	if classifyEscalation {
		esc, err := a.policies.Evaluate(ctx, policy.Input{Result: result, GeoTags: feature.GeoTags})
		if err == nil {
			out.Escalation = &esc
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
