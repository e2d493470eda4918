package classifier

import (
	"context"
	"sync"

	"github.com/geogate/geogate/types"
)

// BatchResult pairs a feature with its classification outcome.
type BatchResult struct {
	Feature types.Feature
	Result  types.ConsensusResult
}

// ClassifyBatch classifies features concurrently with a bounded worker
// pool. Calls are fully independent; the worker count respects external
// rate limits. Results come back in input order.
func (c *Classifier) ClassifyBatch(ctx context.Context, features []types.Feature, workers int) []BatchResult {
	if workers <= 0 {
		workers = 4
	}
	if workers > len(features) {
		workers = len(features)
	}

	results := make([]BatchResult, len(features))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = BatchResult{
					Feature: features[i],
					Result:  c.Classify(ctx, features[i]),
				}
			}
		}()
	}

	for i := range features {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Unclassified features still get a well-formed answer.
			for j := i; j < len(features); j++ {
				results[j] = BatchResult{
					Feature: features[j],
					Result: types.ConsensusResult{
						FeatureID:        features[j].ID,
						Decision:         types.DecisionReview,
						Confidence:       0.5,
						ReasoningSummary: "Classification cancelled before completion.",
						Evidence:         types.Evidence{FeatureSpans: []string{features[j].Description}, RegSnippets: []string{}},
						Regulations:      []string{},
						ControlTypes:     []string{},
					},
				}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
