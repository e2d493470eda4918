package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument helpers tolerate an uninitialized meter (unit tests, CLI
// one-shots that skip InitOTEL) by no-opping on nil instruments.

// CountClassification records one finished classification call.
func CountClassification(ctx context.Context, decision string, prefiltered bool, elapsed time.Duration) {
	if Classifications != nil {
		Classifications.Add(ctx, 1,
			metric.WithAttributes(attribute.String("decision", decision)),
		)
	}
	if prefiltered && PrefilterHits != nil {
		PrefilterHits.Add(ctx, 1)
	}
	if ClassifyDuration != nil {
		ClassifyDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("decision", decision)),
		)
	}
}

// CountModelFailure records one discarded model run.
func CountModelFailure(ctx context.Context, stage string) {
	if ModelCallFailures != nil {
		ModelCallFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", stage)),
		)
	}
}

// CountCitationViolation records one dropped citation.
func CountCitationViolation(ctx context.Context) {
	if CitationViolations != nil {
		CitationViolations.Add(ctx, 1)
	}
}

// RecordCorpusSize records the current rule count.
func RecordCorpusSize(ctx context.Context, rules int) {
	if CorpusRules != nil {
		CorpusRules.Record(ctx, int64(rules))
	}
}
