package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geogate/geogate/types"
)

const escalationPolicy = `package geogate

default action := "auto_accept"

default risk := "low"

action := "escalate" if {
	input.result.decision == "REVIEW"
}

action := "notify" if {
	input.result.decision == "YES"
	input.result.confidence >= 0.6
}

risk := "high" if {
	input.result.decision == "REVIEW"
}

reason := "needs human review" if {
	input.result.decision == "REVIEW"
}
`

func TestEngine_LoadPolicy(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	require.NoError(t, e.LoadPolicy(ctx, "escalation", escalationPolicy))

	err := e.LoadPolicy(ctx, "broken", "package geogate\naction := {{{")
	assert.Error(t, err, "invalid rego must fail to compile")
}

func TestEngine_EvaluateEscalatesReview(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	require.NoError(t, e.LoadPolicy(ctx, "escalation", escalationPolicy))

	result, err := e.Evaluate(ctx, Input{
		Result: types.ConsensusResult{
			FeatureID:  "feat-1",
			Decision:   types.DecisionReview,
			Confidence: 0.5,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, ActionEscalate, result.Action)
	assert.Equal(t, "high", result.Risk)
	assert.Contains(t, result.Policies, "escalation")
	assert.Contains(t, result.Reason, "human review")
}

func TestEngine_EvaluateNotifiesConfidentYes(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	require.NoError(t, e.LoadPolicy(ctx, "escalation", escalationPolicy))

	result, err := e.Evaluate(ctx, Input{
		Result: types.ConsensusResult{
			FeatureID:  "feat-2",
			Decision:   types.DecisionYes,
			Confidence: 0.9,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, ActionNotify, result.Action)
}

func TestEngine_EvaluateNoPolicies(t *testing.T) {
	e := NewEngine()

	result, err := e.Evaluate(context.Background(), Input{
		Result: types.ConsensusResult{Decision: types.DecisionNo, Confidence: 0.95},
	})
	require.NoError(t, err)

	// No loaded policies means nothing objects.
	assert.Equal(t, ActionAutoAccept, result.Action)
	assert.Equal(t, "low", result.Risk)
	assert.Empty(t, result.Policies)
}

func TestAggregate_PriorityWins(t *testing.T) {
	final := aggregate([]Result{
		{Action: ActionNotify, Risk: "medium", Confidence: 0.7, Reason: "yes decision"},
		{Action: ActionEscalate, Risk: "high", Confidence: 0.5, Reason: "low confidence"},
		{Action: ActionAutoAccept, Risk: "low", Confidence: 0.9},
	})

	assert.Equal(t, ActionEscalate, final.Action)
	assert.Equal(t, "high", final.Risk)
	assert.Equal(t, 0.9, final.Confidence)
	assert.Contains(t, final.Reason, "low confidence")
}
