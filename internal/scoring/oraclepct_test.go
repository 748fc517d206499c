package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sage-go-api/pkg/ai"
)

type fakeExplainer struct {
	outcome ai.ExplanationOutcome
	err     error
	calls   int
	opts    ai.Options
}

func (f *fakeExplainer) Evaluate(ctx context.Context, input ai.ExplanationInput, opts ai.Options) (ai.ExplanationOutcome, error) {
	f.calls++
	f.opts = opts
	if f.err != nil {
		return ai.ExplanationOutcome{}, f.err
	}
	return f.outcome, nil
}

func TestOraclePercentageConvertsToMarks(t *testing.T) {
	explainer := &fakeExplainer{outcome: ai.ExplanationOutcome{
		Score:       85,
		Explanation: "Strong understanding.",
		Model:       "llama2:latest",
		Attempts:    1,
	}}
	strategy := NewOraclePercentageStrategy(explainer)

	outcome, err := strategy.Score(context.Background(), Input{
		Question:        "What do mitochondria do?",
		StudentAnswer:   "Mitochondria generate ATP energy for cells through respiration",
		ReferenceAnswer: "Mitochondria produce ATP for cellular energy",
		MaxMarks:        10,
		Config:          DefaultConfig(),
	})
	require.NoError(t, err)
	require.InDelta(t, 8.5, outcome.ComputedMarks, 1e-9)
	require.NotNil(t, outcome.OracleScore)
	require.Equal(t, 85.0, *outcome.OracleScore)
	require.Equal(t, "Strong understanding.", outcome.Explanation)
}

func TestOraclePercentagePassesConfigSnapshotToOracle(t *testing.T) {
	explainer := &fakeExplainer{outcome: ai.ExplanationOutcome{Score: 50}}
	strategy := NewOraclePercentageStrategy(explainer)

	cfg := DefaultConfig()
	cfg.ModelName = "mistral:7b"
	cfg.MaxTokens = 512
	cfg.MaxRetries = 5

	_, err := strategy.Score(context.Background(), Input{
		StudentAnswer:   "A reasonably detailed answer about the topic",
		ReferenceAnswer: "The reference answer about the topic in question",
		MaxMarks:        10,
		Config:          cfg,
	})
	require.NoError(t, err)
	require.Equal(t, "mistral:7b", explainer.opts.Model)
	require.Equal(t, 512, explainer.opts.MaxTokens)
	require.Equal(t, 5, explainer.opts.MaxRetries)
}

func TestOraclePercentageClampsOutOfRangeScores(t *testing.T) {
	for _, raw := range []float64{-20, 0, 100, 250} {
		explainer := &fakeExplainer{outcome: ai.ExplanationOutcome{Score: raw}}
		strategy := NewOraclePercentageStrategy(explainer)

		outcome, err := strategy.Score(context.Background(), Input{
			StudentAnswer:   "An answer of comfortable length matching the reference well",
			ReferenceAnswer: "A reference answer of comparable length for the question",
			MaxMarks:        10,
			Config:          DefaultConfig(),
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, outcome.ComputedMarks, 0.0)
		require.LessOrEqual(t, outcome.ComputedMarks, 10.0)
	}
}

func TestOraclePercentageShortAnswerPenalty(t *testing.T) {
	explainer := &fakeExplainer{outcome: ai.ExplanationOutcome{Score: 90, Explanation: "Correct."}}
	strategy := NewOraclePercentageStrategy(explainer)

	outcome, err := strategy.Score(context.Background(), Input{
		StudentAnswer:   "ATP energy",
		ReferenceAnswer: "Mitochondria are organelles that produce ATP energy for the cell through the process of cellular respiration",
		MaxMarks:        10,
		Config:          DefaultConfig(),
	})
	require.NoError(t, err)

	// Two of three minimum words scales 90% to 60%, then the length cap
	// for an answer under 15% of the reference length holds it at 50%.
	require.InDelta(t, 5.0, outcome.ComputedMarks, 1e-9)
}

func TestOraclePercentagePropagatesOracleFailure(t *testing.T) {
	explainer := &fakeExplainer{err: ai.ErrOracleUnavailable}
	strategy := NewOraclePercentageStrategy(explainer)

	_, err := strategy.Score(context.Background(), Input{
		StudentAnswer:   "Some answer",
		ReferenceAnswer: "Some reference",
		MaxMarks:        10,
		Config:          DefaultConfig(),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ai.ErrOracleUnavailable)
}
