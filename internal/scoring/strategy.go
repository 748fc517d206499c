package scoring

import (
	"context"
	"math"

	"github.com/noah-isme/sage-go-api/pkg/ai"
	"github.com/noah-isme/sage-go-api/pkg/similarity"
)

// Input is one (student answer, question) pair to score.
type Input struct {
	Question        string
	StudentAnswer   string
	ReferenceAnswer string
	MaxMarks        float64
	Config          Config
}

// Outcome is a strategy's verdict. ComputedMarks is always within
// [0, MaxMarks]; OracleScore is set only by the oracle-percentage strategy.
type Outcome struct {
	ComputedMarks float64
	OracleScore   *float64
	Explanation   string
	Details       map[string]interface{}
}

// Strategy scores a single answer. Implementations must be numerically
// stable: no division by zero, no NaN, clamp before scaling.
type Strategy interface {
	Score(ctx context.Context, input Input) (Outcome, error)
}

// SelectStrategy resolves the strategy for a configuration snapshot. The
// choice is made once per snapshot and dispatched through the Strategy
// interface rather than inspected again downstream.
func SelectStrategy(cfg Config, oracle similarity.Oracle, explainer ai.Explainer) Strategy {
	if cfg.EvaluatorType == EvaluatorMultiFactor {
		return NewMultiFactorStrategy(oracle)
	}
	return NewOraclePercentageStrategy(explainer)
}

// Band maps a normalized score fraction to the informational quality label.
// Bands never gate scoring.
func Band(cfg Config, fraction float64) string {
	switch {
	case fraction >= cfg.ExcellentThreshold:
		return "Excellent"
	case fraction >= cfg.GoodThreshold:
		return "Good"
	case fraction >= cfg.FairThreshold:
		return "Fair"
	default:
		return "Poor"
	}
}

func clamp(value, low, high float64) float64 {
	if math.IsNaN(value) {
		return low
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
