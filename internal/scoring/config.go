package scoring

import (
	"errors"
	"fmt"
	"time"
)

// EvaluatorType selects which scoring strategy an evaluation run uses.
type EvaluatorType string

const (
	// EvaluatorMultiFactor scores with per-sentence similarity only.
	EvaluatorMultiFactor EvaluatorType = "multi_factor"
	// EvaluatorOraclePercentage scores with the explanation oracle's percentage.
	EvaluatorOraclePercentage EvaluatorType = "oracle_percentage"
)

// ErrInvalidConfig indicates an evaluator configuration update violates a
// range or ordering constraint. Violations are rejected, never repaired.
var ErrInvalidConfig = errors.New("invalid evaluator configuration")

// Config is the admin-tunable evaluator configuration. Orchestrator runs
// capture a value copy at start; later updates never affect in-flight work.
// Banding thresholds are fractions of max marks and are informational only,
// they do not gate scoring.
type Config struct {
	EvaluatorType       EvaluatorType `json:"evaluator_type"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
	PassThreshold       float64       `json:"pass_threshold"`
	ExcellentThreshold  float64       `json:"excellent_threshold"`
	GoodThreshold       float64       `json:"good_threshold"`
	FairThreshold       float64       `json:"fair_threshold"`
	ModelName           string        `json:"model_name"`
	Temperature         float64       `json:"temperature"`
	MaxTokens           int           `json:"max_tokens"`
	TimeoutSeconds      int           `json:"timeout_seconds"`
	MaxRetries          int           `json:"max_retries"`
}

// DefaultConfig returns the configuration the service boots with.
func DefaultConfig() Config {
	return Config{
		EvaluatorType:       EvaluatorOraclePercentage,
		SimilarityThreshold: 0.3,
		PassThreshold:       0.5,
		ExcellentThreshold:  0.8,
		GoodThreshold:       0.6,
		FairThreshold:       0.4,
		ModelName:           "llama2:latest",
		Temperature:         0.3,
		MaxTokens:           1000,
		TimeoutSeconds:      60,
		MaxRetries:          3,
	}
}

// Validate checks range and ordering constraints.
func (c Config) Validate() error {
	switch c.EvaluatorType {
	case EvaluatorMultiFactor, EvaluatorOraclePercentage:
	default:
		return fmt.Errorf("%w: unknown evaluator type %q", ErrInvalidConfig, c.EvaluatorType)
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold %.4f outside [0,1]", ErrInvalidConfig, c.SimilarityThreshold)
	}

	for name, value := range map[string]float64{
		"pass_threshold":      c.PassThreshold,
		"excellent_threshold": c.ExcellentThreshold,
		"good_threshold":      c.GoodThreshold,
		"fair_threshold":      c.FairThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%w: %s %.4f outside [0,1]", ErrInvalidConfig, name, value)
		}
	}

	if c.FairThreshold > c.GoodThreshold || c.GoodThreshold > c.ExcellentThreshold {
		return fmt.Errorf("%w: banding thresholds must satisfy fair <= good <= excellent", ErrInvalidConfig)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f outside [0,2]", ErrInvalidConfig, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalidConfig)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeout_seconds must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max_retries must be positive", ErrInvalidConfig)
	}

	return nil
}

// OracleTimeout returns the per-attempt oracle timeout as a duration.
func (c Config) OracleTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
