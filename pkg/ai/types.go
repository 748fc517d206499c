package ai

import (
	"context"
	"errors"
	"time"
)

// ErrOracleUnavailable indicates the model server could not produce a
// response after all retry attempts were exhausted.
var ErrOracleUnavailable = errors.New("explanation oracle unavailable")

// ErrOracleTimeout indicates a single attempt exceeded its deadline. It is
// folded into ErrOracleUnavailable once retries run out.
var ErrOracleTimeout = errors.New("explanation oracle timed out")

// ErrMalformedResponse indicates the model answered but no score could be
// parsed from the response text.
var ErrMalformedResponse = errors.New("explanation oracle returned an unparsable response")

// ExplanationInput carries the material the oracle grades against.
type ExplanationInput struct {
	Question        string
	ReferenceAnswer string
	StudentAnswer   string
}

// ExplanationOutcome is the structured verdict returned by the oracle.
// Score is a percentage in [0,100].
type ExplanationOutcome struct {
	Score       float64
	Explanation string
	RawResponse string
	Model       string
	Attempts    int
}

// Options carries the admin-tunable model settings captured for a single
// evaluation run. Zero values fall back to the evaluator's defaults.
// Temperature is a pointer because zero is a legal setting, not an absence.
type Options struct {
	Model       string
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// Explainer describes a model capable of grading free-text answers with a
// score and a written rationale.
type Explainer interface {
	Evaluate(ctx context.Context, input ExplanationInput, opts Options) (ExplanationOutcome, error)
}
