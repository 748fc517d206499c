package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseOracleResponseScoreAndReason(t *testing.T) {
	score, explanation, err := parseOracleResponse("Score: 85%\nReason: Strong understanding of the topic.")
	require.NoError(t, err)
	require.Equal(t, 85.0, score)
	require.Equal(t, "Strong understanding of the topic.", explanation)
}

func TestParseOracleResponseVariants(t *testing.T) {
	cases := []struct {
		name     string
		response string
		score    float64
	}{
		{"plain number", "Score: 70\nReason: Good coverage.", 70},
		{"decimal percentage", "Score: 62.5%\nReason: Partial coverage.", 62.5},
		{"score buried mid line", "The evaluation yields Score: 40% overall.\nReason: Major gaps.", 40},
		{"percentage in prose", "I would give a percentage score of 55% for this answer.", 55},
		{"above hundred clamps", "Score: 120%\nReason: Overenthusiastic model.", 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, _, err := parseOracleResponse(tc.response)
			require.NoError(t, err)
			require.Equal(t, tc.score, score)
		})
	}
}

func TestParseOracleResponseMalformed(t *testing.T) {
	_, _, err := parseOracleResponse("The answer demonstrates a reasonable understanding of mitochondria.")
	require.Error(t, err)

	_, _, err = parseOracleResponse("Score: excellent\nReason: no numeric value present.")
	require.Error(t, err)
}

func TestParseOracleResponseRejectsAmbiguousPercentages(t *testing.T) {
	reply := "Let me restate the guidelines first:\n" +
		"- 90-100%: Excellent understanding\n" +
		"- 80-89%: Strong understanding\n" +
		"The answer sits somewhere in between."
	_, _, err := parseOracleResponse(reply)
	require.Error(t, err)
}

func TestParseOracleResponseMissingReason(t *testing.T) {
	score, explanation, err := parseOracleResponse("Score: 90%")
	require.NoError(t, err)
	require.Equal(t, 90.0, score)
	require.Equal(t, "No explanation provided", explanation)
}

func TestOllamaEvaluatorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Score: 75%\nReason: Covers the main concepts."}}]}`))
	}))
	defer server.Close()

	evaluator, err := NewOllamaEvaluator(OllamaConfig{
		BaseURL: server.URL,
		Model:   "llama2:latest",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	outcome, err := evaluator.Evaluate(context.Background(), ExplanationInput{
		Question:        "What do mitochondria do?",
		ReferenceAnswer: "Mitochondria produce ATP for cellular energy",
		StudentAnswer:   "They generate ATP energy for the cell",
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 75.0, outcome.Score)
	require.Equal(t, "Covers the main concepts.", outcome.Explanation)
	require.Equal(t, 1, outcome.Attempts)
}

func TestOllamaEvaluatorHonorsZeroTemperature(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Score: 50%\nReason: Partial coverage."}}]}`))
	}))
	defer server.Close()

	evaluator, err := NewOllamaEvaluator(OllamaConfig{
		BaseURL: server.URL,
		Model:   "llama2:latest",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	zero := float32(0)
	_, err = evaluator.Evaluate(context.Background(), ExplanationInput{
		ReferenceAnswer: "reference",
		StudentAnswer:   "student",
	}, Options{Temperature: &zero})
	require.NoError(t, err)

	// A configured zero must reach the wire instead of falling back to the
	// 0.3 default.
	raw, ok := body["temperature"]
	require.True(t, ok, "temperature missing from request")
	require.Less(t, raw.(float64), 0.01)
}

func TestOllamaEvaluatorTimeoutExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	evaluator, err := NewOllamaEvaluator(OllamaConfig{
		BaseURL:    server.URL,
		Model:      "llama2:latest",
		Timeout:    50 * time.Millisecond,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = evaluator.Evaluate(context.Background(), ExplanationInput{
		ReferenceAnswer: "reference",
		StudentAnswer:   "student",
	}, Options{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOracleUnavailable)
	require.Equal(t, int32(3), attempts.Load(), "expected exactly max_retries attempts")
}

func TestOllamaEvaluatorMalformedNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"I cannot provide a numeric grade."}}]}`))
	}))
	defer server.Close()

	evaluator, err := NewOllamaEvaluator(OllamaConfig{
		BaseURL:    server.URL,
		Model:      "llama2:latest",
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = evaluator.Evaluate(context.Background(), ExplanationInput{
		ReferenceAnswer: "reference",
		StudentAnswer:   "student",
	}, Options{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Equal(t, int32(1), attempts.Load())
}

func TestOllamaEvaluatorRecoversAfterTransientFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Score: 60%\nReason: Adequate understanding."}}]}`))
	}))
	defer server.Close()

	evaluator, err := NewOllamaEvaluator(OllamaConfig{
		BaseURL:    server.URL,
		Model:      "llama2:latest",
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	outcome, err := evaluator.Evaluate(context.Background(), ExplanationInput{
		ReferenceAnswer: "reference",
		StudentAnswer:   "student",
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 60.0, outcome.Score)
	require.Equal(t, 2, outcome.Attempts)
}
