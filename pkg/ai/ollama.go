package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	oracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sage",
		Subsystem: "oracle",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of explanation oracle requests",
	}, []string{"model"})

	oracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "oracle",
		Name:      "evaluation_failures_total",
		Help:      "Number of explanation oracle failures by kind",
	}, []string{"model", "kind"})

	oracleRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "oracle",
		Name:      "evaluation_retries_total",
		Help:      "Number of retried explanation oracle attempts",
	}, []string{"model"})
)

const maxBackoff = 10 * time.Second

// OllamaConfig defines configuration options for the Ollama-backed oracle.
// BaseURL points at the OpenAI-compatible endpoint of a locally hosted
// model server (http://localhost:11434/v1 for a stock Ollama).
type OllamaConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Temperature nil means the stock default of 0.3; an explicit zero is
	// honored as-is.
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	Logger      zerolog.Logger
}

// OllamaEvaluator implements Explainer against a local text-generation
// server speaking the OpenAI chat-completion protocol.
type OllamaEvaluator struct {
	client *openai.Client
	cfg    OllamaConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOllamaEvaluator builds a new oracle using the provided configuration.
func NewOllamaEvaluator(cfg OllamaConfig) (*OllamaEvaluator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base url is required")
	}
	if cfg.Model == "" {
		cfg.Model = "llama2:latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature == nil {
		defaultTemp := float32(0.3)
		cfg.Temperature = &defaultTemp
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &OllamaEvaluator{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/sage-go-api/pkg/ai/ollama"),
		logger: cfg.Logger.With().Str("component", "ollama_evaluator").Logger(),
	}, nil
}

// Evaluate sends the grading prompt to the model server and parses the
// response. Transport failures and timeouts are retried up to
// cfg.MaxRetries total attempts with exponential backoff; an answer that
// arrives but carries no parsable score is reported as ErrMalformedResponse
// without further retries.
func (e *OllamaEvaluator) Evaluate(parent context.Context, input ExplanationInput, opts Options) (ExplanationOutcome, error) {
	opts = e.fillDefaults(opts)

	ctx, span := e.tracer.Start(parent, "oracle.evaluate", trace.WithAttributes(
		attribute.String("model", opts.Model),
	))
	defer span.End()

	// go-openai omits a zero temperature from the request body, which would
	// let the server substitute its own default. The smallest positive value
	// keeps the field on the wire.
	temperature := *opts.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	request := openai.ChatCompletionRequest{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildEvaluationPrompt(input),
			},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 1 {
			oracleRetries.WithLabelValues(opts.Model).Inc()
			if err := e.waitBackoff(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		content, err := e.attempt(ctx, request, opts.Timeout)
		if err != nil {
			lastErr = err
			e.logger.Warn().Err(err).Int("attempt", attempt).Msg("oracle attempt failed")
			continue
		}

		score, explanation, parseErr := parseOracleResponse(content)
		if parseErr != nil {
			oracleFailures.WithLabelValues(opts.Model, "malformed").Inc()
			span.RecordError(parseErr)
			span.SetStatus(codes.Error, "malformed_response")
			return ExplanationOutcome{}, fmt.Errorf("%w: %s", ErrMalformedResponse, truncate(content, 160))
		}

		span.SetAttributes(
			attribute.Float64("oracle.score", score),
			attribute.Int("oracle.attempts", attempt),
		)

		return ExplanationOutcome{
			Score:       score,
			Explanation: explanation,
			RawResponse: content,
			Model:       opts.Model,
			Attempts:    attempt,
		}, nil
	}

	oracleFailures.WithLabelValues(opts.Model, "unavailable").Inc()
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "unavailable")

	if lastErr != nil {
		return ExplanationOutcome{}, fmt.Errorf("%w after %d attempts: %v", ErrOracleUnavailable, opts.MaxRetries, lastErr)
	}
	return ExplanationOutcome{}, fmt.Errorf("%w after %d attempts", ErrOracleUnavailable, opts.MaxRetries)
}

func (e *OllamaEvaluator) fillDefaults(opts Options) Options {
	if opts.Model == "" {
		opts.Model = e.cfg.Model
	}
	if opts.Temperature == nil {
		opts.Temperature = e.cfg.Temperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = e.cfg.MaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = e.cfg.Timeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = e.cfg.MaxRetries
	}
	return opts
}

func (e *OllamaEvaluator) attempt(ctx context.Context, request openai.ChatCompletionRequest, timeout time.Duration) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(attemptCtx, request)
	oracleDuration.WithLabelValues(request.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrOracleTimeout, err)
		}
		return "", fmt.Errorf("oracle request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from model server")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (e *OllamaEvaluator) waitBackoff(ctx context.Context, attempt int) error {
	delay := e.cfg.Backoff << (attempt - 2)
	if delay > maxBackoff {
		delay = maxBackoff
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func buildEvaluationPrompt(input ExplanationInput) string {
	builder := strings.Builder{}
	builder.WriteString("You are an expert educational evaluator. Evaluate the student's answer based on conceptual understanding and provide a percentage score.\n\n")
	builder.WriteString("CRITICAL: If the student's answer is completely unrelated to the question topic or shows no understanding, give 0% immediately.\n\n")
	if input.Question != "" {
		builder.WriteString("Question: ")
		builder.WriteString(input.Question)
		builder.WriteString("\n")
	}
	builder.WriteString("Student Answer: ")
	builder.WriteString(input.StudentAnswer)
	builder.WriteString("\nReference Answer: ")
	builder.WriteString(input.ReferenceAnswer)
	builder.WriteString("\n\nEVALUATION CRITERIA:\n")
	builder.WriteString("1. Conceptual Accuracy (40%): Core concepts correctly identified and explained\n")
	builder.WriteString("2. Completeness (30%): Addresses key points from reference answer\n")
	builder.WriteString("3. Depth & Coverage (15%): Sufficient detail and comprehensive coverage\n")
	builder.WriteString("4. Clarity & Communication (15%): Clear, well-organized explanation\n\n")
	builder.WriteString("SCORING GUIDELINES:\n")
	builder.WriteString("- 90-100%: Excellent understanding, comprehensive coverage\n")
	builder.WriteString("- 80-89%: Strong understanding, addresses most key points\n")
	builder.WriteString("- 70-79%: Good understanding, covers main concepts\n")
	builder.WriteString("- 60-69%: Adequate understanding, partial coverage\n")
	builder.WriteString("- 50-59%: Basic understanding, significant gaps\n")
	builder.WriteString("- 40-49%: Limited understanding, major gaps\n")
	builder.WriteString("- 30-39%: Poor understanding, minimal knowledge\n")
	builder.WriteString("- 20-29%: Very poor understanding, mostly incorrect\n")
	builder.WriteString("- 10-19%: Minimal understanding, mostly wrong\n")
	builder.WriteString("- 0-9%: No understanding, completely incorrect or unrelated\n\n")
	builder.WriteString("EVALUATION RULES:\n")
	builder.WriteString("- Focus on CONCEPTUAL UNDERSTANDING, not exact wording\n")
	builder.WriteString("- Accept equivalent concepts expressed differently\n")
	builder.WriteString("- Reward comprehensive coverage even if details differ\n")
	builder.WriteString("- Give 0% for answers showing no understanding of the topic\n")
	builder.WriteString("- Give 0% for completely unrelated or nonsensical answers\n")
	builder.WriteString("- Be fair but strict - partial credit only for actual understanding\n\n")
	builder.WriteString("REQUIRED FORMAT:\n")
	builder.WriteString("Score: [percentage from 0% to 100%]\n")
	builder.WriteString("Reason: [Brief explanation of the student's understanding level and what they got right or wrong]\n\n")
	builder.WriteString("Now evaluate:")
	return builder.String()
}

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// parseOracleResponse extracts the percentage score and the written reason
// from the model's free-text reply. The model is instructed to answer with
// "Score:" and "Reason:" lines, but replies that bury the percentage in
// prose are still accepted as long as exactly one confident match exists.
func parseOracleResponse(content string) (float64, string, error) {
	score := -1.0
	explanation := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if idx := strings.Index(line, "Score:"); idx >= 0 && score < 0 {
			token := strings.TrimSpace(line[idx+len("Score:"):])
			if parsed, ok := parseScoreToken(token); ok {
				score = parsed
			}
			continue
		}

		if strings.HasPrefix(line, "Reason:") {
			explanation = strings.TrimSpace(strings.TrimPrefix(line, "Reason:"))
		}
	}

	if score < 0 {
		// Several percentages in one reply usually mean the model echoed its
		// scoring guidelines; picking any of them would be a guess.
		if matches := percentPattern.FindAllStringSubmatch(content, 2); len(matches) == 1 {
			if parsed, err := strconv.ParseFloat(matches[0][1], 64); err == nil {
				score = parsed
			}
		}
	}

	if score < 0 {
		return 0, "", fmt.Errorf("no score token found")
	}

	if score > 100 {
		score = 100
	}
	if explanation == "" {
		explanation = "No explanation provided"
	}

	return score, explanation, nil
}

func parseScoreToken(token string) (float64, bool) {
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return 0, false
	}

	raw := strings.TrimSuffix(fields[0], "%")
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return parsed, true
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
