package similarity

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

var embeddingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sage",
	Subsystem: "similarity",
	Name:      "embedding_duration_seconds",
	Help:      "Duration of embedding requests against the local model server",
}, []string{"model"})

const defaultEmbeddingCacheSize = 2048

// EmbeddingConfig defines configuration for the embedding-backed oracle.
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	CacheSize int
	Logger    zerolog.Logger
}

// EmbeddingOracle computes cosine similarity between sentence embeddings
// fetched from an OpenAI-compatible endpoint (a locally hosted Ollama in
// the default deployment). Vectors are cached so repeated comparisons of
// the same text stay deterministic and cheap.
type EmbeddingOracle struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	cache   *lru.Cache[string, []float32]
	logger  zerolog.Logger
}

// NewEmbeddingOracle builds an embedding oracle from the provided configuration.
func NewEmbeddingOracle(cfg EmbeddingConfig) (*EmbeddingOracle, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultEmbeddingCacheSize
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &EmbeddingOracle{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		cache:   cache,
		logger:  cfg.Logger.With().Str("component", "embedding_oracle").Logger(),
	}, nil
}

// Similarity implements Oracle.
func (o *EmbeddingOracle) Similarity(ctx context.Context, a, b string) (float64, error) {
	left := normalize(a)
	right := normalize(b)
	if left == "" || right == "" {
		return 0, nil
	}

	embLeft, err := o.embed(ctx, left)
	if err != nil {
		return 0, err
	}
	embRight, err := o.embed(ctx, right)
	if err != nil {
		return 0, err
	}

	return Clamp01(cosine(embLeft, embRight)), nil
}

func (o *EmbeddingOracle) embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := o.cache.Get(text); ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: []string{text},
	})
	embeddingDuration.WithLabelValues(o.model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for model %s", o.model)
	}

	vector := resp.Data[0].Embedding
	o.cache.Add(text, vector)

	return vector, nil
}
