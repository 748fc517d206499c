package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	JWTSecret        string
	JWTRefreshSecret string
	NATSURL          string
	NATSSubject      string
	OllamaBaseURL    string
	OllamaAPIKey     string
	ModelName        string
	ResultCacheTTL   time.Duration
	EmbeddingModel   string
	UseEmbeddings    bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SAGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SAGE API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject", "sage.evaluations")
	v.SetDefault("ollama.base_url", "http://localhost:11434/v1")
	v.SetDefault("model.name", "llama2:latest")
	v.SetDefault("results.cache_ttl", "5m")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("use_embeddings", false)

	ttlString := v.GetString("results.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid results cache ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),
		NATSURL:          v.GetString("nats.url"),
		NATSSubject:      v.GetString("nats.subject"),
		OllamaBaseURL:    v.GetString("ollama.base_url"),
		OllamaAPIKey:     v.GetString("ollama.api_key"),
		ModelName:        v.GetString("model.name"),
		ResultCacheTTL:   ttl,
		EmbeddingModel:   v.GetString("embedding.model"),
		UseEmbeddings:    v.GetBool("use_embeddings"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	return cfg, nil
}
