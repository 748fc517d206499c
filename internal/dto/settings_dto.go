package dto

import "github.com/noah-isme/sage-go-api/internal/scoring"

// SettingsUpdateRequest carries partial updates to the evaluation settings.
// Omitted fields keep their current values.
type SettingsUpdateRequest struct {
	EvaluatorType       *string  `json:"evaluator_type" validate:"omitempty,oneof=multi_factor oracle_percentage"`
	SimilarityThreshold *float64 `json:"similarity_threshold" validate:"omitempty,gte=0,lte=1"`
	PassThreshold       *float64 `json:"pass_threshold" validate:"omitempty,gte=0,lte=1"`
	ExcellentThreshold  *float64 `json:"excellent_threshold" validate:"omitempty,gte=0,lte=1"`
	GoodThreshold       *float64 `json:"good_threshold" validate:"omitempty,gte=0,lte=1"`
	FairThreshold       *float64 `json:"fair_threshold" validate:"omitempty,gte=0,lte=1"`
	ModelName           *string  `json:"model_name" validate:"omitempty,min=1"`
	Temperature         *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens           *int     `json:"max_tokens" validate:"omitempty,gt=0"`
	TimeoutSeconds      *int     `json:"timeout_seconds" validate:"omitempty,gt=0"`
	MaxRetries          *int     `json:"max_retries" validate:"omitempty,gt=0"`
}

// SettingsResponse serializes the active evaluation settings.
type SettingsResponse struct {
	EvaluatorType       string  `json:"evaluator_type"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	PassThreshold       float64 `json:"pass_threshold"`
	ExcellentThreshold  float64 `json:"excellent_threshold"`
	GoodThreshold       float64 `json:"good_threshold"`
	FairThreshold       float64 `json:"fair_threshold"`
	ModelName           string  `json:"model_name"`
	Temperature         float64 `json:"temperature"`
	MaxTokens           int     `json:"max_tokens"`
	TimeoutSeconds      int     `json:"timeout_seconds"`
	MaxRetries          int     `json:"max_retries"`
}

// NewSettingsResponse converts a scoring config into a DTO.
func NewSettingsResponse(cfg scoring.Config) SettingsResponse {
	return SettingsResponse{
		EvaluatorType:       string(cfg.EvaluatorType),
		SimilarityThreshold: cfg.SimilarityThreshold,
		PassThreshold:       cfg.PassThreshold,
		ExcellentThreshold:  cfg.ExcellentThreshold,
		GoodThreshold:       cfg.GoodThreshold,
		FairThreshold:       cfg.FairThreshold,
		ModelName:           cfg.ModelName,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		TimeoutSeconds:      cfg.TimeoutSeconds,
		MaxRetries:          cfg.MaxRetries,
	}
}

// ApplyTo copies the non-nil fields of the request onto a config copy.
func (r SettingsUpdateRequest) ApplyTo(cfg scoring.Config) scoring.Config {
	if r.EvaluatorType != nil {
		cfg.EvaluatorType = scoring.EvaluatorType(*r.EvaluatorType)
	}
	if r.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *r.SimilarityThreshold
	}
	if r.PassThreshold != nil {
		cfg.PassThreshold = *r.PassThreshold
	}
	if r.ExcellentThreshold != nil {
		cfg.ExcellentThreshold = *r.ExcellentThreshold
	}
	if r.GoodThreshold != nil {
		cfg.GoodThreshold = *r.GoodThreshold
	}
	if r.FairThreshold != nil {
		cfg.FairThreshold = *r.FairThreshold
	}
	if r.ModelName != nil {
		cfg.ModelName = *r.ModelName
	}
	if r.Temperature != nil {
		cfg.Temperature = *r.Temperature
	}
	if r.MaxTokens != nil {
		cfg.MaxTokens = *r.MaxTokens
	}
	if r.TimeoutSeconds != nil {
		cfg.TimeoutSeconds = *r.TimeoutSeconds
	}
	if r.MaxRetries != nil {
		cfg.MaxRetries = *r.MaxRetries
	}

	return cfg
}
