package service

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sage-go-api/internal/dto"
	"github.com/noah-isme/sage-go-api/internal/scoring"
)

// SettingsService holds the live evaluator configuration. Reads return value
// copies, so an evaluation run started before an update keeps the old config.
type SettingsService interface {
	Snapshot() scoring.Config
	Get() dto.SettingsResponse
	Update(ctx context.Context, payload dto.SettingsUpdateRequest) (dto.SettingsResponse, error)
}

type settingsService struct {
	mu        sync.RWMutex
	config    scoring.Config
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSettingsService constructs the settings service. An invalid initial
// config falls back to the defaults.
func NewSettingsService(initial scoring.Config, validate *validator.Validate, logger zerolog.Logger) SettingsService {
	service := &settingsService{
		config:    initial,
		validator: validate,
		logger:    logger.With().Str("component", "settings_service").Logger(),
	}

	if err := initial.Validate(); err != nil {
		service.logger.Warn().Err(err).Msg("initial evaluator config invalid, using defaults")
		service.config = scoring.DefaultConfig()
	}

	return service
}

func (s *settingsService) Snapshot() scoring.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.config
}

func (s *settingsService) Get() dto.SettingsResponse {
	return dto.NewSettingsResponse(s.Snapshot())
}

// Update applies a partial update atomically. The merged config is validated
// as a whole before it replaces the current one; a rejected update leaves the
// previous config untouched.
func (s *settingsService) Update(_ context.Context, payload dto.SettingsUpdateRequest) (dto.SettingsResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SettingsResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := payload.ApplyTo(s.config)
	if err := merged.Validate(); err != nil {
		return dto.SettingsResponse{}, err
	}

	s.config = merged
	s.logger.Info().
		Str("evaluator_type", string(merged.EvaluatorType)).
		Float64("similarity_threshold", merged.SimilarityThreshold).
		Str("model_name", merged.ModelName).
		Msg("evaluator settings updated")

	return dto.NewSettingsResponse(merged), nil
}
