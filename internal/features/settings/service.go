package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-reports/internal/config"
	"go-reports/pkg/apperrors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reloadTimeout = 10 * time.Second

type SettingsService interface {
	GetEngineSettings(ctx context.Context) (*EngineSettingsResponse, error)
	UpdateEngineOverrides(ctx context.Context, overrides EngineOverrides) (*EngineSettingsResponse, error)
	// Reload re-reads the stored overrides and publishes the resulting engine settings.
	Reload(ctx context.Context) error
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
}

type SettingsServiceImpl struct {
	Repo     SettingsRepository
	holder   *config.SettingsHolder
	defaults config.EngineSettings
	schedule string
	logger   *zap.Logger

	scheduler *cron.Cron
	mu        sync.Mutex
}

func NewSettingsService(repo SettingsRepository, cfg *config.Config, holder *config.SettingsHolder, logger *zap.Logger) SettingsService {
	return &SettingsServiceImpl{
		Repo:     repo,
		holder:   holder,
		defaults: cfg.Engine,
		schedule: cfg.SettingsReloadSchedule,
		logger:   logger,
	}
}

func (s *SettingsServiceImpl) overrides(ctx context.Context) (*EngineOverrides, error) {
	settings, err := s.Repo.GetByType(ctx, SettingsTypeEngine)
	if err != nil {
		return nil, err
	}
	if settings == nil || settings.Engine == nil {
		return &EngineOverrides{}, nil
	}
	return settings.Engine, nil
}

func (s *SettingsServiceImpl) GetEngineSettings(ctx context.Context) (*EngineSettingsResponse, error) {
	overrides, err := s.overrides(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to load engine settings: %v", err)
	}
	return &EngineSettingsResponse{Overrides: *overrides, Effective: s.holder.Load()}, nil
}

// UpdateEngineOverrides rejects overrides that do not validate, otherwise stores and applies them.
func (s *SettingsServiceImpl) UpdateEngineOverrides(ctx context.Context, overrides EngineOverrides) (*EngineSettingsResponse, error) {
	effective, err := overrides.Apply(s.defaults)
	if err != nil {
		return nil, apperrors.Validation("invalid engine settings: %v", err)
	}

	settings := &Settings{
		Type:      SettingsTypeEngine,
		Engine:    &overrides,
		UpdatedAt: time.Now(),
	}
	if err := s.Repo.Upsert(ctx, settings); err != nil {
		return nil, apperrors.Internal("failed to save engine settings: %v", err)
	}

	s.publish(effective)
	return &EngineSettingsResponse{Overrides: overrides, Effective: effective}, nil
}

func (s *SettingsServiceImpl) Reload(ctx context.Context) error {
	overrides, err := s.overrides(ctx)
	if err != nil {
		return fmt.Errorf("failed to load engine overrides: %w", err)
	}

	effective, err := overrides.Apply(s.defaults)
	if err != nil {
		s.logger.Warn("Ignoring invalid engine overrides", zap.Error(err))
		defaults := s.defaults
		effective = &defaults
	}
	s.publish(effective)
	return nil
}

func (s *SettingsServiceImpl) publish(effective *config.EngineSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder.Load().Same(effective) {
		return
	}
	s.holder.Store(effective)
	s.logger.Info("Engine settings changed",
		zap.Int("automaticIntervalBuckets", effective.AutomaticIntervalBuckets),
		zap.Int("maxBuckets", effective.MaxBuckets),
		zap.Int("combinedConcurrency", effective.CombinedConcurrency),
		zap.Duration("queryTimeout", effective.QueryTimeout),
		zap.Int("rawDefaultLimit", effective.RawDefaultLimit),
		zap.Int("rawMaxLimit", effective.RawMaxLimit),
		zap.String("timezone", effective.Timezone),
	)
}

func (s *SettingsServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.logger.Info("Initializing settings reload scheduler", zap.String("schedule", s.schedule))
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("Initial engine settings reload failed", zap.Error(err))
	}

	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("Engine settings reload failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid settings reload schedule %q: %w", s.schedule, err)
	}

	s.scheduler.Start()
	return nil
}

func (s *SettingsServiceImpl) StopScheduler() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}
