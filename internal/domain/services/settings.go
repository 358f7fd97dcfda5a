package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
	"github.com/postpilot-hq/postpilot/internal/pkg/config"
	"github.com/rs/zerolog/log"
)

var ErrUnknownSetting = errors.New("unknown setting key")

// SettingsService reads runtime-mutable options from the settings store.
// Missing or unparseable values fall back to the compiled-in defaults; a
// broken settings row is never fatal.
type SettingsService struct {
	repo *repositories.SettingRepository

	defaultSweepInterval time.Duration
	defaultRateLimit     int
	defaultTokenBudget   int
	defaultCooldown      time.Duration
}

func NewSettingsService(repo *repositories.SettingRepository, schedCfg config.SchedulerConfig, govCfg config.GovernorConfig) *SettingsService {
	return &SettingsService{
		repo:                 repo,
		defaultSweepInterval: schedCfg.SweepInterval,
		defaultRateLimit:     govCfg.RateLimitPerHour,
		defaultTokenBudget:   govCfg.DailyTokenBudget,
		defaultCooldown:      govCfg.NotifyCooldown,
	}
}

func (s *SettingsService) SweepInterval(ctx context.Context) time.Duration {
	if v, ok := s.intValue(ctx, models.SettingSweepInterval); ok {
		return time.Duration(v) * time.Second
	}
	return s.defaultSweepInterval
}

// RateLimit resolves the hourly call limit for an endpoint: a per-endpoint
// override wins over the global limit.
func (s *SettingsService) RateLimit(ctx context.Context, endpoint string) int {
	if v, ok := s.intValue(ctx, models.SettingEndpointLimitPrefix+endpoint); ok {
		return v
	}
	if v, ok := s.intValue(ctx, models.SettingRateLimitPerHour); ok {
		return v
	}
	return s.defaultRateLimit
}

func (s *SettingsService) DailyTokenBudget(ctx context.Context) int {
	if v, ok := s.intValue(ctx, models.SettingDailyTokenBudget); ok {
		return v
	}
	return s.defaultTokenBudget
}

func (s *SettingsService) NotifyCooldown(ctx context.Context) time.Duration {
	if v, ok := s.intValue(ctx, models.SettingNotifyCooldown); ok {
		return time.Duration(v) * time.Minute
	}
	return s.defaultCooldown
}

func (s *SettingsService) MaintenanceMode(ctx context.Context) (bool, *time.Time, *time.Time) {
	raw, err := s.repo.Get(ctx, models.SettingMaintenanceMode)
	if err != nil {
		return false, nil, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil || !enabled {
		return false, nil, nil
	}
	return true, s.timeValue(ctx, models.SettingMaintenanceStart), s.timeValue(ctx, models.SettingMaintenanceEnd)
}

func (s *SettingsService) All(ctx context.Context) ([]models.Setting, error) {
	return s.repo.All(ctx)
}

// Set validates the key and value before persisting. Only recognized keys
// are accepted.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	switch key {
	case models.SettingSweepInterval, models.SettingRateLimitPerHour,
		models.SettingDailyTokenBudget, models.SettingNotifyCooldown:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("setting %s requires an integer value: %w", key, err)
		}
	case models.SettingMaintenanceMode:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("setting %s requires a boolean value: %w", key, err)
		}
	case models.SettingMaintenanceStart, models.SettingMaintenanceEnd:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("setting %s requires an RFC3339 timestamp: %w", key, err)
		}
	default:
		if !strings.HasPrefix(key, models.SettingEndpointLimitPrefix) {
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("setting %s requires an integer value: %w", key, err)
		}
	}

	return s.repo.Set(ctx, key, value)
}

func (s *SettingsService) intValue(ctx context.Context, key string) (int, bool) {
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repositories.ErrSettingNotFound) {
			log.Error().Err(err).Str("key", key).Msg("Failed to read setting, using default")
		}
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Unparseable setting, using default")
		return 0, false
	}
	return v, true
}

func (s *SettingsService) timeValue(ctx context.Context, key string) *time.Time {
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Unparseable timestamp setting, ignoring")
		return nil
	}
	return &t
}
