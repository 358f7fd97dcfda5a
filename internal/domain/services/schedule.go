package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
	"github.com/postpilot-hq/postpilot/internal/scheduler/recurrence"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrScheduleNotFound = errors.New("schedule not found")

type CreateScheduleInput struct {
	UserID         uuid.UUID `json:"user_id" validate:"required"`
	Name           string    `json:"name" validate:"required,min=1,max=100"`
	Topic          string    `json:"topic" validate:"max=255"`
	GenerateText   *bool     `json:"generate_text"`
	Time           time.Time `json:"time" validate:"required"`
	Frequency      string    `json:"frequency" validate:"required,frequency"`
	CronExpression string    `json:"cron_expression" validate:"omitempty,cron"`
}

type UpdateScheduleInput struct {
	Name           *string    `json:"name" validate:"omitempty,min=1,max=100"`
	Topic          *string    `json:"topic" validate:"omitempty,max=255"`
	GenerateText   *bool      `json:"generate_text"`
	Time           *time.Time `json:"time"`
	Frequency      *string    `json:"frequency" validate:"omitempty,frequency"`
	CronExpression *string    `json:"cron_expression" validate:"omitempty,cron"`
}

// ScheduleService owns schedule lifecycle: creation, edits, activation and
// run-state resets. Next-run times are computed here so that a schedule
// never sits in the store with a stale next_run_at after its timing fields
// change.
type ScheduleService struct {
	repo *repositories.ScheduleRepository
	calc *recurrence.Calculator
	now  func() time.Time
}

func NewScheduleService(repo *repositories.ScheduleRepository, calc *recurrence.Calculator) *ScheduleService {
	return &ScheduleService{
		repo: repo,
		calc: calc,
		now:  time.Now,
	}
}

func (s *ScheduleService) Create(ctx context.Context, input CreateScheduleInput) (*models.Schedule, error) {
	if err := s.calc.Validate(input.Frequency, input.CronExpression); err != nil {
		return nil, err
	}

	schedule := &models.Schedule{
		UserID:         input.UserID,
		Name:           input.Name,
		Topic:          input.Topic,
		GenerateText:   true,
		Time:           input.Time,
		Frequency:      input.Frequency,
		CronExpression: input.CronExpression,
		IsActive:       true,
	}
	if input.GenerateText != nil {
		schedule.GenerateText = *input.GenerateText
	}

	nextRun, err := s.calc.NextRun(schedule.Time, schedule.Frequency, schedule.CronExpression, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to compute next run: %w", err)
	}
	schedule.NextRunAt = &nextRun

	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	log.Info().
		Str("schedule_id", schedule.ID.String()).
		Str("user_id", schedule.UserID.String()).
		Str("frequency", schedule.Frequency).
		Time("next_run_at", nextRun).
		Msg("Schedule created")

	return schedule, nil
}

func (s *ScheduleService) Update(ctx context.Context, id uuid.UUID, input UpdateScheduleInput) (*models.Schedule, error) {
	schedule, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	timingChanged := false
	if input.Name != nil {
		schedule.Name = *input.Name
	}
	if input.Topic != nil {
		schedule.Topic = *input.Topic
	}
	if input.GenerateText != nil {
		schedule.GenerateText = *input.GenerateText
	}
	if input.Time != nil {
		schedule.Time = *input.Time
		timingChanged = true
	}
	if input.Frequency != nil {
		schedule.Frequency = *input.Frequency
		timingChanged = true
	}
	if input.CronExpression != nil {
		schedule.CronExpression = *input.CronExpression
		timingChanged = true
	}

	if err := s.calc.Validate(schedule.Frequency, schedule.CronExpression); err != nil {
		return nil, err
	}

	if timingChanged {
		nextRun, err := s.calc.NextRun(schedule.Time, schedule.Frequency, schedule.CronExpression, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to compute next run: %w", err)
		}
		schedule.NextRunAt = &nextRun
	}

	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}

	return schedule, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *ScheduleService) GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	return s.get(ctx, id)
}

func (s *ScheduleService) List(ctx context.Context, opts *repositories.ListOptions) ([]models.Schedule, int64, error) {
	return s.repo.FindAll(ctx, opts)
}

func (s *ScheduleService) ListByUser(ctx context.Context, userID uuid.UUID, opts *repositories.ListOptions) ([]models.Schedule, int64, error) {
	return s.repo.FindByUserID(ctx, userID, opts)
}

// Activate re-enables a schedule and recomputes its next run from now, so a
// schedule reactivated after a long pause does not fire immediately for
// every missed occurrence.
func (s *ScheduleService) Activate(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	schedule, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	nextRun, err := s.calc.NextRun(schedule.Time, schedule.Frequency, schedule.CronExpression, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to compute next run: %w", err)
	}

	schedule.IsActive = true
	schedule.NextRunAt = &nextRun
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to activate schedule: %w", err)
	}

	log.Info().
		Str("schedule_id", id.String()).
		Time("next_run_at", nextRun).
		Msg("Schedule activated")

	return schedule, nil
}

func (s *ScheduleService) Deactivate(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	schedule, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, fmt.Errorf("failed to deactivate schedule: %w", err)
	}
	schedule.IsActive = false

	log.Info().Str("schedule_id", id.String()).Msg("Schedule deactivated")

	return schedule, nil
}

// Reset clears all run bookkeeping and recomputes the next run, as if the
// schedule had just been created.
func (s *ScheduleService) Reset(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	schedule, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	nextRun, err := s.calc.NextRun(schedule.Time, schedule.Frequency, schedule.CronExpression, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to compute next run: %w", err)
	}

	if err := s.repo.ResetRunState(ctx, id, &nextRun); err != nil {
		return nil, fmt.Errorf("failed to reset schedule: %w", err)
	}

	schedule.RunCount = 0
	schedule.LastRunAt = nil
	schedule.NextRunAt = &nextRun

	log.Info().
		Str("schedule_id", id.String()).
		Time("next_run_at", nextRun).
		Msg("Schedule run state reset")

	return schedule, nil
}

func (s *ScheduleService) get(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	return schedule, nil
}
