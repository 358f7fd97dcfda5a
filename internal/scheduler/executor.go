package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/content"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"github.com/postpilot-hq/postpilot/internal/governor"
	"github.com/postpilot-hq/postpilot/internal/pkg/metrics"
	"github.com/postpilot-hq/postpilot/internal/scheduler/recurrence"
	"github.com/postpilot-hq/postpilot/internal/scheduler/store"
	"github.com/rs/zerolog/log"
)

// Endpoint names under which the pipeline's external calls are governed.
const (
	EndpointGenerate = "content.generate"
	EndpointPublish  = "publisher.publish"
)

// UsageGovernor is the slice of the governor the pipeline consults.
type UsageGovernor interface {
	CheckCall(ctx context.Context, caller, endpoint, method string) (governor.Decision, error)
	CheckTokenBudget(ctx context.Context, userID uuid.UUID, estimatedTokens int) (bool, error)
	RecordSpend(ctx context.Context, userID uuid.UUID, tokens int, model string) error
}

// ContentGenerator produces post text for a topic.
type ContentGenerator interface {
	Generate(ctx context.Context, topic string) (*content.Generation, error)
	EstimateTokens(topic string) int
}

// PostPublisher pushes finished text to the external platform and returns the
// remote post identifier.
type PostPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, text string) (string, error)
}

// MaintenanceGate is consulted before any external-service call.
type MaintenanceGate interface {
	Allows(ctx context.Context, emergency bool) (allowed bool, reason string)
}

// ExecutionResult is the per-schedule outcome of one pipeline run.
type ExecutionResult struct {
	ScheduleID uuid.UUID  `json:"schedule_id"`
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	PostID     *uuid.UUID `json:"post_id,omitempty"`
	RemoteID   *string    `json:"remote_post_id,omitempty"`
	Err        error      `json:"-"`
}

// ExecuteOptions carries per-invocation flags. Emergency marks an
// emergency-access-exempt operator path that may bypass maintenance mode.
type ExecuteOptions struct {
	Emergency bool
}

// Executor runs the per-schedule pipeline: choose content, persist the post,
// publish, reschedule, log. Individual steps fail independently; the
// reschedule step runs exactly once per invocation no matter what, so a
// schedule can never wedge on the same due instant.
type Executor struct {
	schedules  store.ScheduleStore
	posts      store.PostStore
	activity   store.ActivityStore
	governor   UsageGovernor
	generator  ContentGenerator
	publisher  PostPublisher
	gate       MaintenanceGate
	calculator *recurrence.Calculator

	// Now is injectable for tests.
	Now func() time.Time
}

func NewExecutor(
	scheduleStore store.ScheduleStore,
	postStore store.PostStore,
	activityStore store.ActivityStore,
	gov UsageGovernor,
	generator ContentGenerator,
	pub PostPublisher,
	gate MaintenanceGate,
	calc *recurrence.Calculator,
) *Executor {
	return &Executor{
		schedules:  scheduleStore,
		posts:      postStore,
		activity:   activityStore,
		governor:   gov,
		generator:  generator,
		publisher:  pub,
		gate:       gate,
		calculator: calc,
		Now:        time.Now,
	}
}

func (e *Executor) Execute(ctx context.Context, schedule *models.Schedule, opts ExecuteOptions) ExecutionResult {
	now := e.Now()
	result := ExecutionResult{ScheduleID: schedule.ID}
	caller := schedule.UserID.String()

	// Step 1: choose content.
	text := e.selectContent(ctx, schedule, opts)

	// Step 2: persist the post, optimistically published.
	publishedAt := now
	post := &models.Post{
		UserID:       schedule.UserID,
		ScheduleID:   &schedule.ID,
		Content:      text,
		Status:       models.PostStatusPublished,
		ScheduledFor: schedule.NextRunAt,
		PublishedAt:  &publishedAt,
	}
	if err := e.posts.Create(ctx, post); err != nil {
		result.Message = "failed to persist post: " + err.Error()
		result.Err = err
	} else {
		result.PostID = &post.ID

		// Step 3: publish, guarded by the maintenance gate and the
		// call-rate limit.
		if remoteID, err := e.publish(ctx, schedule, caller, text, opts); err != nil {
			if markErr := e.posts.MarkFailed(ctx, post.ID, err.Error()); markErr != nil {
				log.Error().Err(markErr).Str("post_id", post.ID.String()).Msg("Failed to mark post failed")
			}
			result.Message = "publish failed: " + err.Error()
			result.Err = err
		} else {
			if err := e.posts.AttachRemoteID(ctx, post.ID, remoteID); err != nil {
				log.Error().Err(err).Str("post_id", post.ID.String()).Msg("Failed to attach remote post id")
			}
			result.RemoteID = &remoteID
			result.Success = true
			result.Message = "published"
		}
	}

	// Step 4: advance the schedule's bookkeeping. Always runs, exactly once.
	e.reschedule(ctx, schedule, now, result.PostID)

	// Step 5: outcome log entry.
	e.logOutcome(ctx, schedule, &result, now)

	if result.Success {
		metrics.ExecutionsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.ExecutionsTotal.WithLabelValues("failed").Inc()
	}

	return result
}

// selectContent returns the text for the post: generated when the schedule
// asks for it and the budget and maintenance gate allow, a static template
// otherwise. Content selection never fails the pipeline.
func (e *Executor) selectContent(ctx context.Context, schedule *models.Schedule, opts ExecuteOptions) string {
	if !schedule.GenerateText {
		return content.Fallback(schedule.Topic)
	}

	if allowed, reason := e.gate.Allows(ctx, opts.Emergency); !allowed {
		log.Info().
			Str("schedule_id", schedule.ID.String()).
			Str("reason", reason).
			Msg("Generation refused, using template")
		return content.Fallback(schedule.Topic)
	}

	estimate := e.generator.EstimateTokens(schedule.Topic)
	allowed, err := e.governor.CheckTokenBudget(ctx, schedule.UserID, estimate)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Token budget check failed, using template")
		return content.Fallback(schedule.Topic)
	}
	if !allowed {
		log.Info().
			Str("schedule_id", schedule.ID.String()).
			Str("user_id", schedule.UserID.String()).
			Msg("Token budget exhausted, using template")
		return content.Fallback(schedule.Topic)
	}

	gen, err := e.generator.Generate(ctx, schedule.Topic)
	if err != nil {
		log.Warn().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Generation failed, using template")
		return content.Fallback(schedule.Topic)
	}

	if err := e.governor.RecordSpend(ctx, schedule.UserID, gen.TokensUsed, gen.Model); err != nil {
		log.Error().Err(err).Str("user_id", schedule.UserID.String()).Msg("Failed to record token spend")
	}

	return gen.Text
}

func (e *Executor) publish(ctx context.Context, schedule *models.Schedule, caller, text string, opts ExecuteOptions) (string, error) {
	if allowed, reason := e.gate.Allows(ctx, opts.Emergency); !allowed {
		return "", fmt.Errorf("publish refused: %s", reason)
	}

	decision, err := e.governor.CheckCall(ctx, caller, EndpointPublish, "POST")
	if err != nil {
		return "", fmt.Errorf("rate limit check failed: %w", err)
	}
	if !decision.Allowed {
		return "", fmt.Errorf("rate limit exceeded for %s (resets at %s)", EndpointPublish, decision.ResetAt.Format(time.RFC3339))
	}

	return e.publisher.Publish(ctx, schedule.UserID, text)
}

// reschedule sets lastRun, bumps runCount and computes the next run. A
// one-shot schedule is deactivated instead, with next_run_at cleared.
func (e *Executor) reschedule(ctx context.Context, schedule *models.Schedule, ranAt time.Time, postID *uuid.UUID) {
	var nextRun *time.Time
	deactivate := false

	if schedule.Frequency == models.FrequencyOnce {
		deactivate = true
	} else {
		next, err := e.calculator.NextRun(schedule.Time, schedule.Frequency, schedule.CronExpression, ranAt)
		if err != nil {
			// An unparseable recurrence cannot produce future runs; retire
			// the schedule rather than re-selecting it every sweep.
			log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Next-run calculation failed, deactivating schedule")
			deactivate = true
		} else {
			nextRun = &next
		}
	}

	if err := e.schedules.RecordRun(ctx, schedule.ID, ranAt, nextRun, postID, deactivate); err != nil {
		log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Failed to record run")
	}
}

func (e *Executor) logOutcome(ctx context.Context, schedule *models.Schedule, result *ExecutionResult, at time.Time) {
	uid := schedule.UserID
	sid := schedule.ID
	entry := &models.ActivityLog{
		UserID:     &uid,
		ScheduleID: &sid,
		PostID:     result.PostID,
		Action:     models.ActivityScheduleRun,
		Message:    result.Message,
		Success:    result.Success,
		CreatedAt:  at,
	}
	if err := e.activity.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Failed to write outcome log")
	}
}
