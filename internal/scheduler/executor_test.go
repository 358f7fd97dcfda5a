package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/content"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"github.com/postpilot-hq/postpilot/internal/governor"
	"github.com/postpilot-hq/postpilot/internal/scheduler/recurrence"
)

func testCalculator() *recurrence.Calculator {
	return recurrence.NewCalculator()
}

type recordedRun struct {
	ScheduleID uuid.UUID
	RanAt      time.Time
	NextRun    *time.Time
	PostID     *uuid.UUID
	Deactivate bool
}

type fakeScheduleStore struct {
	due  []models.Schedule
	runs []recordedRun
}

func (s *fakeScheduleStore) GetDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	if limit < len(s.due) {
		return s.due[:limit], nil
	}
	return s.due, nil
}

func (s *fakeScheduleStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	for i := range s.due {
		if s.due[i].ID == id {
			return &s.due[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (s *fakeScheduleStore) RecordRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRun *time.Time, postID *uuid.UUID, deactivate bool) error {
	s.runs = append(s.runs, recordedRun{ScheduleID: id, RanAt: ranAt, NextRun: nextRun, PostID: postID, Deactivate: deactivate})
	return nil
}

type fakePostStore struct {
	created   []*models.Post
	failed    map[uuid.UUID]string
	attached  map[uuid.UUID]string
	createErr error
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{
		failed:   make(map[uuid.UUID]string),
		attached: make(map[uuid.UUID]string),
	}
}

func (s *fakePostStore) Create(ctx context.Context, post *models.Post) error {
	if s.createErr != nil {
		return s.createErr
	}
	post.ID = uuid.New()
	s.created = append(s.created, post)
	return nil
}

func (s *fakePostStore) AttachRemoteID(ctx context.Context, id uuid.UUID, remoteID string) error {
	s.attached[id] = remoteID
	return nil
}

func (s *fakePostStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.failed[id] = errMsg
	return nil
}

type fakeActivityStore struct {
	entries []models.ActivityLog
}

func (s *fakeActivityStore) Append(ctx context.Context, entry *models.ActivityLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

type fakeGovernor struct {
	callAllowed   bool
	budgetAllowed bool
	spends        []int
	callChecks    []string
}

func (g *fakeGovernor) CheckCall(ctx context.Context, caller, endpoint, method string) (governor.Decision, error) {
	g.callChecks = append(g.callChecks, endpoint)
	return governor.Decision{Allowed: g.callAllowed, Limit: 100}, nil
}

func (g *fakeGovernor) CheckTokenBudget(ctx context.Context, userID uuid.UUID, estimatedTokens int) (bool, error) {
	return g.budgetAllowed, nil
}

func (g *fakeGovernor) RecordSpend(ctx context.Context, userID uuid.UUID, tokens int, model string) error {
	g.spends = append(g.spends, tokens)
	return nil
}

type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, topic string) (*content.Generation, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &content.Generation{Text: g.text, TokensUsed: 42, Model: "gpt-4o-mini"}, nil
}

func (g *fakeGenerator) EstimateTokens(topic string) int { return 100 }

type fakePublisher struct {
	remoteID string
	err      error
	calls    int
}

func (p *fakePublisher) Publish(ctx context.Context, userID uuid.UUID, text string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.remoteID, nil
}

type fakeGate struct {
	open   bool
	reason string
}

func (g *fakeGate) Allows(ctx context.Context, emergency bool) (bool, string) {
	if g.open || emergency {
		return true, ""
	}
	return false, g.reason
}

type executorFixture struct {
	executor  *Executor
	schedules *fakeScheduleStore
	posts     *fakePostStore
	activity  *fakeActivityStore
	governor  *fakeGovernor
	generator *fakeGenerator
	publisher *fakePublisher
	gate      *fakeGate
}

func newExecutorFixture() *executorFixture {
	f := &executorFixture{
		schedules: &fakeScheduleStore{},
		posts:     newFakePostStore(),
		activity:  &fakeActivityStore{},
		governor:  &fakeGovernor{callAllowed: true, budgetAllowed: true},
		generator: &fakeGenerator{text: "fresh generated copy"},
		publisher: &fakePublisher{remoteID: "remote-123"},
		gate:      &fakeGate{open: true},
	}
	f.executor = NewExecutor(f.schedules, f.posts, f.activity, f.governor, f.generator, f.publisher, f.gate, testCalculator())
	f.executor.Now = func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func dailySchedule() *models.Schedule {
	next := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return &models.Schedule{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Name:         "morning post",
		Topic:        "go concurrency",
		GenerateText: true,
		Time:         time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Frequency:    models.FrequencyDaily,
		IsActive:     true,
		NextRunAt:    &next,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	f := newExecutorFixture()
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if !result.Success {
		t.Fatalf("result not successful: %s", result.Message)
	}
	if result.RemoteID == nil || *result.RemoteID != "remote-123" {
		t.Error("remote ID not propagated")
	}
	if len(f.posts.created) != 1 {
		t.Fatalf("posts created = %d, want 1", len(f.posts.created))
	}
	if f.posts.created[0].Content != "fresh generated copy" {
		t.Errorf("post content = %q", f.posts.created[0].Content)
	}
	if len(f.governor.spends) != 1 || f.governor.spends[0] != 42 {
		t.Errorf("spends = %v, want one of 42", f.governor.spends)
	}

	if len(f.schedules.runs) != 1 {
		t.Fatalf("runs recorded = %d, want 1", len(f.schedules.runs))
	}
	run := f.schedules.runs[0]
	if run.Deactivate {
		t.Error("recurring schedule deactivated")
	}
	if run.NextRun == nil {
		t.Fatal("next run not set")
	}
	want := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)
	if !run.NextRun.Equal(want) {
		t.Errorf("next run = %v, want %v", run.NextRun, want)
	}

	if len(f.activity.entries) != 1 || !f.activity.entries[0].Success {
		t.Errorf("outcome log = %+v", f.activity.entries)
	}
}

func TestExecuteOnceDeactivates(t *testing.T) {
	f := newExecutorFixture()
	schedule := dailySchedule()
	schedule.Frequency = models.FrequencyOnce

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if !result.Success {
		t.Fatalf("result not successful: %s", result.Message)
	}
	run := f.schedules.runs[0]
	if !run.Deactivate {
		t.Error("one-shot schedule not deactivated")
	}
	if run.NextRun != nil {
		t.Errorf("one-shot schedule got a next run: %v", run.NextRun)
	}
}

func TestExecuteBudgetDenialFallsBackToTemplate(t *testing.T) {
	f := newExecutorFixture()
	f.governor.budgetAllowed = false
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	// Denied generation degrades to a template; the post still goes out.
	if !result.Success {
		t.Fatalf("result not successful: %s", result.Message)
	}
	if got, want := f.posts.created[0].Content, content.Fallback(schedule.Topic); got != want {
		t.Errorf("post content = %q, want template %q", got, want)
	}
	if len(f.governor.spends) != 0 {
		t.Errorf("spend recorded without generation: %v", f.governor.spends)
	}
}

func TestExecuteGenerationErrorFallsBackToTemplate(t *testing.T) {
	f := newExecutorFixture()
	f.generator.err = errors.New("upstream 500")
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if !result.Success {
		t.Fatalf("result not successful: %s", result.Message)
	}
	if got, want := f.posts.created[0].Content, content.Fallback(schedule.Topic); got != want {
		t.Errorf("post content = %q, want template %q", got, want)
	}
}

func TestExecuteGenerateTextDisabledUsesTemplate(t *testing.T) {
	f := newExecutorFixture()
	schedule := dailySchedule()
	schedule.GenerateText = false

	f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if got, want := f.posts.created[0].Content, content.Fallback(schedule.Topic); got != want {
		t.Errorf("post content = %q, want template %q", got, want)
	}
	if len(f.governor.spends) != 0 {
		t.Error("spend recorded for a template post")
	}
}

func TestExecutePublishFailureStillReschedules(t *testing.T) {
	f := newExecutorFixture()
	f.publisher.err = errors.New("platform down")
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if result.Success {
		t.Fatal("result successful despite publish failure")
	}
	if result.PostID == nil {
		t.Fatal("post not created")
	}
	if _, ok := f.posts.failed[*result.PostID]; !ok {
		t.Error("post not marked failed")
	}

	// The reschedule step runs regardless of publish outcome.
	if len(f.schedules.runs) != 1 {
		t.Fatalf("runs recorded = %d, want 1", len(f.schedules.runs))
	}
	if f.schedules.runs[0].NextRun == nil {
		t.Error("failed run did not advance the next run")
	}
	if len(f.activity.entries) != 1 || f.activity.entries[0].Success {
		t.Errorf("outcome log = %+v", f.activity.entries)
	}
}

func TestExecuteRateLimitDenialFailsPublish(t *testing.T) {
	f := newExecutorFixture()
	f.governor.callAllowed = false
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if result.Success {
		t.Fatal("result successful despite rate limit denial")
	}
	if f.publisher.calls != 0 {
		t.Error("publisher called after denial")
	}
	if len(f.schedules.runs) != 1 {
		t.Error("reschedule skipped")
	}
}

func TestExecuteMaintenanceGate(t *testing.T) {
	f := newExecutorFixture()
	f.gate.open = false
	f.gate.reason = "maintenance mode enabled"
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if result.Success {
		t.Fatal("result successful despite maintenance mode")
	}
	if f.publisher.calls != 0 {
		t.Error("publisher called during maintenance")
	}
	// Generation is gated too, so the persisted post carries the template.
	if got, want := f.posts.created[0].Content, content.Fallback(schedule.Topic); got != want {
		t.Errorf("post content = %q, want template %q", got, want)
	}
	if len(f.schedules.runs) != 1 {
		t.Error("reschedule skipped during maintenance")
	}
}

func TestExecuteEmergencyBypassesMaintenance(t *testing.T) {
	f := newExecutorFixture()
	f.gate.open = false
	f.gate.reason = "maintenance mode enabled"
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{Emergency: true})

	if !result.Success {
		t.Fatalf("emergency run refused: %s", result.Message)
	}
	if f.publisher.calls != 1 {
		t.Errorf("publisher calls = %d, want 1", f.publisher.calls)
	}
}

func TestExecuteBrokenCronDeactivates(t *testing.T) {
	f := newExecutorFixture()
	schedule := dailySchedule()
	schedule.Frequency = models.FrequencyCron
	schedule.CronExpression = "not a cron"

	f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	run := f.schedules.runs[0]
	if !run.Deactivate {
		t.Error("schedule with unparseable recurrence left active")
	}
	if run.NextRun != nil {
		t.Errorf("next run set for unparseable recurrence: %v", run.NextRun)
	}
}

func TestExecutePostCreateFailureStillReschedules(t *testing.T) {
	f := newExecutorFixture()
	f.posts.createErr = errors.New("db down")
	schedule := dailySchedule()

	result := f.executor.Execute(context.Background(), schedule, ExecuteOptions{})

	if result.Success {
		t.Fatal("result successful despite persistence failure")
	}
	if f.publisher.calls != 0 {
		t.Error("publish attempted without a persisted post")
	}
	if len(f.schedules.runs) != 1 {
		t.Error("reschedule skipped")
	}
}
