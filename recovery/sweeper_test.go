package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-certledger/core"
)

var sweepNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSweeper_SchedulesStalledSagas(t *testing.T) {
	store := core.NewMemorySagaStore()
	seedSaga(t, store, "saga_stale", core.SagaRunning, sweepNow.Add(-time.Hour))
	seedSaga(t, store, "saga_pending", core.SagaPendingConfirmation, sweepNow.Add(-30*time.Minute))
	seedSaga(t, store, "saga_fresh", core.SagaRunning, sweepNow.Add(-time.Minute))
	seedSaga(t, store, "saga_done", core.SagaCompleted, sweepNow.Add(-time.Hour))
	seedSaga(t, store, "saga_failed", core.SagaFailed, sweepNow.Add(-time.Hour))

	source := &recordingSource{store: store}
	sweeper := NewSweeper(source, core.RecoveryConfig{StaleAfter: 10 * time.Minute, BatchSize: 10}, ModeSchedule)
	sweeper.Now = func() time.Time { return sweepNow }

	report, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep once: %v", err)
	}
	if report.Found != 2 || report.Scheduled != 2 || report.Resumed != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(source.scheduled) != 2 || source.scheduled[0] != "saga_stale" || source.scheduled[1] != "saga_pending" {
		t.Fatalf("expected oldest stalled sagas scheduled first, got %v", source.scheduled)
	}
	if len(source.resumed) != 0 {
		t.Fatalf("expected no inline resumes, got %v", source.resumed)
	}
	if !source.cutoff.Equal(sweepNow.Add(-10 * time.Minute)) {
		t.Fatalf("unexpected cutoff %s", source.cutoff)
	}
}

func TestSweeper_InlineModeResumesAndReportsFailures(t *testing.T) {
	store := core.NewMemorySagaStore()
	seedSaga(t, store, "saga_ok", core.SagaRunning, sweepNow.Add(-2*time.Hour))
	seedSaga(t, store, "saga_bad", core.SagaRunning, sweepNow.Add(-time.Hour))

	source := &recordingSource{
		store:     store,
		resumeErr: map[string]error{"saga_bad": errors.New("rpc unavailable")},
	}
	sweeper := NewSweeper(source, core.RecoveryConfig{StaleAfter: time.Minute}, ModeInline)
	sweeper.Now = func() time.Time { return sweepNow }

	report, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep once: %v", err)
	}
	if report.Found != 2 || report.Resumed != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Errors["saga_bad"] == nil {
		t.Fatalf("expected saga_bad failure recorded")
	}
	if len(source.scheduled) != 0 {
		t.Fatalf("expected no scheduled jobs in inline mode, got %v", source.scheduled)
	}
}

func TestSweeper_BatchSizeLimitsSweep(t *testing.T) {
	store := core.NewMemorySagaStore()
	for i, id := range []string{"saga_a", "saga_b", "saga_c"} {
		seedSaga(t, store, id, core.SagaRunning, sweepNow.Add(-time.Duration(3-i)*time.Hour))
	}
	source := &recordingSource{store: store}
	sweeper := NewSweeper(source, core.RecoveryConfig{StaleAfter: time.Minute, BatchSize: 2}, ModeSchedule)
	sweeper.Now = func() time.Time { return sweepNow }

	report, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep once: %v", err)
	}
	if report.Found != 2 || source.limit != 2 {
		t.Fatalf("expected batch of two, got found=%d limit=%d", report.Found, source.limit)
	}
}

func TestSweeper_ListFailureAborts(t *testing.T) {
	source := &recordingSource{listErr: errors.New("db down")}
	sweeper := NewSweeper(source, core.RecoveryConfig{}, ModeSchedule)
	if _, err := sweeper.SweepOnce(context.Background()); err == nil {
		t.Fatalf("expected list failure")
	}
}

func TestSweeper_WithServiceSchedulesThroughEnqueuer(t *testing.T) {
	store := core.NewMemorySagaStore()
	seedSaga(t, store, "saga_1", core.SagaRunning, sweepNow.Add(-time.Hour))
	enqueuer := &capturingEnqueuer{}
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithSagaStore(store),
		core.WithCertificateStore(core.NewMemoryCertificateStore()),
		core.WithJobEnqueuer(enqueuer),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	sweeper := NewSweeper(svc, svc.Config().Recovery, ModeSchedule)
	sweeper.Now = func() time.Time { return sweepNow }

	report, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep once: %v", err)
	}
	if report.Scheduled != 1 {
		t.Fatalf("expected one scheduled saga, got %+v", report)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != core.SagaResumeJobID || msg.Parameters["saga_id"] != "saga_1" {
		t.Fatalf("unexpected job message: %+v", msg)
	}
}

func TestSweeper_RunStopsOnContextCancel(t *testing.T) {
	source := &recordingSource{store: core.NewMemorySagaStore()}
	sweeper := NewSweeper(source, core.RecoveryConfig{}, ModeSchedule)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := sweeper.Run(ctx, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if source.lists < 2 {
		t.Fatalf("expected repeated sweeps, got %d", source.lists)
	}
	if err := sweeper.Run(context.Background(), 0); err == nil {
		t.Fatalf("expected invalid interval error")
	}
}

func seedSaga(t *testing.T, store *core.MemorySagaStore, id string, status core.SagaStatus, updatedAt time.Time) {
	t.Helper()
	err := store.Save(context.Background(), core.Saga{
		ID:        id,
		Kind:      core.SagaKindIssue,
		Status:    status,
		Input:     core.SagaInput{Owner: "0x1111111111111111111111111111111111111111"},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		t.Fatalf("seed saga %s: %v", id, err)
	}
}

type recordingSource struct {
	store     *core.MemorySagaStore
	listErr   error
	resumeErr map[string]error

	cutoff    time.Time
	limit     int
	lists     int
	scheduled []string
	resumed   []string
}

func (s *recordingSource) ListStalledSagas(ctx context.Context, before time.Time, limit int) ([]core.Saga, error) {
	s.lists++
	s.cutoff = before
	s.limit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.store.ListOpen(ctx, before, limit)
}

func (s *recordingSource) ResumeSaga(_ context.Context, id string) (core.Saga, error) {
	s.resumed = append(s.resumed, id)
	if err := s.resumeErr[id]; err != nil {
		return core.Saga{ID: id}, err
	}
	return core.Saga{ID: id, Status: core.SagaCompleted}, nil
}

func (s *recordingSource) ScheduleResume(_ context.Context, id string) error {
	s.scheduled = append(s.scheduled, id)
	return nil
}

type capturingEnqueuer struct {
	messages []*core.JobExecutionMessage
}

func (e *capturingEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	e.messages = append(e.messages, msg)
	return nil
}
