package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-certledger/core"
	glog "github.com/goliatone/go-logger/glog"
)

// SagaSource is the slice of core.Service the sweeper drives.
type SagaSource interface {
	ListStalledSagas(ctx context.Context, updatedBefore time.Time, limit int) ([]core.Saga, error)
	ResumeSaga(ctx context.Context, id string) (core.Saga, error)
	ScheduleResume(ctx context.Context, id string) error
}

type Mode string

const (
	// ModeSchedule hands each stalled saga to the job queue.
	ModeSchedule Mode = "schedule"
	// ModeInline resumes each stalled saga in the sweeping goroutine.
	ModeInline Mode = "inline"
)

type Report struct {
	Found     int
	Scheduled int
	Resumed   int
	Failed    int
	Errors    map[string]error
}

type Sweeper struct {
	Sagas      SagaSource
	Mode       Mode
	StaleAfter time.Duration
	BatchSize  int
	Logger     glog.Logger
	Now        func() time.Time
}

func NewSweeper(sagas SagaSource, cfg core.RecoveryConfig, mode Mode) *Sweeper {
	_, logger := glog.Resolve("certledger.recovery", nil, nil)
	if mode == "" {
		mode = ModeSchedule
	}
	return &Sweeper{
		Sagas:      sagas,
		Mode:       mode,
		StaleAfter: cfg.StaleAfter,
		BatchSize:  cfg.BatchSize,
		Logger:     glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SweepOnce picks up one batch of stalled sagas. Per-saga failures land in the
// report; only a failed listing aborts the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	if s == nil || s.Sagas == nil {
		return Report{}, fmt.Errorf("recovery: saga source is required")
	}
	cutoff := s.now()
	if s.StaleAfter > 0 {
		cutoff = cutoff.Add(-s.StaleAfter)
	}
	stalled, err := s.Sagas.ListStalledSagas(ctx, cutoff, s.BatchSize)
	if err != nil {
		return Report{}, err
	}

	report := Report{Found: len(stalled), Errors: map[string]error{}}
	for _, saga := range stalled {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.recover(ctx, saga); err != nil {
			report.Failed++
			report.Errors[saga.ID] = err
			s.logger().Warn("stalled saga recovery failed",
				"saga_id", saga.ID,
				"saga_kind", string(saga.Kind),
				"owner", saga.Input.Owner,
				"mode", string(s.Mode),
				"error", err.Error(),
			)
			continue
		}
		if s.Mode == ModeInline {
			report.Resumed++
		} else {
			report.Scheduled++
		}
	}
	if report.Found > 0 {
		s.logger().Info("stalled sagas swept",
			"found", report.Found,
			"scheduled", report.Scheduled,
			"resumed", report.Resumed,
			"failed", report.Failed,
		)
	}
	return report, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("recovery: sweep interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger().Error("stalled saga sweep failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) recover(ctx context.Context, saga core.Saga) error {
	if s.Mode == ModeInline {
		_, err := s.Sagas.ResumeSaga(ctx, saga.ID)
		return err
	}
	return s.Sagas.ScheduleResume(ctx, saga.ID)
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sweeper) logger() glog.Logger {
	return glog.Ensure(s.Logger)
}
