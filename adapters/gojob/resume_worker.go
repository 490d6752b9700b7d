package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-certledger/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultResumeRetryDelay = 30 * time.Second
	defaultResumeIdleDelay  = time.Second
)

// SagaResumer is the slice of core.Service the resume worker drives.
type SagaResumer interface {
	ResumeSaga(ctx context.Context, id string) (core.Saga, error)
}

// ResumeWorker drains saga resume jobs. Transient failures are requeued under
// the retry policy; failures a retry cannot fix are dead-lettered.
type ResumeWorker struct {
	dequeuer   core.JobDequeuer
	resumer    SagaResumer
	policy     RetryPolicy
	hook       core.JobWorkerHook
	retryDelay time.Duration
	idleDelay  time.Duration
	logger     glog.Logger

	mu       sync.Mutex
	attempts map[string]int
}

type ResumeWorkerOption func(*ResumeWorker)

func WithRetryPolicy(policy RetryPolicy) ResumeWorkerOption {
	return func(w *ResumeWorker) {
		w.policy = policy
	}
}

func WithWorkerHook(hook core.JobWorkerHook) ResumeWorkerOption {
	return func(w *ResumeWorker) {
		w.hook = hook
	}
}

func WithRetryDelay(delay time.Duration) ResumeWorkerOption {
	return func(w *ResumeWorker) {
		if delay >= 0 {
			w.retryDelay = delay
		}
	}
}

func WithIdleDelay(delay time.Duration) ResumeWorkerOption {
	return func(w *ResumeWorker) {
		if delay > 0 {
			w.idleDelay = delay
		}
	}
}

func WithWorkerLogger(logger glog.Logger) ResumeWorkerOption {
	return func(w *ResumeWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewResumeWorker(dequeuer core.JobDequeuer, resumer SagaResumer, opts ...ResumeWorkerOption) (*ResumeWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if resumer == nil {
		return nil, fmt.Errorf("gojob: saga resumer is required")
	}
	_, logger := glog.Resolve("certledger.gojob", nil, nil)
	w := &ResumeWorker{
		dequeuer:   dequeuer,
		resumer:    resumer,
		policy:     RetryPolicy{MaxAttempts: 5, MaxDelay: 10 * time.Minute, DeadLetterOnMax: true},
		retryDelay: defaultResumeRetryDelay,
		idleDelay:  defaultResumeIdleDelay,
		logger:     glog.Ensure(logger),
		attempts:   map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run processes deliveries until ctx is done. Dequeue errors back off for the
// idle delay.
func (w *ResumeWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Debug("resume worker idle", "error", err.Error())
			timer := time.NewTimer(w.idleDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// ProcessNext dequeues and handles a single delivery.
func (w *ResumeWorker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return fmt.Errorf("gojob: no delivery available")
	}
	return w.Handle(ctx, delivery)
}

// Handle resumes the saga named by delivery and settles it with ack or nack.
func (w *ResumeWorker) Handle(ctx context.Context, delivery core.JobDelivery) error {
	msg := delivery.Message()
	sagaID, err := SagaID(msg)
	if err != nil {
		w.logger.Warn("dropping unusable resume job", "error", err.Error())
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
	}

	key := attemptKey(msg, sagaID)
	attempt := w.nextAttempt(key)
	startedAt := time.Now().UTC()
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	w.emit(ctx, "start", event)

	saga, err := w.resumer.ResumeSaga(ctx, sagaID)
	event.Duration = time.Since(startedAt)
	if err == nil {
		w.clearAttempts(key)
		w.emit(ctx, "success", event)
		w.logger.Info("saga resumed", "saga_id", sagaID, "status", string(saga.Status), "attempt", attempt)
		return delivery.Ack(ctx)
	}

	event.Err = err
	opts := core.JobNackOptions{Reason: err.Error()}
	if retryable(err) {
		opts.Requeue = true
		opts.Delay = w.retryDelay
	} else {
		opts.DeadLetter = true
	}
	opts = w.policy.NormalizeAttempt(opts, attempt)
	event.Delay = opts.Delay
	if opts.Requeue {
		w.emit(ctx, "retry", event)
	} else {
		w.clearAttempts(key)
		w.emit(ctx, "failure", event)
	}
	w.logger.Warn("saga resume failed",
		"saga_id", sagaID,
		"attempt", attempt,
		"requeue", opts.Requeue,
		"dead_letter", opts.DeadLetter,
		"error", err.Error(),
	)
	return delivery.Nack(ctx, opts)
}

// retryable separates chain or store hiccups from outcomes a retry cannot
// change.
func retryable(err error) bool {
	switch {
	case core.IsNotFound(err),
		core.HasTextCode(err, core.ErrorValidation),
		core.HasTextCode(err, core.ErrorForbidden),
		core.HasTextCode(err, core.ErrorConflict),
		core.HasTextCode(err, core.ErrorReferralIneligible):
		return false
	default:
		return true
	}
}

func attemptKey(msg *core.JobExecutionMessage, sagaID string) string {
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return sagaID
}

func (w *ResumeWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *ResumeWorker) clearAttempts(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *ResumeWorker) emit(ctx context.Context, kind string, event core.JobWorkerEvent) {
	if w.hook == nil {
		return
	}
	switch kind {
	case "start":
		w.hook.OnStart(ctx, event)
	case "success":
		w.hook.OnSuccess(ctx, event)
	case "retry":
		w.hook.OnRetry(ctx, event)
	case "failure":
		w.hook.OnFailure(ctx, event)
	}
}
