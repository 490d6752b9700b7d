package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-certledger/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// JobIDSagaResume is the go-job id of saga resume jobs produced by
// core.Service.ScheduleResume.
const JobIDSagaResume = core.SagaResumeJobID

const sagaIDParameter = "saga_id"

// RetryPolicy bounds how often and how late a failed resume job comes back.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt caps the delay and turns a requeue into a dead letter (or
// a final drop) once attempt reaches MaxAttempts. A nack that neither
// requeues nor dead-letters is treated as a requeue.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	opts.Reason = strings.TrimSpace(opts.Reason)
	opts.Delay = max(opts.Delay, 0)
	if p.MaxDelay > 0 {
		opts.Delay = min(opts.Delay, p.MaxDelay)
	}
	if opts.DeadLetter {
		opts.Requeue = false
		return opts
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		opts.Requeue = false
		opts.DeadLetter = p.DeadLetterOnMax
		return opts
	}
	opts.Requeue = true
	return opts
}

// SagaID returns the saga a resume job targets.
func SagaID(msg *core.JobExecutionMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("gojob: job message is required")
	}
	if msg.JobID != JobIDSagaResume {
		return "", fmt.Errorf("gojob: unsupported job %q", msg.JobID)
	}
	id, _ := msg.Parameters[sagaIDParameter].(string)
	if id = strings.TrimSpace(id); id == "" {
		return "", fmt.Errorf("gojob: %s parameter is required", sagaIDParameter)
	}
	return id, nil
}

func toJobMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func fromJobMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// EnqueuerAdapter puts saga resume jobs on a go-job queue. Other job ids are
// refused so nothing the resume worker cannot handle reaches the queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if _, err := SagaID(msg); err != nil {
		return err
	}
	return a.enqueuer.Enqueue(ctx, toJobMessage(msg))
}

// DequeuerAdapter reads go-job deliveries as core deliveries. Nack options
// pass through untouched; the resume worker applies the retry policy.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, nil
	}
	return deliveryAdapter{delivery: delivery}, nil
}

type deliveryAdapter struct {
	delivery queue.Delivery
}

func (d deliveryAdapter) Message() *core.JobExecutionMessage {
	return fromJobMessage(d.delivery.Message())
}

func (d deliveryAdapter) Ack(ctx context.Context) error {
	return d.delivery.Ack(ctx)
}

func (d deliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.delivery.Nack(ctx, queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	})
}

func copyParameters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ core.JobDelivery = deliveryAdapter{}
)
