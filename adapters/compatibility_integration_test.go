package adapters_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-certledger/adapters/gocommand"
	"github.com/goliatone/go-certledger/adapters/gojob"
	"github.com/goliatone/go-certledger/adapters/gologger"
	certcommand "github.com/goliatone/go-certledger/command"
	"github.com/goliatone/go-certledger/core"
	certquery "github.com/goliatone/go-certledger/query"
	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("certledger", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatQueue{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	if err := enqueueAdapter.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          gojob.JobIDSagaResume,
		ScriptPath:     gojob.JobIDSagaResume,
		Parameters:     map[string]any{"saga_id": "saga_1"},
		IdempotencyKey: "saga-resume:saga_1",
		DedupPolicy:    "drop",
	}); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.len() != 1 {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("certledger.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

// A saga resume scheduled through the command bus travels through the go-job
// queue and is settled by the resume worker against the real service.
func TestRuntimeCompatibility_ScheduledResumeFlowsThroughQueue(t *testing.T) {
	ctx := context.Background()
	jobQueue := &compatQueue{}
	sagas := core.NewMemorySagaStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := sagas.Save(ctx, core.Saga{
		ID:     "saga_1",
		Kind:   core.SagaKindIssue,
		Status: core.SagaCompleted,
		Input:  core.SagaInput{Owner: "0x1111111111111111111111111111111111111111"},
		Steps: []core.SagaStep{
			{Stage: core.StageValidate, Status: core.StepCommitted, UpdatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed saga: %v", err)
	}

	opts := append(gologger.CoreOptions(&compatProvider{logger: &compatLogger{}}, nil),
		core.WithSagaStore(sagas),
		core.WithCertificateStore(core.NewMemoryCertificateStore()),
		core.WithJobEnqueuer(gojob.NewEnqueuerAdapter(jobQueue)),
	)
	svc, err := core.NewService(core.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterCertificateHandlers(adapter, svc)
	if err != nil {
		t.Fatalf("register certificate handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	if err := gocommand.Dispatch(ctx, certcommand.ScheduleSagaResumeMessage{SagaID: "saga_1"}); err != nil {
		t.Fatalf("dispatch schedule resume: %v", err)
	}
	if jobQueue.len() != 1 {
		t.Fatalf("expected one queued resume job, got %d", jobQueue.len())
	}

	worker, err := gojob.NewResumeWorker(gojob.NewDequeuerAdapter(jobQueue), svc,
		gojob.WithRetryPolicy(gojob.RetryPolicy{MaxAttempts: 3, DeadLetterOnMax: true}),
		gojob.WithWorkerHook(gojob.NewMetricsHook(nil)),
	)
	if err != nil {
		t.Fatalf("new resume worker: %v", err)
	}
	if err := worker.ProcessNext(ctx); err != nil {
		t.Fatalf("process resume job: %v", err)
	}
	if jobQueue.acked != 1 || jobQueue.nacked != 0 {
		t.Fatalf("expected resume job acked, got acked=%d nacked=%d", jobQueue.acked, jobQueue.nacked)
	}

	saga, err := gocommand.Query[certquery.GetSagaMessage, core.Saga](ctx, certquery.GetSagaMessage{SagaID: "saga_1"})
	if err != nil {
		t.Fatalf("query saga: %v", err)
	}
	if saga.Status != core.SagaCompleted {
		t.Fatalf("expected completed saga, got %q", saga.Status)
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "certledger.compat.command" }

// compatQueue is an in-memory go-job queue good for one consumer.
type compatQueue struct {
	mu      sync.Mutex
	pending []*job.ExecutionMessage
	acked   int
	nacked  int
}

func (q *compatQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, msg)
	return nil
}

func (q *compatQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, fmt.Errorf("queue empty")
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return &compatDelivery{queue: q, msg: msg}, nil
}

func (q *compatQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

type compatDelivery struct {
	queue *compatQueue
	msg   *job.ExecutionMessage
}

func (d *compatDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *compatDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.acked++
	return nil
}

func (d *compatDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.nacked++
	if opts.Requeue {
		d.queue.pending = append(d.queue.pending, d.msg)
	}
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
