package gojob

import (
	"context"

	"github.com/goliatone/go-certledger/core"
)

const (
	metricResumeJobs        = "certledger.resume_job.total"
	metricResumeJobDuration = "certledger.resume_job.duration_ms"
)

// MetricsHook counts resume job outcomes on a core.MetricsRecorder. The
// status tag is one of started, success, retry, or failure.
type MetricsHook struct {
	recorder core.MetricsRecorder
}

func NewMetricsHook(recorder core.MetricsRecorder) *MetricsHook {
	if recorder == nil {
		recorder = core.NopMetricsRecorder{}
	}
	return &MetricsHook{recorder: recorder}
}

func (h *MetricsHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "started", event)
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "success", event)
	h.observe(ctx, "success", event)
}

func (h *MetricsHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "failure", event)
	h.observe(ctx, "failure", event)
}

func (h *MetricsHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "retry", event)
	h.observe(ctx, "retry", event)
}

func (h *MetricsHook) count(ctx context.Context, status string, event core.JobWorkerEvent) {
	h.recorder.IncCounter(ctx, metricResumeJobs, 1, h.tags(status, event))
}

func (h *MetricsHook) observe(ctx context.Context, status string, event core.JobWorkerEvent) {
	h.recorder.ObserveHistogram(ctx, metricResumeJobDuration, float64(event.Duration.Milliseconds()), h.tags(status, event))
}

func (h *MetricsHook) tags(status string, event core.JobWorkerEvent) map[string]string {
	tags := map[string]string{"operation": "resume_job", "status": status}
	if event.Message != nil {
		tags["kind"] = event.Message.JobID
	}
	return tags
}

var _ core.JobWorkerHook = (*MetricsHook)(nil)
