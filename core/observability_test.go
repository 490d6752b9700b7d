package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: metricTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: metricTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func TestServiceObservability_IssueSuccess(t *testing.T) {
	h := newTestHarness(t, DefaultConfig())

	_, err := h.svc.Issue(context.Background(), IssueRequest{Owner: testOwner, Content: testContent("Jane Doe")})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if !hasCounter(h.metrics.counters, "certledger.issue.total", "success") {
		t.Fatalf("expected certledger.issue.total success counter")
	}
	if !hasHistogram(h.metrics.histograms, "certledger.issue.duration_ms", "success") {
		t.Fatalf("expected certledger.issue.duration_ms histogram")
	}
	if !hasLog(h.logger.snapshot(), "info", "issue succeeded", "issue") {
		t.Fatalf("expected issue succeeded structured log")
	}
}

func TestServiceObservability_IssueVersionFailure(t *testing.T) {
	h := newTestHarness(t, DefaultConfig())

	_, err := h.svc.IssueVersion(context.Background(), IssueVersionRequest{Owner: testOwner, Content: testContent("Jane Doe")})
	if err == nil {
		t.Fatalf("expected issue version error for missing certificate")
	}
	if !hasCounter(h.metrics.counters, "certledger.issue_version.total", "failure") {
		t.Fatalf("expected issue version failure counter")
	}
	if !hasLog(h.logger.snapshot(), "error", "issue_version failed", "issue_version") {
		t.Fatalf("expected issue version failure log")
	}
}

func TestServiceObservability_PendingConfirmationLogsWarning(t *testing.T) {
	h := newTestHarness(t, DefaultConfig())
	h.svc.observeOperation(
		context.Background(),
		time.Now().UTC().Add(-100*time.Millisecond),
		"admin_pause",
		&StageError{SagaID: "saga_1", Stage: StageLedgerCall, Err: NewConfirmationError("0xfeed", nil)},
		map[string]any{"saga_kind": string(SagaKindAdminCall)},
	)

	if !hasCounter(h.metrics.counters, "certledger.admin_pause.total", "pending") {
		t.Fatalf("expected pending status counter")
	}
	records := h.logger.snapshot()
	if len(records) == 0 {
		t.Fatalf("expected logs to be emitted")
	}
	last := records[len(records)-1]
	if last.level != "warn" || last.msg != "admin_pause awaiting confirmation" {
		t.Fatalf("expected warn awaiting confirmation log, got %s %q", last.level, last.msg)
	}
	if last.fields["tx_hash"] != "0xfeed" {
		t.Fatalf("expected tx_hash field, got %#v", last.fields["tx_hash"])
	}
	if last.fields["stage"] != string(StageLedgerCall) {
		t.Fatalf("expected stage field, got %#v", last.fields["stage"])
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
