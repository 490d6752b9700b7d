package core

import (
	"context"
	"strings"
)

const metricPrefix = "certledger."

// Counters emitted outside observeOperation. Operation metrics are named
// certledger.<operation>.total and certledger.<operation>.duration_ms.
const (
	MetricAuthorizationDenied = metricPrefix + "authorization.denied.total"
	MetricMetadataOrphaned    = metricPrefix + "metadata.orphaned.total"
	MetricReferralAppended    = metricPrefix + "referral.appended.total"
	MetricSagaJournalFailures = metricPrefix + "saga.journal_failures.total"
)

func operationCounter(operation string) string {
	return metricPrefix + operation + ".total"
}

func operationHistogram(operation string) string {
	return metricPrefix + operation + ".duration_ms"
}

// NopMetricsRecorder discards every sample.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, metricTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, metricTags(tags))
}

// metricTags copies tags and drops blank values so recorders never see
// "<nil>" or whitespace labels.
func metricTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for key, value := range tags {
		if value = strings.TrimSpace(value); value != "" {
			out[key] = value
		}
	}
	return out
}

var _ MetricsRecorder = NopMetricsRecorder{}
