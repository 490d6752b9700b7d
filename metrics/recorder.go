// Package metrics exports certledger service metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-certledger/core"
	"github.com/prometheus/client_golang/prometheus"
)

// labelNames is the fixed label set of every certledger metric. Tags outside
// it are dropped; missing tags export as empty strings.
var labelNames = []string{"operation", "status", "saga_kind", "stage", "free", "kind"}

// DurationBuckets covers fast store reads up to multi-minute confirmations.
var DurationBuckets = []float64{5, 25, 100, 250, 1000, 5000, 15000, 60000, 180000}

// Recorder implements core.MetricsRecorder on a Prometheus registerer.
// Metrics are created lazily by name on first use.
type Recorder struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	errHandler func(name string, err error)
}

type Option func(*Recorder)

// WithRegistrationErrorHandler receives collectors that could not be
// registered. The recorder keeps working without exporting them.
func WithRegistrationErrorHandler(fn func(name string, err error)) Option {
	return func(r *Recorder) {
		r.errHandler = fn
	}
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	counter := r.counter(MetricName(name))
	if counter == nil {
		return
	}
	counter.With(labels(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram := r.histogram(MetricName(name))
	if histogram == nil {
		return
	}
	histogram.With(labels(tags)).Observe(value)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[name]; ok {
		return existing
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: fmt.Sprintf("certledger counter %s", name),
	}, labelNames)
	vec = register(r, name, vec)
	r.counters[name] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[name]; ok {
		return existing
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    fmt.Sprintf("certledger histogram %s", name),
		Buckets: DurationBuckets,
	}, labelNames)
	vec = register(r, name, vec)
	r.histograms[name] = vec
	return vec
}

func register[T prometheus.Collector](r *Recorder, name string, collector T) T {
	if err := r.registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		if r.errHandler != nil {
			r.errHandler(name, err)
		}
	}
	return collector
}

// MetricName maps a dotted core metric name to a Prometheus name:
// "certledger.issue.duration_ms" becomes "certledger_issue_duration_ms".
func MetricName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func labels(tags map[string]string) prometheus.Labels {
	out := make(prometheus.Labels, len(labelNames))
	for _, name := range labelNames {
		out[name] = strings.TrimSpace(tags[name])
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
