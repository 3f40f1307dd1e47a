// Package observability publica métricas do subsistema via Prometheus.
package observability

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

// PrometheusRecorder implementa ports.MetricsRecorder registrando coletores
// sob demanda. Cada nome de métrica deve sempre chegar com o mesmo conjunto
// de tags, que vira o conjunto de labels do coletor.
type PrometheusRecorder struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

var _ ports.MetricsRecorder = (*PrometheusRecorder)(nil)

func NewPrometheusRecorder(registerer prometheus.Registerer) *PrometheusRecorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PrometheusRecorder{
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (r *PrometheusRecorder) Add(name string, value float64, tags map[string]string) {
	r.counterFor(name, labelNames(tags)).With(prometheus.Labels(tags)).Add(value)
}

func (r *PrometheusRecorder) Observe(name string, value float64, tags map[string]string) {
	r.histogramFor(name, labelNames(tags)).With(prometheus.Labels(tags)).Observe(value)
}

func (r *PrometheusRecorder) counterFor(name string, labels []string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: sanitize(name) + "_total",
	}, labels)
	r.registerer.MustRegister(vec)
	r.counters[name] = vec
	return vec
}

func (r *PrometheusRecorder) histogramFor(name string, labels []string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    sanitize(name),
		Buckets: prometheus.DefBuckets,
	}, labels)
	r.registerer.MustRegister(vec)
	r.histograms[name] = vec
	return vec
}

func labelNames(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
