package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// atomicFloat64 stores float64 bits for lock-free updates.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }

func (a *atomicFloat64) Store(v float64) { a.bits.Store(math.Float64bits(v)) }

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		if a.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

// MetricType represents the type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the interface implemented by all metric types.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Collect() []Sample
}

// Sample represents a single metric sample with labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// family holds one value per distinct label combination.
type family[V any] struct {
	name       string
	help       string
	labelNames []string
	newValue   func() *V

	mu     sync.RWMutex
	values map[string]*V
	labels map[string]map[string]string
}

func newFamily[V any](name, help string, labelNames []string, newValue func() *V) *family[V] {
	return &family[V]{
		name:       name,
		help:       help,
		labelNames: labelNames,
		newValue:   newValue,
		values:     make(map[string]*V),
		labels:     make(map[string]map[string]string),
	}
}

func (f *family[V]) Name() string { return f.name }
func (f *family[V]) Help() string { return f.help }

func (f *family[V]) get(kind string, values []string) (*V, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s %s expected %d labels, got %d", ErrLabelCountMismatch, kind, f.name, len(f.labelNames), len(values))
	}
	key := strings.Join(values, "\x00")

	f.mu.RLock()
	v, ok := f.values[key]
	f.mu.RUnlock()
	if ok {
		return v, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok = f.values[key]; ok {
		return v, nil
	}
	labels := make(map[string]string, len(f.labelNames))
	for i, name := range f.labelNames {
		labels[name] = values[i]
	}
	v = f.newValue()
	f.values[key] = v
	f.labels[key] = labels
	return v, nil
}

func (f *family[V]) each(fn func(labels map[string]string, v *V)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fn(f.labels[k], f.values[k])
	}
}

// Counter is a monotonically increasing metric.
type Counter struct {
	*family[atomicFloat64]
}

// Type returns the metric type.
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// CounterVec is a counter for one label combination.
type CounterVec struct{ v *atomicFloat64 }

// WithLabels returns the counter for the given label values.
func (c *Counter) WithLabels(values ...string) (*CounterVec, error) {
	v, err := c.get("counter", values)
	if err != nil {
		return nil, err
	}
	return &CounterVec{v: v}, nil
}

// Inc increments an unlabeled counter by 1.
func (c *Counter) Inc() error { return c.Add(1) }

// Add adds delta to an unlabeled counter.
func (c *Counter) Add(delta float64) error {
	vec, err := c.WithLabels()
	if err != nil {
		return err
	}
	return vec.Add(delta)
}

// Inc increments the counter by 1.
func (v *CounterVec) Inc() error { return v.Add(1) }

// Add adds delta, which must not be negative.
func (v *CounterVec) Add(delta float64) error {
	if delta < 0 {
		return ErrNegativeCounterValue
	}
	v.v.Add(delta)
	return nil
}

// Collect returns all metric samples.
func (c *Counter) Collect() []Sample {
	var out []Sample
	c.each(func(labels map[string]string, v *atomicFloat64) {
		out = append(out, Sample{Name: c.name, Labels: labels, Value: v.Load()})
	})
	return out
}

// Gauge is a metric that can arbitrarily go up and down.
type Gauge struct {
	*family[atomicFloat64]
}

// Type returns the metric type.
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// GaugeVec is a gauge for one label combination.
type GaugeVec struct{ v *atomicFloat64 }

// WithLabels returns the gauge for the given label values.
func (g *Gauge) WithLabels(values ...string) (*GaugeVec, error) {
	v, err := g.get("gauge", values)
	if err != nil {
		return nil, err
	}
	return &GaugeVec{v: v}, nil
}

// Set sets an unlabeled gauge.
func (g *Gauge) Set(value float64) error {
	vec, err := g.WithLabels()
	if err != nil {
		return err
	}
	vec.Set(value)
	return nil
}

// Add adds delta to an unlabeled gauge.
func (g *Gauge) Add(delta float64) error {
	vec, err := g.WithLabels()
	if err != nil {
		return err
	}
	vec.Add(delta)
	return nil
}

// Set sets the gauge.
func (v *GaugeVec) Set(value float64) { v.v.Store(value) }

// Inc increments the gauge by 1.
func (v *GaugeVec) Inc() { v.v.Add(1) }

// Dec decrements the gauge by 1.
func (v *GaugeVec) Dec() { v.v.Add(-1) }

// Add adds delta to the gauge.
func (v *GaugeVec) Add(delta float64) { v.v.Add(delta) }

// Collect returns all metric samples.
func (g *Gauge) Collect() []Sample {
	var out []Sample
	g.each(func(labels map[string]string, v *atomicFloat64) {
		out = append(out, Sample{Name: g.name, Labels: labels, Value: v.Load()})
	})
	return out
}

type histogramValue struct {
	counts []atomic.Uint64
	sum    atomicFloat64
	count  atomic.Uint64
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	*family[histogramValue]
	buckets []float64
}

// Type returns the metric type.
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// HistogramVec is a histogram for one label combination.
type HistogramVec struct {
	h *Histogram
	v *histogramValue
}

// WithLabels returns the histogram for the given label values.
func (h *Histogram) WithLabels(values ...string) (*HistogramVec, error) {
	v, err := h.get("histogram", values)
	if err != nil {
		return nil, err
	}
	return &HistogramVec{h: h, v: v}, nil
}

// Observe records a value in an unlabeled histogram.
func (h *Histogram) Observe(value float64) error {
	vec, err := h.WithLabels()
	if err != nil {
		return err
	}
	vec.Observe(value)
	return nil
}

// Observe records a value.
func (v *HistogramVec) Observe(value float64) {
	for i, bound := range v.h.buckets {
		if value <= bound {
			v.v.counts[i].Add(1)
			break
		}
	}
	v.v.sum.Add(value)
	v.v.count.Add(1)
}

// Collect returns cumulative bucket samples plus _sum and _count.
func (h *Histogram) Collect() []Sample {
	var out []Sample
	h.each(func(labels map[string]string, v *histogramValue) {
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += v.counts[i].Load()
			bl := make(map[string]string, len(labels)+1)
			for k, val := range labels {
				bl[k] = val
			}
			bl["le"] = formatFloat(bound)
			out = append(out, Sample{Name: h.name + "_bucket", Labels: bl, Value: float64(cumulative)})
		}
		out = append(out,
			Sample{Name: h.name + "_sum", Labels: labels, Value: v.sum.Load()},
			Sample{Name: h.name + "_count", Labels: labels, Value: float64(v.count.Load())},
		)
	})
	return out
}

// Registry holds all registered metrics.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]struct{}
}

// NewRegistry creates a new metric registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a new counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{family: newFamily(name, help, labels, func() *atomicFloat64 { return &atomicFloat64{} })}
	r.register(c)
	return c
}

// NewGauge creates and registers a new gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{family: newFamily(name, help, labels, func() *atomicFloat64 { return &atomicFloat64{} })}
	r.register(g)
	return g
}

// NewHistogram creates and registers a new histogram. A +Inf bucket is
// always appended.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{buckets: sorted}
	h.family = newFamily(name, help, labels, func() *histogramValue {
		return &histogramValue{counts: make([]atomic.Uint64, len(sorted))}
	})
	r.register(h)
	return h
}

// register panics on duplicate names, which would produce invalid output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, m.Name()))
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// Write writes every metric in Prometheus text format.
func (r *Registry) Write(w io.Writer) {
	r.mu.RLock()
	metrics := append([]Metric(nil), r.metrics...)
	r.mu.RUnlock()

	for _, m := range metrics {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", m.Name(), escape(m.Help(), false))
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", m.Name(), m.Type())
		for _, s := range samples {
			if len(s.Labels) == 0 {
				_, _ = fmt.Fprintf(w, "%s %s\n", s.Name, formatFloat(s.Value))
			} else {
				_, _ = fmt.Fprintf(w, "%s{%s} %s\n", s.Name, formatLabels(s.Labels), formatFloat(s.Value))
			}
		}
	}
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.Write(w)
	})
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escape(labels[k], true) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

func escape(s string, quotes bool) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if quotes {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	return s
}

// DefaultBuckets are histogram buckets for request durations in seconds.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
