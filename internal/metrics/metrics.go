// Package metrics records one run's device choice and timings in a private
// Prometheus registry, optionally flushed to a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inferdemo"

// Recorder holds the run metrics. A nil *Recorder discards observations.
type Recorder struct {
	reg *prometheus.Registry

	deviceSelections *prometheus.CounterVec
	loadDuration     *prometheus.HistogramVec
	inferDuration    *prometheus.HistogramVec
	inferences       *prometheus.CounterVec
	outputs          prometheus.Gauge
}

// New returns a Recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		deviceSelections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "selections_total",
			Help:      "Device selections by preference and resulting kind",
		}, []string{"preference", "kind"}),
		loadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Time spent loading the model artifact",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"engine", "device"}),
		inferDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "duration_seconds",
			Help:      "Duration of forward passes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine", "device"}),
		inferences: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "total",
			Help:      "Forward passes by outcome",
		}, []string{"engine", "status"}),
		outputs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "outputs",
			Help:      "Number of tensors returned by the last forward pass",
		}),
	}
}

// DeviceSelected counts a resolved device.
func (r *Recorder) DeviceSelected(preference, kind string) {
	if r == nil {
		return
	}
	r.deviceSelections.WithLabelValues(preference, kind).Inc()
}

// ModelLoaded observes a successful load.
func (r *Recorder) ModelLoaded(engine, device string, d time.Duration) {
	if r == nil {
		return
	}
	r.loadDuration.WithLabelValues(engine, device).Observe(d.Seconds())
}

// Inference observes one forward pass. outputs is ignored when err is set.
func (r *Recorder) Inference(engine, device string, d time.Duration, outputs int, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		r.outputs.Set(float64(outputs))
	}
	r.inferDuration.WithLabelValues(engine, device).Observe(d.Seconds())
	r.inferences.WithLabelValues(engine, status).Inc()
}

// WriteTextfile writes the registry in text exposition format to path. The
// file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
