// Package monitor exposes pipeline metrics, process usage and a live report
// stream over HTTP.
package monitor

import (
	"math"
	"os"

	iface "EdgeLPR/interface"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// Metrics holds every collector on a private registry so tests and multiple
// pipelines never collide on the default one.
type Metrics struct {
	registry  *prometheus.Registry
	frames    prometheus.Counter
	plates    prometheus.Counter
	failures  *prometheus.CounterVec
	duration  prometheus.Histogram
	lastScore prometheus.Gauge
	memUsage  prometheus.Gauge
	cpuUsage  prometheus.Gauge
	proc      *process.Process
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lpr_frames_total",
			Help: "Total number of frames processed",
		}),
		plates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lpr_plates_total",
			Help: "Total number of frames with a decoded plate",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lpr_frame_failures_total",
			Help: "Frames degraded to no-plate by an adapter or geometry failure",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lpr_frame_duration_seconds",
			Help:    "Wall-clock processing time per frame",
			Buckets: []float64{.005, .01, .02, .033, .05, .075, .1, .15, .25, .5, 1},
		}),
		lastScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lpr_last_max_score",
			Help: "Highest detection score of the most recent frame",
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
	}
	m.registry.MustRegister(m.frames, m.plates, m.failures, m.duration, m.lastScore, m.memUsage, m.cpuUsage)
	for _, reason := range []string{iface.ReasonDetect, iface.ReasonGeometry, iface.ReasonRecognize, iface.ReasonVocab, iface.ReasonTimeout} {
		m.failures.WithLabelValues(reason)
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Observe(r iface.Report) {
	m.frames.Inc()
	if r.Found {
		m.plates.Inc()
	}
	if r.Failed() {
		m.failures.WithLabelValues(r.Reason).Inc()
	}
	m.duration.Observe(r.Duration.Seconds())
	m.lastScore.Set(float64(r.MaxScore))
}

// CheckProcessInfo samples RSS and CPU of this process.
func (m *Metrics) CheckProcessInfo() {
	if m.proc == nil {
		return
	}
	if memInfo, err := m.proc.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := m.proc.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}
