package metrics

import (
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"weapondetection/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
)

const namespace = "weapondetection"

// Metrics is the service's Prometheus registry and collectors.
type Metrics struct {
	registry *prometheus.Registry

	frames             prometheus.Counter
	predictionFailures prometheus.Counter
	predictionLatency  prometheus.Histogram
	detections         *prometheus.CounterVec
	historyEntries     prometheus.Counter
	running            prometheus.Gauge
	viewers            prometheus.Gauge
	memUsage           prometheus.Gauge
	cpuUsage           prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Total number of frames run through the predictor",
		}),
		predictionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Total number of predictions that failed and yielded no detections",
		}),
		predictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent in a single prediction",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detections accepted by the dashboard, by class",
		}, []string{"class"}),
		historyEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_entries_total",
			Help:      "Total number of detections that entered the history",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detection_running",
			Help:      "1 when detection is running, 0 when stopped",
		}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_connected",
			Help:      "Number of connected dashboard viewers",
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_megabytes",
			Help:      "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_usage_percent",
			Help:      "CPU usage in percent",
		}),
	}

	m.registry.MustRegister(
		m.frames, m.predictionFailures, m.predictionLatency, m.detections,
		m.historyEntries, m.running, m.viewers, m.memUsage, m.cpuUsage,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePrediction records the duration and outcome of one prediction.
func (m *Metrics) ObservePrediction(elapsed time.Duration, err error) {
	m.predictionLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.predictionFailures.Inc()
	}
}

// ObserveFrame counts a frame handed to the predictor by the feed.
func (m *Metrics) ObserveFrame() {
	m.frames.Inc()
}

// ObserveDetections counts an accepted batch and the entries it added to the history.
func (m *Metrics) ObserveDetections(batch []model.Detection, historyAdded int) {
	for _, d := range batch {
		m.detections.WithLabelValues(d.Class).Inc()
	}
	m.historyEntries.Add(float64(historyAdded))
}

func (m *Metrics) SetRunning(running bool) {
	if running {
		m.running.Set(1)
		return
	}
	m.running.Set(0)
}

func (m *Metrics) SetViewers(n int) {
	m.viewers.Set(float64(n))
}

// RunProcessMonitor samples the process memory and CPU usage every interval until ctx ends.
func (m *Metrics) RunProcessMonitor(ctx context.Context, interval time.Duration) error {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sampleProcess(ctx, proc)
		}
	}
}

func (m *Metrics) sampleProcess(ctx context.Context, proc *process.Process) {
	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := proc.CPUPercentWithContext(ctx); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}
