// Package metrics exposes prometheus collectors for the conversion service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the service's prometheus metrics.
type Collector struct {
	conversionsStarted   prometheus.Counter
	conversionsCompleted prometheus.Counter
	conversionsFailed    prometheus.Counter
	artifactsWritten     *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
}

// NewCollector registers the collectors on the default registry.
func NewCollector(namespace string) *Collector {
	return &Collector{
		conversionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_started_total",
			Help:      "Conversions accepted for processing",
		}),
		conversionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_completed_total",
			Help:      "Conversions finished successfully",
		}),
		conversionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_failed_total",
			Help:      "Conversions ended in error",
		}),
		artifactsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Artifacts written to storage by output format",
		}, []string{"format"}),
		stageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage durations",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 12),
		}, []string{"stage"}),
		activeJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs currently tracked by the coordinator",
		}),
	}
}

func (c *Collector) ConversionStarted() {
	if c == nil {
		return
	}
	c.conversionsStarted.Inc()
}

func (c *Collector) ConversionCompleted() {
	if c == nil {
		return
	}
	c.conversionsCompleted.Inc()
}

func (c *Collector) ConversionFailed() {
	if c == nil {
		return
	}
	c.conversionsFailed.Inc()
}

func (c *Collector) ArtifactWritten(format string) {
	if c == nil {
		return
	}
	c.artifactsWritten.WithLabelValues(format).Inc()
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) SetActiveJobs(n int) {
	if c == nil {
		return
	}
	c.activeJobs.Set(float64(n))
}
