// Package metrics exposes Prometheus collectors for the recording pipeline
// and export jobs. Registration happens at import via promauto; the HTTP
// server mounts promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session metrics
var (
	SessionsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recnode_sessions_started_total",
			Help: "Total number of capture sessions started",
		},
		[]string{"mode"},
	)

	SessionsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recnode_sessions_failed_total",
			Help: "Total number of sessions that failed during acquisition",
		},
	)

	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recnode_session_active",
			Help: "Whether a capture session is currently active",
		},
	)

	RecordingBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recnode_recording_bytes",
			Help:    "Size of finalized recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		},
	)

	RecordingDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recnode_recording_duration_seconds",
			Help:    "Duration of finalized recordings, paused time excluded",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
)

// Compositor metrics
var (
	CompositorFramesDrawn = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recnode_compositor_frames_drawn_total",
			Help: "Total frames drawn to the render surface",
		},
	)

	CompositorFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recnode_compositor_frames_dropped_total",
			Help: "Total surface frames dropped because the consumer was behind",
		},
	)
)

// Export metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recnode_exports_total",
			Help: "Total export jobs by format and outcome",
		},
		[]string{"format", "status"},
	)

	ExportDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recnode_export_duration_seconds",
			Help:    "Wall-clock duration of export jobs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	ExportOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recnode_export_output_bytes",
			Help:    "Size of exported files in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		},
	)
)
