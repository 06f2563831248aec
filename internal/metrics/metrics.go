// Package metrics holds the Prometheus instrumentation for the
// normalization pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds pipeline Prometheus metrics. All metrics are prefixed
// with "maps_" for namespacing.
type Metrics struct {
	// Document processing
	DocumentsTotal  *prometheus.CounterVec
	ProcessDuration prometheus.Histogram

	// Detection
	DetectionsTotal  *prometheus.CounterVec
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Mapping quality
	IssuesTotal       *prometheus.CounterVec
	MappingConfidence prometheus.Histogram

	// Consensus
	ClustersTotal prometheus.Counter
}

// New creates and registers pipeline metrics on the given registerer.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
//
// Metrics:
//   - maps_documents_total{status} - documents processed, by routing status
//   - maps_process_duration_seconds - per-document processing time
//   - maps_detections_total{case} - committed parse cases ("none" when below floor)
//   - maps_detection_cache_hits_total / maps_detection_cache_misses_total
//   - maps_mapping_issues_total{kind} - per-field issues by kind
//   - maps_mapping_confidence - distribution of mapping confidence
//   - maps_consensus_clusters_total - clusters produced
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maps_documents_total",
				Help: "Total number of documents processed",
			},
			[]string{"status"}, // "accepted", "needs_review", "error"
		),
		ProcessDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "maps_process_duration_seconds",
				Help:    "Duration of single-document processing in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		DetectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maps_detections_total",
				Help: "Total number of structure detections by committed case",
			},
			[]string{"case"},
		),
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "maps_detection_cache_hits_total",
				Help: "Total number of detection cache hits",
			},
		),
		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "maps_detection_cache_misses_total",
				Help: "Total number of detection cache misses",
			},
		),
		IssuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maps_mapping_issues_total",
				Help: "Total number of per-field mapping issues by kind",
			},
			[]string{"kind"},
		),
		MappingConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "maps_mapping_confidence",
				Help:    "Distribution of mapping confidence scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		ClustersTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "maps_consensus_clusters_total",
				Help: "Total number of consensus clusters produced",
			},
		),
	}
}
