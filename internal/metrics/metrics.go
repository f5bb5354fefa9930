package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "renit"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	bookingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Booking lifecycle operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	overlapRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_overlap_rejections_total",
			Help:      "Overlap rejections split by where they were detected (check or store).",
		},
		[]string{"source"},
	)

	relayDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_relay_deliveries_total",
			Help:      "Chat envelopes handed to live subscribers, or dropped on full buffers.",
		},
		[]string{"result"},
	)

	chatStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_streams_open",
			Help:      "Open server-sent event chat streams.",
		},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Sheets sync tasks by final status.",
		},
		[]string{"status"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequests,
		httpDuration,
		bookingOutcomes,
		overlapRejections,
		relayDeliveries,
		chatStreams,
		syncTasks,
	}
}

// Register adds every collector to the default registry once; later calls
// are no-ops.
func Register() {
	once.Do(func() {
		MustRegisterTo(prometheus.DefaultRegisterer)
	})
}

// MustRegisterTo registers the collectors on reg and panics on a duplicate.
func MustRegisterTo(reg prometheus.Registerer) {
	reg.MustRegister(collectors()...)
}

// ObserveHTTP records one served request.
func ObserveHTTP(endpoint, code string, dur time.Duration) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func IncBooking(operation, outcome string) {
	bookingOutcomes.WithLabelValues(operation, outcome).Inc()
}

func IncOverlap(source string) {
	overlapRejections.WithLabelValues(source).Inc()
}

func IncRelay(result string) {
	relayDeliveries.WithLabelValues(result).Inc()
}

// TrackChatStream counts an open chat stream; call the returned func on close.
func TrackChatStream() func() {
	chatStreams.Inc()
	var done sync.Once
	return func() { done.Do(chatStreams.Dec) }
}

func IncSyncTask(status string) {
	syncTasks.WithLabelValues(status).Inc()
}
