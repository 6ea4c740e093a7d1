package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_store_writes_total",
			Help: "Writes issued to the achievement store",
		},
		[]string{"op", "status"}, // op: create, update, delete, reorder, reset, complete
	)

	SnapshotsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_snapshots_applied_total",
			Help: "Store notifications applied to a local list",
		},
		[]string{"day"},
	)

	LiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "achievements_live_connections",
			Help: "Open websocket connections per day",
		},
		[]string{"day"},
	)

	ProofUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_proof_uploads_total",
			Help: "Proof image uploads",
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func RecordStoreWrite(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreWrites.WithLabelValues(op, status).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
