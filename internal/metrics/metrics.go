package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API.
	Registry = prometheus.NewRegistry()

	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tracking_sessions_started_total", Help: "Tracking sessions started."},
	)
	SessionsStopped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tracking_sessions_stopped_total", Help: "Tracking sessions stopped."},
	)
	PointsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tracking_points_accepted_total", Help: "Position fixes accepted into a session."},
	)
	PointsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tracking_points_rejected_total", Help: "Position fixes rejected by the ingestion policy."},
		[]string{"reason"},
	)
	SnapshotsSaved = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tracking_snapshots_saved_total", Help: "Recovery snapshots written."},
	)
	SnapshotRestores = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tracking_snapshot_restores_total", Help: "Snapshot restore attempts by result."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors to the registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(SessionsStarted)
		Registry.MustRegister(SessionsStopped)
		Registry.MustRegister(PointsAccepted)
		Registry.MustRegister(PointsRejected)
		Registry.MustRegister(SnapshotsSaved)
		Registry.MustRegister(SnapshotRestores)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
