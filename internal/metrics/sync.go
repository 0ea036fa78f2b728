package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasury_sync",
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Count of sync runs by outcome.",
	}, []string{"outcome"})
	syncRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "treasury_sync",
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "Duration of sync runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	syncEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasury_sync",
		Subsystem: "engine",
		Name:      "events_total",
		Help:      "Count of treasury events by result (inserted, skipped, decode_skipped, rejected).",
	}, []string{"result"})
)

// Event results reported through Syncer.ObserveEvents.
const (
	ResultInserted      = "inserted"
	ResultSkipped       = "skipped"
	ResultDecodeSkipped = "decode_skipped"
	ResultRejected      = "rejected"
)

// Syncer tracks metrics for sync runs.
type Syncer struct{}

// NewSyncer constructs a metrics collector for sync runs.
func NewSyncer() *Syncer {
	return &Syncer{}
}

// ObserveRun records the outcome of one run. outcome is "success" or a failure kind.
func (m *Syncer) ObserveRun(outcome string, started time.Time) {
	if m == nil {
		return
	}
	syncRunsTotal.WithLabelValues(outcome).Inc()
	syncRunDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

// ObserveEvents adds n events with the given result.
func (m *Syncer) ObserveEvents(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	syncEventsTotal.WithLabelValues(result).Add(float64(n))
}
