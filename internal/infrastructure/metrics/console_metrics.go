// Package metrics exposes Prometheus metrics for the avatar console.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusStale    = "stale"
	StatusRejected = "rejected"
	StatusNetwork  = "network_error"
)

// ConsoleMetrics contains Prometheus metrics for user, avatar and upload traffic.
// A nil *ConsoleMetrics is valid and records nothing.
type ConsoleMetrics struct {
	UserListLoads   *prometheus.CounterVec
	AvatarFetches   *prometheus.CounterVec
	Uploads         *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WorkingSetSize  prometheus.Gauge
	AvatarsCached   prometheus.Gauge
}

// NewConsoleMetrics creates and registers console metrics with the given registerer.
func NewConsoleMetrics(registerer prometheus.Registerer) *ConsoleMetrics {
	metrics := &ConsoleMetrics{
		UserListLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "avatarconsole_user_list_loads_total",
				Help: "Total number of user list loads",
			},
			[]string{"status"}, // success/failed/stale
		),
		AvatarFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "avatarconsole_avatar_fetches_total",
				Help: "Total number of avatar fetches by outcome",
			},
			[]string{"status"}, // success/failed/stale
		),
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "avatarconsole_uploads_total",
				Help: "Total number of avatar upload attempts by outcome",
			},
			[]string{"status"}, // success/failed/rejected/network_error
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "avatarconsole_backend_request_duration_seconds",
				Help:    "Duration of calls to the user service",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		WorkingSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avatarconsole_working_set_users",
			Help: "Number of users in the current working set",
		}),
		AvatarsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avatarconsole_avatars_cached",
			Help: "Number of entries in the avatar map",
		}),
	}

	registerer.MustRegister(
		metrics.UserListLoads,
		metrics.AvatarFetches,
		metrics.Uploads,
		metrics.RequestDuration,
		metrics.WorkingSetSize,
		metrics.AvatarsCached,
	)

	return metrics
}

// ObserveUserListLoad counts a user list load.
func (m *ConsoleMetrics) ObserveUserListLoad(status string) {
	if m == nil {
		return
	}
	m.UserListLoads.WithLabelValues(status).Inc()
}

// ObserveAvatarFetch counts an avatar fetch.
func (m *ConsoleMetrics) ObserveAvatarFetch(status string) {
	if m == nil {
		return
	}
	m.AvatarFetches.WithLabelValues(status).Inc()
}

// ObserveUpload counts an upload attempt.
func (m *ConsoleMetrics) ObserveUpload(status string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(status).Inc()
}

// ObserveRequest records the duration of a user service call.
func (m *ConsoleMetrics) ObserveRequest(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetStateSizes updates the working set and avatar map gauges.
func (m *ConsoleMetrics) SetStateSizes(users, avatars int) {
	if m == nil {
		return
	}
	m.WorkingSetSize.Set(float64(users))
	m.AvatarsCached.Set(float64(avatars))
}
