package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermissionChecks counts permission evaluations and their outcome (allowed|denied|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// PermissionCacheEvents tracks permission cache traffic (hit|miss|evict|invalidate).
	PermissionCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_permission_cache_events_total",
			Help: "Permission cache hits, misses, evictions and invalidations",
		},
		[]string{"event"},
	)

	// ScopeDenials counts cross-scope requests rejected by the scope resolver.
	ScopeDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_scope_denials_total",
			Help: "Requests denied for targeting another organization or department",
		},
		[]string{"boundary"},
	)

	// RegisteredDevices tracks the number of devices known to the platform.
	RegisteredDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltgrid_registered_devices",
			Help: "Number of registered devices",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltgrid_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
