package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_sync_requests_total",
			Help: "Total number of backend calls by kind and result",
		},
		[]string{"kind", "result"},
	)

	syncDiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_sync_discarded_responses_total",
			Help: "Responses dropped because a later call was issued",
		},
		[]string{"kind"},
	)

	syncCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_sync_cache_total",
			Help: "Side cache operations by op and result",
		},
		[]string{"op", "result"},
	)
)
