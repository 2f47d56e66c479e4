// Package metrics exposes the engine's Prometheus collectors. Counters are
// registered on the default registry and served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExpensesCreated counts successfully created expenses.
	ExpensesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "divvy_expenses_created_total",
		Help: "Number of expenses created.",
	})

	// SettlementsCreated counts successfully created settlements.
	SettlementsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "divvy_settlements_created_total",
		Help: "Number of settlements created.",
	})

	// SharesMarkedPaid counts shares flipped to paid, by settlements and
	// bulk mark operations alike.
	SharesMarkedPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "divvy_shares_marked_paid_total",
		Help: "Number of shares marked paid.",
	})

	// BalanceCacheHits counts balance reads served from cache.
	BalanceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "divvy_balance_cache_hits_total",
		Help: "Number of group balance reads served from cache.",
	})

	// BalanceCacheMisses counts balance reads that recomputed from the
	// store.
	BalanceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "divvy_balance_cache_misses_total",
		Help: "Number of group balance reads recomputed from the store.",
	})
)
