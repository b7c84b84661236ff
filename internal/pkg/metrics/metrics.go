// Package metrics defines and registers all custom Prometheus metrics for
// the CookEasy client core. It is the single source of truth for metric
// names, labels, and help strings; metrics register on the default registry
// at package init and exposing them is the embedding application's concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cookeasy"

// GatewayRequestsTotal counts outgoing backend requests.
// Labels:
//   - endpoint: logical call name (e.g. "login", "toggle_favorite")
//   - outcome: "ok", "unauthorized", "forbidden", "validation", "server", "network"
var GatewayRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Total number of requests issued to the recipe backend.",
	},
	[]string{"endpoint", "outcome"},
)

// GatewayRequestDuration measures end-to-end latency of backend requests.
var GatewayRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Duration of backend requests from issue to decoded response.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

// OptimisticMutationsTotal counts how optimistic mutations settled.
// Labels:
//   - collection: "favorites" or "ratings"
//   - result: "committed", "rolled_back", "discarded"
var OptimisticMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "optimistic_mutations_total",
		Help:      "Total number of optimistic mutations by settlement result.",
	},
	[]string{"collection", "result"},
)

// StaleResponsesTotal counts responses discarded because their generation
// was superseded by a login/logout before they arrived.
var StaleResponsesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_responses_total",
		Help:      "Total number of responses discarded due to a superseded session generation.",
	},
	[]string{"collection"},
)

// ForcedLogoutsTotal counts session teardowns triggered by a 401 observed on
// any authenticated call. Concurrent 401s are debounced to a single logout,
// so this counts transitions, not raw 401 responses.
var ForcedLogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_logouts_total",
		Help:      "Total number of forced logout transitions caused by rejected tokens.",
	},
)
