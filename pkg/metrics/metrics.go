package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheHits counts cache hits by query name
var CacheHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saas_cache_hits_total",
		Help: "Total number of cache hits served by the cache-aside layer",
	},
	[]string{"query"},
)

// CacheMisses counts cache misses by query name
var CacheMisses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saas_cache_misses_total",
		Help: "Total number of cache misses in the cache-aside layer",
	},
	[]string{"query"},
)

// OrdersProcessed counts orders that reached a terminal state, by final status
var OrdersProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saas_orders_processed_total",
		Help: "Total number of orders that reached a terminal pipeline state",
	},
	[]string{"status"},
)

// OrderPipelineDuration records end-to-end pipeline latency per order
var OrderPipelineDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "saas_order_pipeline_duration_seconds",
		Help:    "Latency in seconds from pipeline start to terminal state",
		Buckets: prometheus.DefBuckets,
	},
)

// WorkflowTriggers counts outbound workflow trigger attempts by outcome
var WorkflowTriggers = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saas_workflow_triggers_total",
		Help: "Total number of workflow trigger requests sent to the automation engine",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(CacheHits, CacheMisses)
	prometheus.MustRegister(OrdersProcessed, OrderPipelineDuration)
	prometheus.MustRegister(WorkflowTriggers)
}
