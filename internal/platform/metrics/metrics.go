package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlannerOperations counts planner calls by operation and outcome (ok, infeasible, invalid, error).
	PlannerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_operations_total", Help: "Planner operations by outcome."},
		[]string{"operation", "outcome"},
	)
	OptimizerGenerations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimizer_generations", Help: "Generations run per tour search.", Buckets: []float64{1, 10, 50, 100, 200, 400, 800, 1600}},
	)
	ShortestPathPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shortest_path_passes_total", Help: "Single-source shortest path rows by origin (computed or cache)."},
		[]string{"source"},
	)
	ShortestPathDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "shortest_path_pass_seconds", Help: "Duration of one Dijkstra pass in seconds.", Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8)},
	)
)

var regOnce sync.Once

// RegisterDefault registers the service collectors on Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlannerOperations)
		Registry.MustRegister(OptimizerGenerations)
		Registry.MustRegister(ShortestPathPasses)
		Registry.MustRegister(ShortestPathDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
