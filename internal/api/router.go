package api

import (
	"net/http"

	"tour-planning-service/internal/api/handlers"
	"tour-planning-service/internal/platform/metrics"
	"tour-planning-service/internal/ports"
	"tour-planning-service/internal/services"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Workspace *services.Workspace
	Broker    ports.TransitionBroker

	// NetworkPrefix namespaces uploaded network ids.
	NetworkPrefix string

	// Health names the dependencies checked by /health.
	Health map[string]handlers.Pinger

	// SearchLimiter, when set, throttles the routes that run a tour search.
	SearchLimiter *rate.Limiter
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	health := &handlers.HealthHandler{Deps: deps.Health}
	network := &handlers.NetworkHandler{Workspace: deps.Workspace, Prefix: deps.NetworkPrefix}
	plans := &handlers.PlanHandler{Workspace: deps.Workspace}

	mux.HandleFunc("/health", health.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("PUT /network", network.Load)

	search := func(h http.HandlerFunc) http.HandlerFunc { return limit(deps.SearchLimiter, h) }

	mux.HandleFunc("POST /plans", search(plans.Create))
	mux.HandleFunc("DELETE /plans", plans.Reset)
	mux.HandleFunc("GET /plans/current", plans.Current)
	mux.HandleFunc("GET /plans/saved", plans.Saved)
	mux.HandleFunc("POST /plans/recompute", search(plans.Recompute))
	mux.HandleFunc("POST /plans/requests", search(plans.AddRequest))
	mux.HandleFunc("DELETE /plans/requests/{id}", plans.RemoveRequest)
	mux.HandleFunc("POST /plans/demands", plans.AddDemand)
	mux.HandleFunc("DELETE /plans/demands/{id}", plans.RemoveDemand)
	mux.HandleFunc("PATCH /plans/demands/{id}", plans.ModifyDemand)

	if deps.Broker != nil {
		events := &handlers.EventsHandler{Broker: deps.Broker, Topic: deps.Workspace.Name()}
		mux.HandleFunc("GET /plans/events", events.Stream)
	}

	return requestIDMiddleware(loggingMiddleware(mux))
}
