package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a dependency whose liveness is part of the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Deps map[string]Pinger
}

// Health reports liveness of the service and of each configured dependency.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	res := map[string]string{"status": "ok"}
	for name, dep := range h.Deps {
		if err := dep.Ping(ctx); err != nil {
			res[name] = err.Error()
			res["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		res[name] = "ok"
	}
	writeJSON(w, r, status, res)
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
