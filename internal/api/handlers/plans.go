package handlers

import (
	"context"
	"net/http"
	"time"

	"tour-planning-service/internal/api/dto"
	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/services"

	"github.com/google/uuid"
)

type PlanHandler struct {
	Workspace *services.Workspace

	// Now supplies the default start time. Defaults to time.Now.
	Now func() time.Time
}

// Create replaces the current plan with a new one and computes its best tour.
// On failure the planner is left empty with the submitted setup.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	startAt := h.now()
	if req.StartAt != nil {
		startAt = *req.StartAt
	}
	requests := make([]*domain.Request, 0, len(req.Requests))
	for _, rr := range req.Requests {
		requests = append(requests, newRequest(rr))
	}

	h.respond(w, r, "create plan", http.StatusCreated, func(ctx context.Context, p *services.Planner) error {
		if p.State() != domain.StateEmpty {
			p.Reset()
		}
		if err := p.SetDepot(domain.IntersectionID(req.Depot)); err != nil {
			return err
		}
		if err := p.SetStartTime(startAt); err != nil {
			return err
		}
		if err := p.SetRequests(requests); err != nil {
			return err
		}
		return p.ComputeBestTour(ctx)
	})
}

func (h *PlanHandler) Current(w http.ResponseWriter, r *http.Request) {
	snap, stats, err := h.Workspace.Snapshot()
	if err != nil {
		writeServiceError(w, r, "current plan", err)
		return
	}
	writeJSON(w, r, http.StatusOK, tourResponse(snap, stats))
}

// Saved returns the last persisted tour.
func (h *PlanHandler) Saved(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Workspace.Saved(r.Context())
	if err != nil {
		writeServiceError(w, r, "saved plan", err)
		return
	}
	writeJSON(w, r, http.StatusOK, tourResponse(snap, services.SearchStats{}))
}

// Recompute rebuilds paths and schedule for the current order, which is kept.
func (h *PlanHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "recompute plan", http.StatusOK, func(ctx context.Context, p *services.Planner) error {
		return p.RecomputeTour(ctx)
	})
}

func (h *PlanHandler) AddRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.AddRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	request := newRequest(req.Request)
	h.respond(w, r, "add request", http.StatusCreated, func(ctx context.Context, p *services.Planner) error {
		return p.AddRequest(ctx, request, req.Positions...)
	})
}

func (h *PlanHandler) RemoveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var indices [2]int
	snap, stats, err := h.do(r.Context(), func(_ context.Context, p *services.Planner) error {
		var err error
		indices, err = p.RemoveRequest(id)
		return err
	})
	if err != nil {
		writeServiceError(w, r, "remove request", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.RemovalResponse{Indices: indices[:], Tour: tourResponse(snap, stats)})
}

func (h *PlanHandler) AddDemand(w http.ResponseWriter, r *http.Request) {
	var req dto.AddDemandRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeServiceError(w, r, "add demand", err)
		return
	}
	demand := domain.NewDemand(role, domain.IntersectionID(req.Intersection), seconds(req.ServiceSeconds))
	h.respond(w, r, "add demand", http.StatusCreated, func(ctx context.Context, p *services.Planner) error {
		return p.AddDemand(ctx, demand)
	})
}

func (h *PlanHandler) RemoveDemand(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var index int
	snap, stats, err := h.do(r.Context(), func(_ context.Context, p *services.Planner) error {
		var err error
		index, err = p.RemoveDemand(id)
		return err
	})
	if err != nil {
		writeServiceError(w, r, "remove demand", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.RemovalResponse{Indices: []int{index}, Tour: tourResponse(snap, stats)})
}

// ModifyDemand moves a demand to another intersection and/or changes its
// service duration.
func (h *PlanHandler) ModifyDemand(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.ModifyDemandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Intersection == nil && req.ServiceSeconds == nil {
		writeError(w, r, http.StatusBadRequest, "intersection or service_seconds is required")
		return
	}

	var change services.DemandChange
	if req.Intersection != nil {
		at := domain.IntersectionID(*req.Intersection)
		change.Intersection = &at
	}
	if req.ServiceSeconds != nil {
		dur := seconds(*req.ServiceSeconds)
		change.ServiceDuration = &dur
	}

	h.respond(w, r, "modify demand", http.StatusOK, func(ctx context.Context, p *services.Planner) error {
		return p.ModifyDemand(ctx, id, change)
	})
}

func (h *PlanHandler) Reset(w http.ResponseWriter, r *http.Request) {
	_, _, err := h.do(r.Context(), func(_ context.Context, p *services.Planner) error {
		p.Reset()
		return nil
	})
	if err != nil {
		writeServiceError(w, r, "reset plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlanHandler) respond(w http.ResponseWriter, r *http.Request, op string, status int, fn func(ctx context.Context, p *services.Planner) error) {
	snap, stats, err := h.do(r.Context(), fn)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, r, status, tourResponse(snap, stats))
}

func (h *PlanHandler) do(ctx context.Context, fn func(ctx context.Context, p *services.Planner) error) (domain.TourSnapshot, services.SearchStats, error) {
	var stats services.SearchStats
	snap, err := h.Workspace.Do(ctx, func(p *services.Planner) error {
		if err := fn(ctx, p); err != nil {
			return err
		}
		stats = p.Stats()
		return nil
	})
	return snap, stats, err
}

func (h *PlanHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func newRequest(rr dto.RequestRequest) *domain.Request {
	return domain.NewRequest(
		domain.IntersectionID(rr.Pickup.Intersection), seconds(rr.Pickup.ServiceSeconds),
		domain.IntersectionID(rr.Delivery.Intersection), seconds(rr.Delivery.ServiceSeconds),
	)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func tourResponse(snap domain.TourSnapshot, stats services.SearchStats) dto.TourResponse {
	res := dto.TourResponse{
		Version:              snap.Version,
		State:                snap.State.String(),
		Depot:                int64(snap.Depot),
		StartAt:              snap.StartAt,
		EndAt:                snap.EndAt,
		TotalDurationSeconds: snap.TotalDuration.Seconds(),
		Stops:                make([]dto.StopResponse, 0, len(snap.Stops)),
		Trajectories:         make([]dto.TrajectoryResponse, 0, len(snap.Trajectories)),
	}

	for _, d := range snap.Stops {
		stop := dto.StopResponse{
			DemandID:         d.ID.String(),
			Role:             d.Role.String(),
			Intersection:     int64(d.Intersection),
			IntersectionName: d.IntersectionName,
			ServiceSeconds:   d.ServiceDuration.Seconds(),
			ArriveAt:         d.ArrivalAt,
			DepartAt:         d.DepartureAt,
		}
		if d.Paired() {
			stop.RequestID = d.RequestID.String()
		}
		res.Stops = append(res.Stops, stop)
	}

	for _, p := range snap.Trajectories {
		tr := dto.TrajectoryResponse{
			From:          int64(p.From),
			To:            int64(p.To),
			Weight:        p.Weight,
			Intersections: []int64{int64(p.From)},
			Streets:       make([]string, 0, len(p.Segments)),
		}
		for _, s := range p.Segments {
			tr.Intersections = append(tr.Intersections, int64(s.Destination))
			tr.Streets = append(tr.Streets, s.Name)
		}
		res.Trajectories = append(res.Trajectories, tr)
	}

	if snap.State.HasTour() {
		res.Search = &dto.SearchResponse{
			Seed:         stats.Seed,
			Generations:  stats.Generations,
			Improvements: stats.Improvements,
			BestCost:     stats.BestCost,
			BaselineCost: stats.BaselineCost,
		}
	}
	return res
}
