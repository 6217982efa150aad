package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tour-planning-service/internal/api/dto"
	"tour-planning-service/internal/adapters/repositories"
	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/ports"
	"tour-planning-service/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkspace() *services.Workspace {
	factory := func(net *domain.RoadNetwork, _ string) *services.Planner {
		paths := services.NewShortestPathIndex(net, nil)
		opt := services.NewGeneticOptimizer(services.OptimizerConfig{Seed: 11}, nil)
		return services.NewPlanner(net, paths, opt, nil)
	}
	return services.NewWorkspace("test", factory, nil, nil)
}

// squareNetwork is four corners 1..4 connected both ways along the edges,
// plus an isolated node 9.
func squareNetwork() dto.NetworkRequest {
	req := dto.NetworkRequest{}
	for id := int64(1); id <= 4; id++ {
		req.Intersections = append(req.Intersections, dto.IntersectionRequest{ID: id, Lat: 45, Lon: 4})
	}
	req.Intersections = append(req.Intersections, dto.IntersectionRequest{ID: 9, Lat: 45, Lon: 4})
	for _, e := range [][2]int64{{1, 2}, {2, 3}, {3, 4}, {4, 1}} {
		name := fmt.Sprintf("street %d-%d", e[0], e[1])
		req.Segments = append(req.Segments,
			dto.SegmentRequest{Origin: e[0], Destination: e[1], Length: 100, Name: name},
			dto.SegmentRequest{Origin: e[1], Destination: e[0], Length: 100, Name: name},
		)
	}
	return req
}

func do(t *testing.T, h http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func doWithID(t *testing.T, h http.HandlerFunc, method, id string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/plans/x/"+id, &buf)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeTour(t *testing.T, rec *httptest.ResponseRecorder) dto.TourResponse {
	t.Helper()
	var res dto.TourResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func setup(t *testing.T) (*NetworkHandler, *PlanHandler) {
	t.Helper()
	ws := newWorkspace()
	nh := &NetworkHandler{Workspace: ws, Prefix: "test"}
	ph := &PlanHandler{Workspace: ws, Now: func() time.Time { return time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC) }}

	rec := do(t, nh.Load, http.MethodPut, "/network", squareNetwork())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return nh, ph
}

func TestNetworkLoad(t *testing.T) {
	ws := newWorkspace()
	nh := &NetworkHandler{Workspace: ws, Prefix: "city"}

	rec := do(t, nh.Load, http.MethodPut, "/network", squareNetwork())
	require.Equal(t, http.StatusOK, rec.Code)

	var res dto.NetworkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 5, res.Intersections)
	assert.Equal(t, 8, res.Segments)
	assert.True(t, strings.HasPrefix(res.NetworkID, "city-"))
	assert.Equal(t, res.NetworkID, ws.NetworkID())

	again := do(t, nh.Load, http.MethodPut, "/network", squareNetwork())
	var res2 dto.NetworkResponse
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &res2))
	assert.Equal(t, res.NetworkID, res2.NetworkID, "same content, same id")
}

func TestNetworkLoadRejectsBadInput(t *testing.T) {
	nh := &NetworkHandler{Workspace: newWorkspace()}

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"intersections":[{"id":1}],"extra":true}`},
		{"two objects", `{"intersections":[{"id":1}]}{}`},
		{"no intersections", `{"intersections":[]}`},
		{"bad latitude", `{"intersections":[{"id":1,"lat":91}]}`},
		{"negative length", `{"intersections":[{"id":1},{"id":2}],"segments":[{"origin":1,"destination":2,"length":-1}]}`},
		{"unknown endpoint", `{"intersections":[{"id":1}],"segments":[{"origin":1,"destination":2,"length":1}]}`},
		{"duplicate id", `{"intersections":[{"id":1},{"id":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/network", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			nh.Load(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPlanRequiresNetwork(t *testing.T) {
	ph := &PlanHandler{Workspace: newWorkspace()}

	rec := do(t, ph.Current, http.MethodGet, "/plans/current", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlanLifecycle(t *testing.T) {
	_, ph := setup(t)

	rec := do(t, ph.Create, http.MethodPost, "/plans", dto.PlanRequest{
		Depot: 1,
		Requests: []dto.RequestRequest{{
			Pickup:   dto.StopRequest{Intersection: 2, ServiceSeconds: 60},
			Delivery: dto.StopRequest{Intersection: 4, ServiceSeconds: 30},
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tour := decodeTour(t, rec)
	assert.Equal(t, "tour_computed", tour.State)
	require.Len(t, tour.Stops, 2)
	assert.Equal(t, "pickup", tour.Stops[0].Role)
	assert.Equal(t, "delivery", tour.Stops[1].Role)
	assert.Equal(t, "street 1-2", tour.Stops[0].IntersectionName)
	require.Len(t, tour.Trajectories, 3)
	assert.Equal(t, []int64{1, 2}, tour.Trajectories[0].Intersections)
	require.NotNil(t, tour.Search)

	// 4 legs of 100 at 15/h = 96000s of driving plus 90s of service.
	assert.InDelta(t, 96090, tour.TotalDurationSeconds, 1e-6)

	current := decodeTour(t, do(t, ph.Current, http.MethodGet, "/plans/current", nil))
	assert.Equal(t, tour.Version, current.Version)

	rec = do(t, ph.AddRequest, http.MethodPost, "/plans/requests", dto.AddRequestRequest{
		Request: dto.RequestRequest{
			Pickup:   dto.StopRequest{Intersection: 3},
			Delivery: dto.StopRequest{Intersection: 1},
		},
		Positions: []int{2, 3},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tour = decodeTour(t, rec)
	assert.Equal(t, "tour_mutated", tour.State)
	require.Len(t, tour.Stops, 4)
	added := tour.Stops[2].RequestID
	assert.NotEmpty(t, added)
	assert.Equal(t, added, tour.Stops[3].RequestID)

	rec = doWithID(t, ph.ModifyDemand, http.MethodPatch, tour.Stops[0].DemandID, map[string]int{"service_seconds": 120})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(120), decodeTour(t, rec).Stops[0].ServiceSeconds)

	rec = doWithID(t, ph.RemoveRequest, http.MethodDelete, added, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var removal dto.RemovalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &removal))
	assert.Equal(t, []int{2, 3}, removal.Indices)
	assert.Len(t, removal.Tour.Stops, 2)

	rec = do(t, ph.Recompute, http.MethodPost, "/plans/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "tour_computed", decodeTour(t, rec).State)

	rec = do(t, ph.Reset, http.MethodDelete, "/plans", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "empty", decodeTour(t, do(t, ph.Current, http.MethodGet, "/plans/current", nil)).State)
}

func TestPlanErrors(t *testing.T) {
	_, ph := setup(t)

	rec := do(t, ph.Create, http.MethodPost, "/plans", dto.PlanRequest{
		Depot: 1,
		Requests: []dto.RequestRequest{{
			Pickup:   dto.StopRequest{Intersection: 2},
			Delivery: dto.StopRequest{Intersection: 9},
		}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "unreachable delivery")

	rec = do(t, ph.Recompute, http.MethodPost, "/plans/recompute", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "no tour yet")

	rec = do(t, ph.Create, http.MethodPost, "/plans", dto.PlanRequest{Depot: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doWithID(t, ph.RemoveDemand, http.MethodDelete, "not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doWithID(t, ph.RemoveDemand, http.MethodDelete, "2b1f5a52-6c1e-4a43-9f4e-6a3c5d0e7f10", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doWithID(t, ph.ModifyDemand, http.MethodPatch, "2b1f5a52-6c1e-4a43-9f4e-6a3c5d0e7f10", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty change")

	rec = do(t, ph.AddDemand, http.MethodPost, "/plans/demands", dto.AddDemandRequest{Role: "dropoff", Intersection: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, ph.AddRequest, http.MethodPost, "/plans/requests", dto.AddRequestRequest{
		Request: dto.RequestRequest{
			Pickup:   dto.StopRequest{Intersection: 2},
			Delivery: dto.StopRequest{Intersection: 3},
		},
		Positions: []int{0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "positions must be a pair")
}

func TestAddAndRemoveDemand(t *testing.T) {
	_, ph := setup(t)
	require.Equal(t, http.StatusCreated, do(t, ph.Create, http.MethodPost, "/plans", dto.PlanRequest{Depot: 1}).Code)

	rec := do(t, ph.AddDemand, http.MethodPost, "/plans/demands", dto.AddDemandRequest{Role: "delivery", Intersection: 3, ServiceSeconds: 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tour := decodeTour(t, rec)
	require.Len(t, tour.Stops, 1)
	assert.Empty(t, tour.Stops[0].RequestID)

	rec = doWithID(t, ph.ModifyDemand, http.MethodPatch, tour.Stops[0].DemandID, map[string]int64{"intersection": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(4), decodeTour(t, rec).Stops[0].Intersection)

	rec = doWithID(t, ph.RemoveDemand, http.MethodDelete, tour.Stops[0].DemandID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var removal dto.RemovalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &removal))
	assert.Equal(t, []int{0}, removal.Indices)
	assert.Empty(t, removal.Tour.Stops)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrUnknownDemand, http.StatusNotFound},
		{fmt.Errorf("x: %w", services.ErrUnknownRequest), http.StatusNotFound},
		{ports.ErrTourNotFound, http.StatusNotFound},
		{services.ErrNoTour, http.StatusConflict},
		{services.ErrNoNetwork, http.StatusConflict},
		{&domain.UnreachableError{From: 1, To: 2}, http.StatusUnprocessableEntity},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{context.Canceled, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestHealth(t *testing.T) {
	h := &HealthHandler{Deps: map[string]Pinger{
		"db": PingFunc(func(context.Context) error { return nil }),
	}}
	rec := do(t, h.Health, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","db":"ok"}`, rec.Body.String())

	h.Deps["redis"] = PingFunc(func(context.Context) error { return errors.New("down") })
	rec = do(t, h.Health, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","db":"ok","redis":"down"}`, rec.Body.String())

	rec = do(t, h.Health, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestSavedPlan(t *testing.T) {
	factory := func(net *domain.RoadNetwork, _ string) *services.Planner {
		return services.NewPlanner(net, services.NewShortestPathIndex(net, nil), services.NewGeneticOptimizer(services.OptimizerConfig{Seed: 11}, nil), nil)
	}
	ws := services.NewWorkspace("test", factory, repositories.NewMemoryTourRepository(), nil)
	nh := &NetworkHandler{Workspace: ws}
	ph := &PlanHandler{Workspace: ws}
	require.Equal(t, http.StatusOK, do(t, nh.Load, http.MethodPut, "/network", squareNetwork()).Code)

	rec := do(t, ph.Saved, http.MethodGet, "/plans/saved", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	created := decodeTour(t, do(t, ph.Create, http.MethodPost, "/plans", dto.PlanRequest{
		Depot:    1,
		Requests: []dto.RequestRequest{{Pickup: dto.StopRequest{Intersection: 2}, Delivery: dto.StopRequest{Intersection: 3}}},
	}))

	rec = do(t, ph.Saved, http.MethodGet, "/plans/saved", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeTour(t, rec)
	assert.Equal(t, created.Version, saved.Version)
	assert.Len(t, saved.Stops, 2)

	// A re-plan that turns out infeasible leaves the planner empty; the
	// stored tour must not outlive it.
	rec = do(t, ph.Create, http.MethodPost, "/plans", dto.PlanRequest{
		Depot:    1,
		Requests: []dto.RequestRequest{{Pickup: dto.StopRequest{Intersection: 2}, Delivery: dto.StopRequest{Intersection: 9}}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, ph.Saved, http.MethodGet, "/plans/saved", nil).Code)
}
