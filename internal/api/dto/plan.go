package dto

import "time"

type StopRequest struct {
	Intersection   int64 `json:"intersection"`
	ServiceSeconds int   `json:"service_seconds" validate:"gte=0"`
}

type RequestRequest struct {
	Pickup   StopRequest `json:"pickup"`
	Delivery StopRequest `json:"delivery"`
}

type PlanRequest struct {
	Depot    int64            `json:"depot"`
	StartAt  *time.Time       `json:"start_at"`
	Requests []RequestRequest `json:"requests" validate:"dive"`
}

// AddRequestRequest inserts one request. Positions, when given, are the
// pickup and delivery indices in the current tour.
type AddRequestRequest struct {
	Request   RequestRequest `json:"request"`
	Positions []int          `json:"positions" validate:"omitempty,len=2,dive,gte=0"`
}

type AddDemandRequest struct {
	Role           string `json:"role" validate:"required,oneof=pickup delivery"`
	Intersection   int64  `json:"intersection"`
	ServiceSeconds int    `json:"service_seconds" validate:"gte=0"`
}

type ModifyDemandRequest struct {
	Intersection   *int64 `json:"intersection"`
	ServiceSeconds *int   `json:"service_seconds" validate:"omitempty,gte=0"`
}

type StopResponse struct {
	DemandID         string    `json:"demand_id"`
	RequestID        string    `json:"request_id,omitempty"`
	Role             string    `json:"role"`
	Intersection     int64     `json:"intersection"`
	IntersectionName string    `json:"intersection_name"`
	ServiceSeconds   float64   `json:"service_seconds"`
	ArriveAt         time.Time `json:"arrive_at"`
	DepartAt         time.Time `json:"depart_at"`
}

type TrajectoryResponse struct {
	From          int64    `json:"from"`
	To            int64    `json:"to"`
	Weight        float64  `json:"weight"`
	Intersections []int64  `json:"intersections"`
	Streets       []string `json:"streets"`
}

type SearchResponse struct {
	Seed         int64   `json:"seed"`
	Generations  int     `json:"generations"`
	Improvements int     `json:"improvements"`
	BestCost     float64 `json:"best_cost"`
	BaselineCost float64 `json:"baseline_cost"`
}

type TourResponse struct {
	Version              uint64               `json:"version"`
	State                string               `json:"state"`
	Depot                int64                `json:"depot"`
	StartAt              time.Time            `json:"start_at"`
	EndAt                time.Time            `json:"end_at"`
	TotalDurationSeconds float64              `json:"total_duration_seconds"`
	Stops                []StopResponse       `json:"stops"`
	Trajectories         []TrajectoryResponse `json:"trajectories"`
	Search               *SearchResponse      `json:"search,omitempty"`
}

// RemovalResponse reports where the removed demands were in the tour.
// An index of -1 means the demand was not part of the tour.
type RemovalResponse struct {
	Indices []int        `json:"indices"`
	Tour    TourResponse `json:"tour"`
}
