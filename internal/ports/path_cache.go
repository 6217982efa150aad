package ports

import (
	"context"

	"tour-planning-service/internal/domain"
)

// Cached shortest path from one source to one target.
// Hops lists, for each step, the index of the outgoing segment taken at the
// current intersection, so a record can be decoded against the live network.
type PathRecord struct {
	To     domain.IntersectionID `json:"to"`
	Weight float64               `json:"weight"`
	Hops   []int                 `json:"hops"`
}

// Contract for caching single-source shortest path rows.
// A missing row is reported as (nil, nil).
type PathCache interface {
	GetRow(ctx context.Context, network string, source domain.IntersectionID) (map[domain.IntersectionID]PathRecord, error)
	PutRow(ctx context.Context, network string, source domain.IntersectionID, row map[domain.IntersectionID]PathRecord) error
}
