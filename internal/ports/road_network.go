package ports

import "tour-planning-service/internal/domain"

// Read-only view of the road graph used by shortest-path computation.
type RoadNetwork interface {
	Intersection(id domain.IntersectionID) (*domain.Intersection, bool)
	Len() int
}
