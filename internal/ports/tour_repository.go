package ports

import (
	"context"
	"errors"

	"tour-planning-service/internal/domain"
)

var ErrTourNotFound = errors.New("tour not found")

// Port: a boundary for persisting tour snapshots.
type TourRepository interface {
	// Store the snapshot under the planner name, replacing any previous one.
	SaveTour(ctx context.Context, planner string, snap domain.TourSnapshot) error
	// Retrieve the latest snapshot, or ErrTourNotFound.
	LoadTour(ctx context.Context, planner string) (domain.TourSnapshot, error)
	DeleteTour(ctx context.Context, planner string) error
}
