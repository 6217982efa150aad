package repositories

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/ports"
)

// In-memory implementation of the TourRepository port, used when no
// database is configured.
type MemoryTourRepository struct {
	mu    sync.RWMutex
	tours map[string]domain.TourSnapshot
}

func NewMemoryTourRepository() *MemoryTourRepository {
	return &MemoryTourRepository{tours: map[string]domain.TourSnapshot{}}
}

func (m *MemoryTourRepository) SaveTour(_ context.Context, planner string, snap domain.TourSnapshot) error {
	snap.Stops = slices.Clone(snap.Stops)
	snap.Trajectories = slices.Clone(snap.Trajectories)

	m.mu.Lock()
	m.tours[planner] = snap
	m.mu.Unlock()
	return nil
}

func (m *MemoryTourRepository) LoadTour(_ context.Context, planner string) (domain.TourSnapshot, error) {
	m.mu.RLock()
	snap, ok := m.tours[planner]
	m.mu.RUnlock()
	if !ok {
		return domain.TourSnapshot{}, fmt.Errorf("load tour %q: %w", planner, ports.ErrTourNotFound)
	}
	return snap, nil
}

func (m *MemoryTourRepository) DeleteTour(_ context.Context, planner string) error {
	m.mu.Lock()
	delete(m.tours, planner)
	m.mu.Unlock()
	return nil
}
