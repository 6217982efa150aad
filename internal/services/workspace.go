package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/logger"
	"tour-planning-service/internal/ports"

	"go.uber.org/zap"
)

var ErrNoNetwork = fmt.Errorf("no road network loaded: %w", domain.ErrInvalidInput)

// PlannerFactory builds a planner bound to one road network.
type PlannerFactory func(network *domain.RoadNetwork, networkID string) *Planner

// Workspace serializes access to the current road network and its planner,
// and persists a snapshot after every successful change.
type Workspace struct {
	mu sync.Mutex

	name    string
	factory PlannerFactory
	repo    ports.TourRepository
	log     *zap.Logger

	network   *domain.RoadNetwork
	networkID string
	planner   *Planner
}

// NewWorkspace returns an empty workspace. repo may be nil.
func NewWorkspace(name string, factory PlannerFactory, repo ports.TourRepository, log *zap.Logger) *Workspace {
	return &Workspace{name: name, factory: factory, repo: repo, log: logger.OrNop(log)}
}

func (w *Workspace) Name() string { return w.name }

// LoadNetwork replaces the road network. Any tour planned on the previous
// network is discarded.
func (w *Workspace) LoadNetwork(ctx context.Context, network *domain.RoadNetwork, networkID string) error {
	if network == nil || network.Len() == 0 {
		return fmt.Errorf("load network: empty network: %w", domain.ErrInvalidInput)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.planner != nil {
		w.planner.Reset()
	}
	w.network = network
	w.networkID = networkID
	w.planner = w.factory(network, networkID)
	w.planner.Name = w.name

	w.deleteSnapshot(ctx)
	w.log.Info("road network loaded",
		zap.String("network_id", networkID),
		zap.Int("intersections", network.Len()),
		zap.Int("segments", network.Segments()),
	)
	return nil
}

// NetworkID returns the id of the loaded network, or "" when none is loaded.
func (w *Workspace) NetworkID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.networkID
}

// Do runs fn against the planner under the workspace lock and returns the
// resulting snapshot. The persisted snapshot follows the planner whenever fn
// committed a transition, even if fn then failed on a later step.
func (w *Workspace) Do(ctx context.Context, fn func(p *Planner) error) (domain.TourSnapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.planner == nil {
		return domain.TourSnapshot{}, ErrNoNetwork
	}

	before := w.planner.Snapshot().Version
	err := fn(w.planner)

	snap := w.planner.Snapshot()
	if err == nil || snap.Version != before {
		w.sync(ctx, snap)
	}
	if err != nil {
		return domain.TourSnapshot{}, err
	}
	return snap, nil
}

// Saved returns the persisted snapshot of this workspace's planner.
func (w *Workspace) Saved(ctx context.Context) (domain.TourSnapshot, error) {
	if w.repo == nil {
		return domain.TourSnapshot{}, ports.ErrTourNotFound
	}
	return w.repo.LoadTour(ctx, w.name)
}

// Snapshot returns the current tour without modifying it.
func (w *Workspace) Snapshot() (domain.TourSnapshot, SearchStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.planner == nil {
		return domain.TourSnapshot{}, SearchStats{}, ErrNoNetwork
	}
	return w.planner.Snapshot(), w.planner.Stats(), nil
}

// Stats returns the last search statistics.
func (w *Workspace) Stats() SearchStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.planner == nil {
		return SearchStats{}
	}
	return w.planner.Stats()
}

func (w *Workspace) sync(ctx context.Context, snap domain.TourSnapshot) {
	if snap.State == domain.StateEmpty {
		w.deleteSnapshot(ctx)
		return
	}
	w.saveSnapshot(ctx, snap)
}

func (w *Workspace) saveSnapshot(ctx context.Context, snap domain.TourSnapshot) {
	if w.repo == nil {
		return
	}
	if err := w.repo.SaveTour(ctx, w.name, snap); err != nil {
		w.log.Warn("save tour snapshot failed", zap.String("planner", w.name), zap.Uint64("version", snap.Version), zap.Error(err))
	}
}

func (w *Workspace) deleteSnapshot(ctx context.Context) {
	if w.repo == nil {
		return
	}
	if err := w.repo.DeleteTour(ctx, w.name); err != nil && !errors.Is(err, ports.ErrTourNotFound) {
		w.log.Warn("delete tour snapshot failed", zap.String("planner", w.name), zap.Error(err))
	}
}
