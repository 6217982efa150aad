package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Tour is the single-vehicle plan: an ordered list of demands that starts
// and ends at the depot, plus the schedule derived from it.
type Tour struct {
	Depot         IntersectionID
	StartAt       time.Time
	Demands       []*Demand
	Trajectories  []Path
	TotalDuration time.Duration
	EndAt         time.Time
}

// Find returns the demand with the given id and its position, or -1.
func (t *Tour) Find(id uuid.UUID) (*Demand, int) {
	for i, d := range t.Demands {
		if d.ID == id {
			return d, i
		}
	}
	return nil, -1
}

// Insert places d at index i, shifting later demands right.
func (t *Tour) Insert(i int, d *Demand) error {
	if i < 0 || i > len(t.Demands) {
		return fmt.Errorf("insert demand: index %d out of range [0,%d]: %w", i, len(t.Demands), ErrInvalidInput)
	}
	if _, at := t.Find(d.ID); at >= 0 {
		return fmt.Errorf("insert demand %s: already in tour: %w", d.ID, ErrInvalidInput)
	}
	t.Demands = slices.Insert(t.Demands, i, d)
	return nil
}

// RemoveAt deletes the demand at index i and returns it.
func (t *Tour) RemoveAt(i int) *Demand {
	d := t.Demands[i]
	t.Demands = slices.Delete(t.Demands, i, i+1)
	return d
}

// SpecialNodes returns the depot followed by every distinct demand target,
// in tour order.
func (t *Tour) SpecialNodes() []IntersectionID {
	return SpecialNodes(t.Depot, t.Demands)
}

func SpecialNodes(depot IntersectionID, demands []*Demand) []IntersectionID {
	nodes := make([]IntersectionID, 0, len(demands)+1)
	seen := make(map[IntersectionID]struct{}, len(demands)+1)

	nodes = append(nodes, depot)
	seen[depot] = struct{}{}
	for _, d := range demands {
		if _, ok := seen[d.Intersection]; ok {
			continue
		}
		seen[d.Intersection] = struct{}{}
		nodes = append(nodes, d.Intersection)
	}
	return nodes
}

// ClearSchedule drops every derived field, keeping depot, start and order.
func (t *Tour) ClearSchedule() {
	t.Trajectories = nil
	t.TotalDuration = 0
	t.EndAt = time.Time{}
	for _, d := range t.Demands {
		d.ArrivalAt = time.Time{}
		d.DepartureAt = time.Time{}
	}
}

// CheckOrder verifies that every demand appears once and that each paired
// pickup precedes its delivery.
func CheckOrder(order []*Demand) error {
	seen := make(map[uuid.UUID]struct{}, len(order))
	pickedUp := make(map[uuid.UUID]bool)

	for i, d := range order {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("check order: demand %s appears twice: %w", d.ID, ErrInconsistentState)
		}
		seen[d.ID] = struct{}{}

		if !d.Paired() {
			continue
		}
		switch d.Role {
		case RolePickup:
			pickedUp[d.RequestID] = true
		case RoleDelivery:
			if !pickedUp[d.RequestID] && hasPickup(order[i+1:], d.RequestID) {
				return fmt.Errorf("check order: delivery %s precedes its pickup: %w", d.ID, ErrInconsistentState)
			}
		}
	}
	return nil
}

func hasPickup(rest []*Demand, request uuid.UUID) bool {
	for _, d := range rest {
		if d.RequestID == request && d.Role == RolePickup {
			return true
		}
	}
	return false
}
