package domain

import "time"

// TourSnapshot is an immutable copy of the planner's tour handed out to
// presentation and persistence layers. Stops are copied by value.
type TourSnapshot struct {
	Version       uint64
	State         State
	Depot         IntersectionID
	StartAt       time.Time
	Stops         []Demand
	Trajectories  []Path
	TotalDuration time.Duration
	EndAt         time.Time
}

func NewTourSnapshot(version uint64, state State, t *Tour) TourSnapshot {
	stops := make([]Demand, len(t.Demands))
	for i, d := range t.Demands {
		stops[i] = *d
	}

	trajectories := make([]Path, len(t.Trajectories))
	copy(trajectories, t.Trajectories)

	return TourSnapshot{
		Version:       version,
		State:         state,
		Depot:         t.Depot,
		StartAt:       t.StartAt,
		Stops:         stops,
		Trajectories:  trajectories,
		TotalDuration: t.TotalDuration,
		EndAt:         t.EndAt,
	}
}
