package services

import (
	"fmt"
	"time"

	"tour-planning-service/internal/domain"
)

// Schedule is the timed walk of an ordered tour. Arrivals and Departures are
// indexed like the demand list; Trajectories has one more entry, the return
// leg to the depot.
type Schedule struct {
	Trajectories  []domain.Path
	Arrivals      []time.Time
	Departures    []time.Time
	TotalDuration time.Duration
	EndAt         time.Time
}

// BuildSchedule walks depot -> ordered... -> depot, adding travel time for
// each leg and the service duration at each stop. A leg missing from the
// table is reported as domain.ErrInconsistentState. Demands are not touched;
// see Schedule.Apply.
func BuildSchedule(
	ordered []*domain.Demand,
	depot domain.IntersectionID,
	table *domain.PathTable,
	startAt time.Time,
) (Schedule, error) {
	s := Schedule{
		Trajectories: make([]domain.Path, 0, len(ordered)+1),
		Arrivals:     make([]time.Time, len(ordered)),
		Departures:   make([]time.Time, len(ordered)),
	}

	var elapsed time.Duration
	at := depot
	for i, d := range ordered {
		leg, ok := table.Lookup(at, d.Intersection)
		if !ok {
			return Schedule{}, fmt.Errorf("build schedule: leg %d->%d at stop %d: %w", at, d.Intersection, i, domain.ErrInconsistentState)
		}
		s.Trajectories = append(s.Trajectories, leg)

		elapsed += domain.TravelTime(leg.Weight)
		s.Arrivals[i] = startAt.Add(elapsed)
		elapsed += d.ServiceDuration
		s.Departures[i] = startAt.Add(elapsed)

		at = d.Intersection
	}

	back, ok := table.Lookup(at, depot)
	if !ok {
		return Schedule{}, fmt.Errorf("build schedule: return leg %d->%d: %w", at, depot, domain.ErrInconsistentState)
	}
	s.Trajectories = append(s.Trajectories, back)
	elapsed += domain.TravelTime(back.Weight)

	s.TotalDuration = elapsed
	s.EndAt = startAt.Add(elapsed)
	return s, nil
}

// Apply writes the schedule onto the tour and its demands. The tour's demand
// list must be the one the schedule was built from.
func (s Schedule) Apply(t *domain.Tour) {
	for i, d := range t.Demands {
		d.ArrivalAt = s.Arrivals[i]
		d.DepartureAt = s.Departures[i]
	}
	t.Trajectories = s.Trajectories
	t.TotalDuration = s.TotalDuration
	t.EndAt = s.EndAt
}
