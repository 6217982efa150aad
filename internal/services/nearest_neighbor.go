package services

import (
	"fmt"

	"tour-planning-service/internal/domain"
)

// NearestNeighborTour orders demands with a greedy nearest-neighbor walk
// from the depot, never visiting a delivery before its pickup.
//
// The walk minimizes the immediate leg weight at each step and makes no
// attempt at global optimization. It serves as the cost baseline of the
// genetic search and as one of its initial individuals.
func NearestNeighborTour(
	depot domain.IntersectionID,
	demands []*domain.Demand,
	table *domain.PathTable,
) ([]*domain.Demand, float64, error) {
	m, err := newCostMatrix(depot, demands, table)
	if err != nil {
		return nil, 0, fmt.Errorf("nearest neighbor: %w", err)
	}
	pairs, err := pairDemands(demands)
	if err != nil {
		return nil, 0, fmt.Errorf("nearest neighbor: %w", err)
	}

	genes := m.nearestNeighbor(pairs)
	return decode(genes, demands), m.cost(genes), nil
}

// TourCost is the total path weight of depot -> order... -> depot.
func TourCost(depot domain.IntersectionID, order []*domain.Demand, table *domain.PathTable) (float64, error) {
	m, err := newCostMatrix(depot, order, table)
	if err != nil {
		return 0, fmt.Errorf("tour cost: %w", err)
	}

	genes := make([]int, len(order))
	for i := range genes {
		genes[i] = i
	}
	return m.cost(genes), nil
}

// nearestNeighbor picks, at each step, the closest demand that is allowed
// next. Ties go to the lowest demand index so the walk is deterministic.
func (m *costMatrix) nearestNeighbor(pairs pairing) []int {
	n := m.n
	done := make([]bool, n)
	order := make([]int, 0, n)
	cur := m.depot()

	for len(order) < n {
		best := -1
		for i := range n {
			if done[i] || !pairs.ready(i, done) {
				continue
			}
			if best < 0 || m.w[cur][i] < m.w[cur][best] {
				best = i
			}
		}

		done[best] = true
		order = append(order, best)
		cur = best
	}

	return order
}
