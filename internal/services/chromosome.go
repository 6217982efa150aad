package services

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"tour-planning-service/internal/domain"

	"github.com/google/uuid"
)

// costMatrix holds leg weights between demand indices; index n is the depot.
type costMatrix struct {
	n int
	w [][]float64
}

func newCostMatrix(depot domain.IntersectionID, demands []*domain.Demand, table *domain.PathTable) (*costMatrix, error) {
	n := len(demands)
	at := func(i int) domain.IntersectionID {
		if i == n {
			return depot
		}
		return demands[i].Intersection
	}

	w := make([][]float64, n+1)
	for i := range w {
		w[i] = make([]float64, n+1)
		for j := range w[i] {
			weight, ok := table.Weight(at(i), at(j))
			if !ok {
				return nil, fmt.Errorf("no path table entry %d->%d: %w", at(i), at(j), domain.ErrInconsistentState)
			}
			w[i][j] = weight
		}
	}

	return &costMatrix{n: n, w: w}, nil
}

func (m *costMatrix) depot() int { return m.n }

func (m *costMatrix) cost(genes []int) float64 {
	if len(genes) == 0 {
		return 0
	}
	total := m.w[m.depot()][genes[0]]
	for i := 1; i < len(genes); i++ {
		total += m.w[genes[i-1]][genes[i]]
	}
	return total + m.w[genes[len(genes)-1]][m.depot()]
}

// pairing maps each demand index to its partner, or -1 for a stand-alone
// demand (no sibling present in the list).
type pairing struct {
	partner  []int
	isPickup []bool
}

func pairDemands(demands []*domain.Demand) (pairing, error) {
	p := pairing{
		partner:  make([]int, len(demands)),
		isPickup: make([]bool, len(demands)),
	}

	byRequest := make(map[uuid.UUID][]int)
	for i, d := range demands {
		p.partner[i] = -1
		p.isPickup[i] = d.Role == domain.RolePickup
		if d.Paired() {
			byRequest[d.RequestID] = append(byRequest[d.RequestID], i)
		}
	}

	for id, members := range byRequest {
		if len(members) == 1 {
			continue
		}
		if len(members) != 2 || p.isPickup[members[0]] == p.isPickup[members[1]] {
			return pairing{}, fmt.Errorf("request %s must have one pickup and one delivery: %w", id, domain.ErrInvalidInput)
		}
		p.partner[members[0]] = members[1]
		p.partner[members[1]] = members[0]
	}

	return p, nil
}

// constrained reports whether i is a delivery with a pickup in the list.
func (p pairing) constrained(i int) bool {
	return !p.isPickup[i] && p.partner[i] >= 0
}

// ready reports whether i may be visited given the visited set.
func (p pairing) ready(i int, done []bool) bool {
	return !p.constrained(i) || done[p.partner[i]]
}

type chromosome struct {
	genes []int
	cost  float64
}

func (c chromosome) clone() chromosome {
	return chromosome{genes: slices.Clone(c.genes), cost: c.cost}
}

// randomInsertion builds a precedence-valid permutation by inserting each
// request at a random position, its delivery somewhere after its pickup.
func randomInsertion(rng *rand.Rand, pairs pairing) []int {
	n := len(pairs.partner)
	genes := make([]int, 0, n)

	for _, i := range rng.Perm(n) {
		if pairs.constrained(i) {
			continue // placed together with its pickup
		}

		p := rng.IntN(len(genes) + 1)
		genes = slices.Insert(genes, p, i)

		if j := pairs.partner[i]; j >= 0 {
			d := p + 1 + rng.IntN(len(genes)-p)
			genes = slices.Insert(genes, d, j)
		}
	}
	return genes
}

// orderCrossover is OX1: the child keeps a slice of a in place and fills
// the remaining positions with the genes of b in b's cyclic order.
func orderCrossover(rng *rand.Rand, a, b []int) []int {
	n := len(a)
	child := make([]int, n)
	if n < 2 {
		copy(child, a)
		return child
	}

	lo, hi := rng.IntN(n), rng.IntN(n)
	if lo > hi {
		lo, hi = hi, lo
	}

	taken := make([]bool, n)
	for i := lo; i <= hi; i++ {
		child[i] = a[i]
		taken[a[i]] = true
	}

	pos := (hi + 1) % n
	for k := range n {
		g := b[(hi+1+k)%n]
		if taken[g] {
			continue
		}
		child[pos] = g
		taken[g] = true
		pos = (pos + 1) % n
	}
	return child
}

// repair moves every delivery found before its pickup to a random position
// after the pickup.
func repair(rng *rand.Rand, genes []int, pairs pairing) []int {
	for i := 0; i < len(genes); i++ {
		g := genes[i]
		if !pairs.constrained(g) {
			continue
		}

		pi := slices.Index(genes, pairs.partner[g])
		if pi < i {
			continue
		}

		genes = slices.Delete(genes, i, i+1)
		// pickup now sits at pi-1; any index in [pi, len] follows it
		at := pi + rng.IntN(len(genes)-pi+1)
		genes = slices.Insert(genes, at, g)
		i--
	}
	return genes
}

// mutate swaps two genes or relocates one, with equal probability.
func mutate(rng *rand.Rand, genes []int) []int {
	n := len(genes)
	if n < 2 {
		return genes
	}

	i, j := rng.IntN(n), rng.IntN(n)
	if rng.IntN(2) == 0 {
		genes[i], genes[j] = genes[j], genes[i]
		return genes
	}

	g := genes[i]
	genes = slices.Delete(genes, i, i+1)
	return slices.Insert(genes, min(j, len(genes)), g)
}

func decode(genes []int, demands []*domain.Demand) []*domain.Demand {
	out := make([]*domain.Demand, len(genes))
	for i, g := range genes {
		out[i] = demands[g]
	}
	return out
}
