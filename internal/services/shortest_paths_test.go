package services

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveDistances is the O(V^2) linear-scan Dijkstra.
func naiveDistances(net *domain.RoadNetwork, src domain.IntersectionID) map[domain.IntersectionID]float64 {
	dist := map[domain.IntersectionID]float64{}
	for _, id := range net.IDs() {
		dist[id] = math.Inf(1)
	}
	dist[src] = 0
	done := map[domain.IntersectionID]bool{}

	for range net.Len() {
		u, best := domain.IntersectionID(-1), math.Inf(1)
		for _, id := range net.IDs() {
			if !done[id] && dist[id] < best {
				u, best = id, dist[id]
			}
		}
		if u < 0 {
			break
		}
		done[u] = true
		node, _ := net.Intersection(u)
		for _, seg := range node.Outgoing {
			if nd := dist[u] + seg.Length; nd < dist[seg.Destination] {
				dist[seg.Destination] = nd
			}
		}
	}
	return dist
}

func assertPathWellFormed(t *testing.T, p domain.Path) {
	t.Helper()
	at := p.From
	sum := 0.0
	for _, seg := range p.Segments {
		require.Equal(t, at, seg.Origin, "path %d->%d is not contiguous", p.From, p.To)
		at = seg.Destination
		sum += seg.Length
	}
	assert.Equal(t, p.To, at)
	assert.InDelta(t, p.Weight, sum, 1e-9)
}

func TestComputeAllMatchesNaiveReference(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed))
		net := randomNetwork(t, rng, 40, 120)

		special := []domain.IntersectionID{0, 3, 7, 11, 19, 38}
		idx := NewShortestPathIndex(net, nil)
		idx.Workers = 3

		table, err := idx.ComputeAll(context.Background(), special)
		require.NoError(t, err)
		require.True(t, table.Covers(special))
		assert.Equal(t, len(special)*len(special), table.Len())

		for _, from := range special {
			want := naiveDistances(net, from)
			for _, to := range special {
				p, ok := table.Lookup(from, to)
				require.True(t, ok)
				assert.InDelta(t, want[to], p.Weight, 1e-9, "seed=%d %d->%d", seed, from, to)
				assertPathWellFormed(t, p)
			}
		}
	}
}

func TestComputeAllTriangleInequality(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	net := randomNetwork(t, rng, 30, 90)
	special := []domain.IntersectionID{0, 5, 9, 14, 22, 29}

	table, err := NewShortestPathIndex(net, nil).ComputeAll(context.Background(), special)
	require.NoError(t, err)

	for _, a := range special {
		for _, b := range special {
			for _, c := range special {
				ab, _ := table.Weight(a, b)
				bc, _ := table.Weight(b, c)
				ac, _ := table.Weight(a, c)
				assert.LessOrEqual(t, ac, ab+bc+1e-9)
			}
		}
	}
}

func TestComputeAllSelfPairIsEmpty(t *testing.T) {
	net := newGraph(t).node(1, 2).twoWay(1, 2, 4).road(1, 1, 3, "loop")

	table, err := NewShortestPathIndex(net, nil).ComputeAll(context.Background(), []domain.IntersectionID{1, 2, 1})
	require.NoError(t, err)

	self, ok := table.Lookup(1, 1)
	require.True(t, ok)
	assert.Zero(t, self.Weight)
	assert.Empty(t, self.Segments)
	assert.Equal(t, []domain.IntersectionID{1, 2}, table.Nodes())
}

func TestComputeAllDisconnectedIsInfeasible(t *testing.T) {
	net := newGraph(t).node(1, 2, 3, 4).twoWay(1, 2, 1).twoWay(3, 4, 1)

	table, err := NewShortestPathIndex(net, nil).ComputeAll(context.Background(), []domain.IntersectionID{1, 2, 3})
	require.Error(t, err)
	assert.Nil(t, table)
	assert.True(t, errors.Is(err, domain.ErrInfeasible))

	var ue *domain.UnreachableError
	require.True(t, errors.As(err, &ue))
	assert.False(t, ue.Unknown)
}

func TestComputeAllOneWayIsInfeasible(t *testing.T) {
	net := newGraph(t).node(1, 2).road(1, 2, 5, "")

	_, err := NewShortestPathIndex(net, nil).ComputeAll(context.Background(), []domain.IntersectionID{1, 2})
	assert.ErrorIs(t, err, domain.ErrInfeasible)
}

func TestComputeAllUnknownNodeIsInfeasible(t *testing.T) {
	net := newGraph(t).node(1, 2).twoWay(1, 2, 1)

	_, err := NewShortestPathIndex(net, nil).ComputeAll(context.Background(), []domain.IntersectionID{1, 99})
	require.ErrorIs(t, err, domain.ErrInfeasible)

	var ue *domain.UnreachableError
	require.True(t, errors.As(err, &ue))
	assert.True(t, ue.Unknown)
	assert.Equal(t, domain.IntersectionID(99), ue.From)
}

func TestComputeAllTieBreaksOnLowestID(t *testing.T) {
	// 1 -> 2 -> 4 and 1 -> 3 -> 4 cost the same.
	net := newGraph(t).node(1, 2, 3, 4).
		road(1, 3, 1, "via three").road(1, 2, 1, "via two").
		road(3, 4, 1, "").road(2, 4, 1, "").
		road(4, 1, 2, "")

	for range 10 {
		table, err := NewShortestPathIndex(net, nil).ComputeAll(context.Background(), []domain.IntersectionID{1, 4})
		require.NoError(t, err)

		p, _ := table.Lookup(1, 4)
		require.Len(t, p.Segments, 2)
		assert.Equal(t, "via two", p.Segments[0].Name)
	}
}

func TestComputeAllHonoursCancellation(t *testing.T) {
	net := completeNetwork(t, 5, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewShortestPathIndex(net, nil).ComputeAll(ctx, []domain.IntersectionID{0, 1, 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeAllReadsAndWritesCache(t *testing.T) {
	net := completeNetwork(t, 6, 2)
	cache := newMemoryPathCache()
	special := []domain.IntersectionID{0, 2, 4}

	idx := NewShortestPathIndex(net, nil)
	idx.Cache = cache
	idx.NetworkID = "grid"

	first, err := idx.ComputeAll(context.Background(), special)
	require.NoError(t, err)
	assert.Equal(t, 3, cache.puts)
	assert.Zero(t, cache.hits)

	second, err := idx.ComputeAll(context.Background(), special)
	require.NoError(t, err)
	assert.Equal(t, 3, cache.hits)
	assert.Equal(t, 3, cache.puts, "a full hit must not rewrite the row")

	for _, a := range special {
		for _, b := range special {
			p1, _ := first.Lookup(a, b)
			p2, _ := second.Lookup(a, b)
			assert.Equal(t, p1.Weight, p2.Weight)
			assert.Equal(t, p1.Segments, p2.Segments)
		}
	}
}

func TestComputeAllIgnoresStaleCacheRow(t *testing.T) {
	net := newGraph(t).node(1, 2).twoWay(1, 2, 3)
	cache := newMemoryPathCache()
	cache.rows[cacheKey("n", 1)] = map[domain.IntersectionID]ports.PathRecord{
		1: {To: 1, Weight: 0},
		2: {To: 2, Weight: 3, Hops: []int{7}},
	}

	idx := NewShortestPathIndex(net, nil)
	idx.Cache = cache
	idx.NetworkID = "n"

	table, err := idx.ComputeAll(context.Background(), []domain.IntersectionID{1, 2})
	require.NoError(t, err)

	p, _ := table.Lookup(1, 2)
	assert.Equal(t, 3.0, p.Weight)
	require.Len(t, p.Segments, 1)
	assert.Equal(t, []int{0}, cache.rows[cacheKey("n", 1)][2].Hops)
}
