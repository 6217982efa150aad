package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/ports"

	"github.com/stretchr/testify/require"
)

// completeNetwork links every ordered pair of nodes 0..n-1 with one segment.
func completeNetwork(t *testing.T, n int, length float64) *domain.RoadNetwork {
	t.Helper()
	net := domain.NewRoadNetwork()
	for i := range n {
		_, err := net.AddIntersection(domain.IntersectionID(i), domain.Coordinates{})
		require.NoError(t, err)
	}
	for i := range n {
		for j := range n {
			if i == j {
				continue
			}
			_, err := net.AddSegment(domain.IntersectionID(i), domain.IntersectionID(j), length, "")
			require.NoError(t, err)
		}
	}
	return net
}

// randomNetwork builds a strongly connected graph: a ring plus extra random arcs.
func randomNetwork(t *testing.T, rng *rand.Rand, n, extra int) *domain.RoadNetwork {
	t.Helper()
	net := domain.NewRoadNetwork()
	for i := range n {
		_, err := net.AddIntersection(domain.IntersectionID(i), domain.Coordinates{})
		require.NoError(t, err)
	}
	for i := range n {
		_, err := net.AddSegment(domain.IntersectionID(i), domain.IntersectionID((i+1)%n), 1+rng.Float64()*50, "")
		require.NoError(t, err)
	}
	for range extra {
		a, b := rng.IntN(n), rng.IntN(n)
		_, err := net.AddSegment(domain.IntersectionID(a), domain.IntersectionID(b), rng.Float64()*30, "")
		require.NoError(t, err)
	}
	return net
}

type graph struct {
	*domain.RoadNetwork
	t *testing.T
}

func newGraph(t *testing.T) graph {
	return graph{RoadNetwork: domain.NewRoadNetwork(), t: t}
}

func (n graph) node(ids ...domain.IntersectionID) graph {
	for _, id := range ids {
		_, err := n.AddIntersection(id, domain.Coordinates{})
		require.NoError(n.t, err)
	}
	return n
}

func (n graph) road(from, to domain.IntersectionID, length float64, name string) graph {
	_, err := n.AddSegment(from, to, length, name)
	require.NoError(n.t, err)
	return n
}

// twoWay adds segments in both directions.
func (n graph) twoWay(a, b domain.IntersectionID, length float64) graph {
	return n.road(a, b, length, "").road(b, a, length, "")
}

// memoryPathCache is a PathCache over a map, counting hits.
type memoryPathCache struct {
	mu   sync.Mutex
	rows map[string]map[domain.IntersectionID]ports.PathRecord
	hits int
	puts int
}

func newMemoryPathCache() *memoryPathCache {
	return &memoryPathCache{rows: map[string]map[domain.IntersectionID]ports.PathRecord{}}
}

func cacheKey(network string, src domain.IntersectionID) string {
	return fmt.Sprintf("%s/%d", network, src)
}

func (c *memoryPathCache) GetRow(_ context.Context, network string, src domain.IntersectionID) (map[domain.IntersectionID]ports.PathRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[cacheKey(network, src)]
	if ok {
		c.hits++
	}
	return row, nil
}

func (c *memoryPathCache) PutRow(_ context.Context, network string, src domain.IntersectionID, row map[domain.IntersectionID]ports.PathRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[cacheKey(network, src)] = row
	c.puts++
	return nil
}

func fixedStart() time.Time {
	return time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
}
