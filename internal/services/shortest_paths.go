package services

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/logger"
	"tour-planning-service/internal/platform/metrics"
	"tour-planning-service/internal/platform/obs"
	"tour-planning-service/internal/ports"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShortestPathIndex builds path tables between special nodes by running one
// Dijkstra pass per source over the whole road network. Passes share nothing
// but the read-only network and run concurrently.
type ShortestPathIndex struct {
	Network ports.RoadNetwork

	// Cache is optional. Rows are namespaced by NetworkID.
	Cache     ports.PathCache
	NetworkID string

	// Workers bounds concurrent passes; zero means GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

func NewShortestPathIndex(network ports.RoadNetwork, log *zap.Logger) *ShortestPathIndex {
	return &ShortestPathIndex{Network: network, Logger: logger.OrNop(log)}
}

// ComputeAll returns a table covering every ordered pair of special nodes,
// self pairs included. If any pair is disconnected, or a node is unknown,
// it fails with an error matching domain.ErrInfeasible and no table.
func (idx *ShortestPathIndex) ComputeAll(ctx context.Context, special []domain.IntersectionID) (_ *domain.PathTable, err error) {
	defer obs.Time(ctx, "paths.ComputeAll")(&err)

	if idx.Network == nil {
		return nil, fmt.Errorf("compute paths: road network is nil: %w", domain.ErrInvalidInput)
	}

	nodes := uniqueNodes(special)
	for _, id := range nodes {
		if _, ok := idx.Network.Intersection(id); !ok {
			return nil, fmt.Errorf("compute paths: %w", &domain.UnreachableError{From: id, Unknown: true})
		}
	}

	table := domain.NewPathTable(nodes)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers())

	for _, src := range nodes {
		g.Go(func() error {
			row, err := idx.row(gctx, src, nodes)
			if err != nil {
				return err
			}

			mu.Lock()
			for _, p := range row {
				table.Put(p)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute paths: %w", err)
	}

	return table, nil
}

func (idx *ShortestPathIndex) workers() int {
	if idx.Workers > 0 {
		return idx.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (idx *ShortestPathIndex) log() *zap.Logger {
	return logger.OrNop(idx.Logger)
}

// row resolves the paths from src to every target, from cache when the
// cached row decodes for all of them.
func (idx *ShortestPathIndex) row(ctx context.Context, src domain.IntersectionID, targets []domain.IntersectionID) ([]domain.Path, error) {
	cached := idx.cachedRecords(ctx, src)
	if paths, ok := idx.decodeRow(src, targets, cached); ok {
		metrics.ShortestPathPasses.WithLabelValues("cache").Inc()
		return paths, nil
	}

	start := time.Now()
	labels, err := idx.dijkstra(ctx, src)
	if err != nil {
		return nil, err
	}
	metrics.ShortestPathPasses.WithLabelValues("computed").Inc()
	metrics.ShortestPathDuration.Observe(time.Since(start).Seconds())

	paths := make([]domain.Path, 0, len(targets))
	for _, to := range targets {
		l, ok := labels[to]
		if !ok {
			return nil, &domain.UnreachableError{From: src, To: to}
		}
		paths = append(paths, domain.Path{
			From:     src,
			To:       to,
			Segments: tracePath(labels, to),
			Weight:   l.dist,
		})
	}

	idx.storeRecords(ctx, src, cached, paths)
	return paths, nil
}

// label is the per-pass scratch state of one intersection.
type label struct {
	dist    float64
	via     *domain.Segment
	settled bool
}

func (idx *ShortestPathIndex) dijkstra(ctx context.Context, src domain.IntersectionID) (map[domain.IntersectionID]*label, error) {
	labels := map[domain.IntersectionID]*label{src: {dist: 0}}

	pq := &frontier{{id: src, dist: 0}}
	settled := 0

	for pq.Len() > 0 {
		if settled%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		item := heap.Pop(pq).(frontierItem)
		cur := labels[item.id]
		// Stale entry left behind by a later improvement.
		if cur.settled || item.dist > cur.dist {
			continue
		}
		cur.settled = true
		settled++

		node, ok := idx.Network.Intersection(item.id)
		if !ok {
			continue
		}

		for _, seg := range node.Outgoing {
			nd := cur.dist + seg.Length
			next, seen := labels[seg.Destination]
			switch {
			case !seen:
				labels[seg.Destination] = &label{dist: nd, via: seg}
			case !next.settled && nd < next.dist:
				next.dist = nd
				next.via = seg
			default:
				continue
			}
			heap.Push(pq, frontierItem{id: seg.Destination, dist: nd})
		}
	}

	return labels, nil
}

func tracePath(labels map[domain.IntersectionID]*label, to domain.IntersectionID) []*domain.Segment {
	var rev []*domain.Segment
	for seg := labels[to].via; seg != nil; seg = labels[seg.Origin].via {
		rev = append(rev, seg)
	}

	out := make([]*domain.Segment, len(rev))
	for i, seg := range rev {
		out[len(rev)-1-i] = seg
	}
	return out
}

func uniqueNodes(ids []domain.IntersectionID) []domain.IntersectionID {
	seen := make(map[domain.IntersectionID]struct{}, len(ids))
	out := make([]domain.IntersectionID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (idx *ShortestPathIndex) cachedRecords(ctx context.Context, src domain.IntersectionID) map[domain.IntersectionID]ports.PathRecord {
	if idx.Cache == nil {
		return nil
	}

	row, err := idx.Cache.GetRow(ctx, idx.NetworkID, src)
	if err != nil {
		idx.log().Warn("path cache read failed", zap.Int64("source", int64(src)), zap.Error(err))
		return nil
	}
	return row
}

func (idx *ShortestPathIndex) storeRecords(
	ctx context.Context,
	src domain.IntersectionID,
	cached map[domain.IntersectionID]ports.PathRecord,
	paths []domain.Path,
) {
	if idx.Cache == nil {
		return
	}

	row := make(map[domain.IntersectionID]ports.PathRecord, len(cached)+len(paths))
	for to, rec := range cached {
		row[to] = rec
	}
	for _, p := range paths {
		hops, ok := idx.encodeHops(p)
		if !ok {
			continue
		}
		row[p.To] = ports.PathRecord{To: p.To, Weight: p.Weight, Hops: hops}
	}

	if err := idx.Cache.PutRow(ctx, idx.NetworkID, src, row); err != nil {
		idx.log().Warn("path cache write failed", zap.Int64("source", int64(src)), zap.Error(err))
	}
}

// encodeHops maps each segment of p to its index in the origin's outgoing list.
func (idx *ShortestPathIndex) encodeHops(p domain.Path) ([]int, bool) {
	hops := make([]int, 0, len(p.Segments))
	for _, seg := range p.Segments {
		node, ok := idx.Network.Intersection(seg.Origin)
		if !ok {
			return nil, false
		}
		at := -1
		for i, out := range node.Outgoing {
			if out == seg {
				at = i
				break
			}
		}
		if at < 0 {
			return nil, false
		}
		hops = append(hops, at)
	}
	return hops, true
}

// decodeRow rebuilds paths from cached hop lists. Any record that no longer
// matches the network turns the whole row into a miss.
func (idx *ShortestPathIndex) decodeRow(
	src domain.IntersectionID,
	targets []domain.IntersectionID,
	row map[domain.IntersectionID]ports.PathRecord,
) ([]domain.Path, bool) {
	if row == nil {
		return nil, false
	}

	paths := make([]domain.Path, 0, len(targets))
	for _, to := range targets {
		rec, ok := row[to]
		if !ok {
			return nil, false
		}

		cur := src
		weight := 0.0
		segs := make([]*domain.Segment, 0, len(rec.Hops))
		for _, h := range rec.Hops {
			node, ok := idx.Network.Intersection(cur)
			if !ok || h < 0 || h >= len(node.Outgoing) {
				return nil, false
			}
			seg := node.Outgoing[h]
			segs = append(segs, seg)
			weight += seg.Length
			cur = seg.Destination
		}

		if cur != to || math.Abs(weight-rec.Weight) > 1e-9*math.Max(1, rec.Weight) {
			return nil, false
		}
		paths = append(paths, domain.Path{From: src, To: to, Segments: segs, Weight: rec.Weight})
	}
	return paths, true
}

type frontierItem struct {
	id   domain.IntersectionID
	dist float64
}

// frontier is a min-heap on (dist, id); the id breaks ties so equal-cost
// path selection is reproducible.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].id < f[j].id
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	*f = old[:n-1]
	return it
}
