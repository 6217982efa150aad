package domain

import (
	"time"
)

// AverageSpeed is the vehicle speed, in length units per hour, used to turn
// path weights into travel time.
const AverageSpeed = 15.0

// TravelTime converts a path weight into driving time at AverageSpeed.
func TravelTime(weight float64) time.Duration {
	seconds := weight * 3600 / AverageSpeed
	return time.Duration(seconds * float64(time.Second))
}

// Path is the shortest route between two intersections. A path from a node
// to itself has no segments and zero weight.
type Path struct {
	From     IntersectionID
	To       IntersectionID
	Segments []*Segment
	Weight   float64
}

type PathKey struct {
	From IntersectionID
	To   IntersectionID
}

// PathTable maps ordered pairs of special nodes to their shortest path.
type PathTable struct {
	nodes []IntersectionID
	paths map[PathKey]Path
}

func NewPathTable(nodes []IntersectionID) *PathTable {
	return &PathTable{
		nodes: nodes,
		paths: make(map[PathKey]Path, len(nodes)*len(nodes)),
	}
}

func (t *PathTable) Put(p Path) {
	t.paths[PathKey{From: p.From, To: p.To}] = p
}

func (t *PathTable) Lookup(from, to IntersectionID) (Path, bool) {
	if t == nil {
		return Path{}, false
	}
	p, ok := t.paths[PathKey{From: from, To: to}]
	return p, ok
}

func (t *PathTable) Weight(from, to IntersectionID) (float64, bool) {
	p, ok := t.Lookup(from, to)
	return p.Weight, ok
}

// Covers reports whether every ordered pair of the given nodes has an entry.
func (t *PathTable) Covers(nodes []IntersectionID) bool {
	if t == nil {
		return len(nodes) == 0
	}
	for _, a := range nodes {
		for _, b := range nodes {
			if _, ok := t.paths[PathKey{From: a, To: b}]; !ok {
				return false
			}
		}
	}
	return true
}

// Nodes returns the special nodes the table was built for.
func (t *PathTable) Nodes() []IntersectionID {
	if t == nil {
		return nil
	}
	return t.nodes
}

func (t *PathTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.paths)
}
