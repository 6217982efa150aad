package domain

import (
	"fmt"
	"math"
	"slices"
)

type IntersectionID int64

// Directed road segment between two intersections.
// Length is the traversal weight and is never negative.
type Segment struct {
	Name        string
	Length      float64
	Origin      IntersectionID
	Destination IntersectionID
}

// Intersection is a node of the road network. Incoming and Outgoing hold
// references to segments owned by the network.
type Intersection struct {
	ID       IntersectionID
	Location Coordinates
	Incoming []*Segment
	Outgoing []*Segment
}

// Name returns the first non-empty name among the incoming segments.
func (i *Intersection) Name() string {
	for _, s := range i.Incoming {
		if s.Name != "" {
			return s.Name
		}
	}
	return ""
}

// RoadNetwork is an in-memory directed road graph.
// It is built once and then used read-only by planning.
type RoadNetwork struct {
	nodes map[IntersectionID]*Intersection
	ids   []IntersectionID
	edges int
}

func NewRoadNetwork() *RoadNetwork {
	return &RoadNetwork{nodes: make(map[IntersectionID]*Intersection)}
}

func (n *RoadNetwork) AddIntersection(id IntersectionID, loc Coordinates) (*Intersection, error) {
	if _, ok := n.nodes[id]; ok {
		return nil, fmt.Errorf("add intersection %d: duplicate id: %w", id, ErrInvalidInput)
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("add intersection %d: %w", id, err)
	}

	node := &Intersection{ID: id, Location: loc}
	n.nodes[id] = node

	i, _ := slices.BinarySearch(n.ids, id)
	n.ids = slices.Insert(n.ids, i, id)
	return node, nil
}

func (n *RoadNetwork) AddSegment(origin, destination IntersectionID, length float64, name string) (*Segment, error) {
	if length < 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return nil, fmt.Errorf("add segment %d->%d: invalid length %v: %w", origin, destination, length, ErrInvalidInput)
	}

	from, ok := n.nodes[origin]
	if !ok {
		return nil, fmt.Errorf("add segment %d->%d: unknown origin: %w", origin, destination, ErrInvalidInput)
	}
	to, ok := n.nodes[destination]
	if !ok {
		return nil, fmt.Errorf("add segment %d->%d: unknown destination: %w", origin, destination, ErrInvalidInput)
	}

	seg := &Segment{Name: name, Length: length, Origin: origin, Destination: destination}
	from.Outgoing = append(from.Outgoing, seg)
	to.Incoming = append(to.Incoming, seg)
	n.edges++
	return seg, nil
}

func (n *RoadNetwork) Intersection(id IntersectionID) (*Intersection, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

func (n *RoadNetwork) Len() int { return len(n.nodes) }

func (n *RoadNetwork) Segments() int { return n.edges }

// IDs returns all intersection ids in ascending order.
func (n *RoadNetwork) IDs() []IntersectionID { return slices.Clone(n.ids) }
