package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasible reports that two nodes that must be connected have no finite path.
	ErrInfeasible = errors.New("infeasible")

	// ErrInvalidInput reports caller misuse: unknown demands, missing setup, bad indices.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInconsistentState reports a broken internal invariant, such as a path
	// table that does not cover a leg of the tour.
	ErrInconsistentState = errors.New("inconsistent state")
)

// UnreachableError names the pair of intersections that could not be connected.
// To is zero-valued with Unknown set when From itself is absent from the network.
type UnreachableError struct {
	From    IntersectionID
	To      IntersectionID
	Unknown bool
}

func (e *UnreachableError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("intersection %d is not part of the road network", e.From)
	}
	return fmt.Sprintf("no path from intersection %d to %d", e.From, e.To)
}

func (e *UnreachableError) Is(target error) bool { return target == ErrInfeasible }
