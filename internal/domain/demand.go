package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role int

const (
	RolePickup Role = iota
	RoleDelivery
)

func (r Role) String() string {
	switch r {
	case RolePickup:
		return "pickup"
	case RoleDelivery:
		return "delivery"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole maps "pickup" / "delivery" onto a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "pickup":
		return RolePickup, nil
	case "delivery":
		return RoleDelivery, nil
	default:
		return 0, fmt.Errorf("parse role %q: %w", s, ErrInvalidInput)
	}
}

// Represents a single stop of the tour.
// A Demand belongs to at most one Request (RequestID is uuid.Nil for a
// stand-alone stop). ArrivalAt and DepartureAt are populated by the
// schedule builder once the demand has been placed in a tour.
type Demand struct {
	ID               uuid.UUID
	RequestID        uuid.UUID
	Role             Role
	Intersection     IntersectionID
	IntersectionName string
	ServiceDuration  time.Duration
	ArrivalAt        time.Time
	DepartureAt      time.Time
}

func NewDemand(role Role, at IntersectionID, service time.Duration) *Demand {
	return &Demand{
		ID:              uuid.New(),
		Role:            role,
		Intersection:    at,
		ServiceDuration: service,
	}
}

// Paired reports whether the demand takes part in a pickup-before-delivery constraint.
func (d *Demand) Paired() bool { return d.RequestID != uuid.Nil }

// Request couples exactly one pickup with one delivery.
type Request struct {
	ID       uuid.UUID
	Pickup   *Demand
	Delivery *Demand
}

func NewRequest(pickupAt IntersectionID, pickupService time.Duration, deliveryAt IntersectionID, deliveryService time.Duration) *Request {
	req := &Request{
		ID:       uuid.New(),
		Pickup:   NewDemand(RolePickup, pickupAt, pickupService),
		Delivery: NewDemand(RoleDelivery, deliveryAt, deliveryService),
	}
	req.Pickup.RequestID = req.ID
	req.Delivery.RequestID = req.ID
	return req
}

// Validate checks that the request is well formed.
func (r *Request) Validate() error {
	if r == nil || r.Pickup == nil || r.Delivery == nil {
		return fmt.Errorf("request: pickup and delivery are required: %w", ErrInvalidInput)
	}
	if r.Pickup.Role != RolePickup || r.Delivery.Role != RoleDelivery {
		return fmt.Errorf("request %s: roles must be pickup then delivery: %w", r.ID, ErrInvalidInput)
	}
	if r.Pickup.RequestID != r.ID || r.Delivery.RequestID != r.ID {
		return fmt.Errorf("request %s: demands do not reference the request: %w", r.ID, ErrInvalidInput)
	}
	if r.Pickup.ServiceDuration < 0 || r.Delivery.ServiceDuration < 0 {
		return fmt.Errorf("request %s: negative service duration: %w", r.ID, ErrInvalidInput)
	}
	return nil
}
