package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTourInsertAndRemove(t *testing.T) {
	req := NewRequest(1, time.Minute, 2, 2*time.Minute)
	extra := NewDemand(RoleDelivery, 3, 0)

	tour := &Tour{Depot: 0}
	if err := tour.Insert(0, req.Pickup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tour.Insert(1, req.Delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tour.Insert(1, extra); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, i := tour.Find(extra.ID); got != extra || i != 1 {
		t.Fatalf("find extra = (%v, %d), want index 1", got, i)
	}

	if err := tour.Insert(5, NewDemand(RolePickup, 4, 0)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("insert out of range: err = %v, want ErrInvalidInput", err)
	}
	if err := tour.Insert(0, req.Pickup); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("insert duplicate: err = %v, want ErrInvalidInput", err)
	}

	if removed := tour.RemoveAt(1); removed != extra {
		t.Fatalf("removed %v, want extra demand", removed)
	}
	if len(tour.Demands) != 2 || tour.Demands[1] != req.Delivery {
		t.Fatalf("unexpected order after removal: %v", tour.Demands)
	}
}

func TestSpecialNodesDeduplicates(t *testing.T) {
	a := NewRequest(1, 0, 2, 0)
	b := NewRequest(2, 0, 0, 0)

	got := SpecialNodes(0, []*Demand{a.Pickup, a.Delivery, b.Pickup, b.Delivery})
	want := []IntersectionID{0, 1, 2}

	if len(got) != len(want) {
		t.Fatalf("special nodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("special nodes = %v, want %v", got, want)
		}
	}
}

func TestCheckOrder(t *testing.T) {
	req := NewRequest(1, 0, 2, 0)
	lone := NewDemand(RoleDelivery, 3, 0)

	tests := []struct {
		name    string
		order   []*Demand
		wantErr bool
	}{
		{name: "valid", order: []*Demand{req.Pickup, lone, req.Delivery}},
		{name: "delivery first", order: []*Demand{req.Delivery, req.Pickup}, wantErr: true},
		{name: "duplicate", order: []*Demand{req.Pickup, req.Pickup, req.Delivery}, wantErr: true},
		{name: "orphan delivery", order: []*Demand{req.Delivery, lone}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckOrder(tc.order)
			if tc.wantErr && !errors.Is(err, ErrInconsistentState) {
				t.Fatalf("err = %v, want ErrInconsistentState", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSnapshotCopiesStops(t *testing.T) {
	req := NewRequest(1, 0, 2, 0)
	tour := &Tour{Depot: 0, Demands: []*Demand{req.Pickup, req.Delivery}}

	snap := NewTourSnapshot(3, StateTourComputed, tour)
	req.Pickup.Intersection = 9

	if snap.Stops[0].Intersection != 1 {
		t.Fatalf("snapshot stop changed with the tour: %d", snap.Stops[0].Intersection)
	}
	if snap.Version != 3 || snap.State != StateTourComputed {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
}
