package domain

import (
	"errors"
	"fmt"
	"testing"
)

func ptr(id int64) *int64 { return &id }

func TestCheckAdjacent(t *testing.T) {
	tests := []struct {
		from, to int
		allowed  bool
	}{
		{0, 1, true},
		{2, 1, true},
		{2, 4, false},
		{3, 3, false},
		{5, 0, false},
	}

	for _, tt := range tests {
		got := CheckAdjacent(tt.from, tt.to)
		if got.Allowed != tt.allowed {
			t.Errorf("CheckAdjacent(%d, %d).Allowed = %v, want %v", tt.from, tt.to, got.Allowed, tt.allowed)
		}
		if !tt.allowed && !errors.Is(got.Error(), ErrIllegalMove) {
			t.Errorf("CheckAdjacent(%d, %d) error = %v, want ErrIllegalMove", tt.from, tt.to, got.Error())
		}
	}
}

func TestCanMove(t *testing.T) {
	const id = 7

	tests := []struct {
		name     string
		shipment Shipment
		from     Waypoint
		to       Waypoint
		kind     error
		reason   string
	}{
		{
			name:     "allowed",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 1},
			from:     Waypoint{Position: 1, Capacity: 1, OccupantID: ptr(id)},
			to:       Waypoint{Position: 2, Capacity: 1},
		},
		{
			name:     "completed",
			shipment: Shipment{ID: id, State: StateCompleted, Position: 3},
			from:     Waypoint{Position: 3, Capacity: 1},
			to:       Waypoint{Position: 2, Capacity: 1},
			kind:     ErrStateMismatch,
			reason:   MsgAlreadyCompleted,
		},
		{
			name:     "not at from",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 2},
			from:     Waypoint{Position: 1, Capacity: 1, OccupantID: ptr(id)},
			to:       Waypoint{Position: 2, Capacity: 1},
			kind:     ErrStateMismatch,
			reason:   MsgNotAtFrom,
		},
		{
			name:     "from held by another shipment",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 1},
			from:     Waypoint{Position: 1, Capacity: 1, OccupantID: ptr(8)},
			to:       Waypoint{Position: 2, Capacity: 1},
			kind:     ErrOccupancyMismatch,
			reason:   MsgFromNotOccupied,
		},
		{
			name:     "destination occupied",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 1},
			from:     Waypoint{Position: 1, Capacity: 1, OccupantID: ptr(id)},
			to:       Waypoint{Position: 2, Capacity: 1, OccupantID: ptr(8)},
			kind:     ErrDestinationOccupied,
			reason:   MsgDestOccupied,
		},
		{
			name:     "destination with unexpected capacity",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 1},
			from:     Waypoint{Position: 1, Capacity: 1, OccupantID: ptr(id)},
			to:       Waypoint{Position: 2, Capacity: 2},
			kind:     ErrDestinationOccupied,
			reason:   MsgDestOccupied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanMove(MoveContext{Shipment: &tt.shipment, From: &tt.from, To: &tt.to})
			if tt.kind == nil {
				if !got.Allowed {
					t.Fatalf("expected allowed, got %v", got.Error())
				}
				return
			}
			if got.Allowed {
				t.Fatal("expected denial")
			}
			if !errors.Is(got.Error(), tt.kind) {
				t.Errorf("error = %v, want kind %v", got.Error(), tt.kind)
			}
			if got.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestCanReset(t *testing.T) {
	const id = 7

	tests := []struct {
		name     string
		shipment Shipment
		from     Waypoint
		origin   Waypoint
		kind     error
		reason   string
	}{
		{
			name:     "allowed",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 2},
			from:     Waypoint{Position: 2, Capacity: 1, OccupantID: ptr(id)},
			origin:   Waypoint{Position: 0, Capacity: 1},
		},
		{
			name:     "already at origin",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 0},
			from:     Waypoint{Position: 0, Capacity: 1, OccupantID: ptr(id)},
			origin:   Waypoint{Position: 0, Capacity: 1, OccupantID: ptr(id)},
		},
		{
			name:     "completed",
			shipment: Shipment{ID: id, State: StateCompleted, Position: 4},
			from:     Waypoint{Position: 4, Capacity: 1},
			origin:   Waypoint{Position: 0, Capacity: 1},
			kind:     ErrStateMismatch,
			reason:   MsgResetCompleted,
		},
		{
			name:     "moved since observed",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 3},
			from:     Waypoint{Position: 2, Capacity: 1},
			origin:   Waypoint{Position: 0, Capacity: 1},
			kind:     ErrStateMismatch,
			reason:   MsgResetStateChanged,
		},
		{
			name:     "origin held by another shipment",
			shipment: Shipment{ID: id, State: StateInTransit, Position: 2},
			from:     Waypoint{Position: 2, Capacity: 1, OccupantID: ptr(id)},
			origin:   Waypoint{Position: 0, Capacity: 1, OccupantID: ptr(9)},
			kind:     ErrDestinationOccupied,
			reason:   MsgResetOriginTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanReset(ResetContext{Shipment: &tt.shipment, From: &tt.from, Origin: &tt.origin})
			if tt.kind == nil {
				if !got.Allowed {
					t.Fatalf("expected allowed, got %v", got.Error())
				}
				return
			}
			if !errors.Is(got.Error(), tt.kind) {
				t.Errorf("error = %v, want kind %v", got.Error(), tt.kind)
			}
			if got.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(CheckAdjacent(0, 2).Error()); got != CodeIllegalMove {
		t.Errorf("CodeOf(illegal move) = %s", got)
	}
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Errorf("CodeOf(unknown) = %s", got)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("move: %w", CanMove(MoveContext{
			Shipment: &Shipment{ID: 1, State: StateInTransit, Position: 2},
			From:     &Waypoint{Position: 1},
			To:       &Waypoint{Position: 2, Capacity: 1},
		}).Error()), "state mismatch: shipment not at 'from'"},
		{fmt.Errorf("find shipment: %w: shipment 9", ErrNotFound), "not found: shipment 9"},
		{GuardResult{Kind: ErrDestinationOccupied, Reason: MsgDestOccupied}.Error(), "destination occupied"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
