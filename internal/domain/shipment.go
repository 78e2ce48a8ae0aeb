package domain

import "time"

type ShipmentState string

const (
	StateInTransit ShipmentState = "IN_TRANSIT"
	StateCompleted ShipmentState = "COMPLETED"
)

// Represents a shipment traversing the route.
// A shipment is created at the origin in IN_TRANSIT, moves one slot at a time and
// becomes COMPLETED exactly once, when it reaches the terminus. Once completed its
// position is frozen and it no longer occupies any waypoint.
type Shipment struct {
	ID        int64
	Handle    string
	Name      string
	State     ShipmentState
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Shipment) Completed() bool { return s.State == StateCompleted }
