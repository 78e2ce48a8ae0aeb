package domain

import "time"

// Represents a single slot on the route.
// Position defines the total order of the route: position 0 is the origin and
// the highest position is the terminus. Capacity is always 1 in this version.
type Waypoint struct {
	ID         int64
	Position   int
	Handle     string
	City       string
	Capacity   int
	OccupantID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OriginPosition is the position every shipment starts from.
const OriginPosition = 0

// IsFree reports whether the waypoint can accept a shipment.
func (w *Waypoint) IsFree() bool {
	return w.Capacity == 1 && w.OccupantID == nil
}

// OccupiedBy reports whether shipmentID currently holds the slot.
func (w *Waypoint) OccupiedBy(shipmentID int64) bool {
	return w.OccupantID != nil && *w.OccupantID == shipmentID
}

// Terminus returns the highest position in an ordered waypoint list.
func Terminus(waypoints []Waypoint) (int, bool) {
	if len(waypoints) == 0 {
		return 0, false
	}
	return waypoints[len(waypoints)-1].Position, true
}

// FindByPosition returns the waypoint at pos, if any.
func FindByPosition(waypoints []Waypoint, pos int) (*Waypoint, bool) {
	for i := range waypoints {
		if waypoints[i].Position == pos {
			return &waypoints[i], true
		}
	}
	return nil, false
}
