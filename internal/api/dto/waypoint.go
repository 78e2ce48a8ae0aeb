package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// WaypointRef is a symbolic waypoint reference. JSON numbers and strings are
// both accepted and kept in their textual form for the resolver.
type WaypointRef string

func (r *WaypointRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*r = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = WaypointRef(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("waypoint reference must be a number or string")
	}
	*r = WaypointRef(n.String())
	return nil
}

type RouteStop struct {
	ID     int64  `json:"id"`
	Idx    int    `json:"idx"`
	City   string `json:"city"`
	Handle string `json:"handle"`
}

type RouteResponse struct {
	Count int         `json:"count"`
	Order []RouteStop `json:"order"`
}

type OccupantResponse struct {
	ID         int64  `json:"id"`
	Handle     string `json:"handle"`
	Status     string `json:"status"`
	CurrentIdx int    `json:"current_idx"`
}

type WaypointResponse struct {
	ID                   int64             `json:"id"`
	Idx                  int               `json:"idx"`
	Handle               string            `json:"handle"`
	City                 string            `json:"city"`
	Capacity             int               `json:"capacity"`
	OccupiedByShipmentID *int64            `json:"occupied_by_shipment_id"`
	OccupiedBy           *OccupantResponse `json:"occupied_by"`
}

type ListWaypointsResponse struct {
	Count     int                `json:"count"`
	Waypoints []WaypointResponse `json:"waypoints"`
}

type GetWaypointResponse struct {
	Success  bool             `json:"success"`
	Waypoint WaypointResponse `json:"waypoint"`
}
