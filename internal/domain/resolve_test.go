package domain

import "testing"

func testRoute() []Waypoint {
	return []Waypoint{
		{Position: 0, Handle: "wp-0", City: "Honolulu", Capacity: 1},
		{Position: 1, Handle: "wp-1", City: "Tokyo", Capacity: 1},
		{Position: 2, Handle: "wp-2", City: "Seoul", Capacity: 1},
		{Position: 3, Handle: "wp-3", City: "Tokyo", Capacity: 1},
	}
}

func TestResolveRef(t *testing.T) {
	route := testRoute()

	tests := []struct {
		name string
		ref  string
		want Resolution
	}{
		{"numeric", "2", Resolution{Kind: RefPosition, Position: 2}},
		{"numeric with spaces", " 1 ", Resolution{Kind: RefPosition, Position: 1}},
		{"numeric beyond route", "42", Resolution{Kind: RefPosition, Position: 42}},
		{"handle", "wp-3", Resolution{Kind: RefHandle, Position: 3}},
		{"city case-insensitive", "sEOUL", Resolution{Kind: RefCity, Position: 2}},
		{"duplicate city takes first in route order", "tokyo", Resolution{Kind: RefCity, Position: 1}},
		{"negative", "-1", Resolution{}},
		{"unknown", "Atlantis", Resolution{}},
		{"empty", "", Resolution{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRef(tt.ref, route)
			if got != tt.want {
				t.Fatalf("ResolveRef(%q) = %+v, want %+v", tt.ref, got, tt.want)
			}
			if got.OK() != (tt.want.Kind != RefUnresolved) {
				t.Errorf("OK() = %v for %+v", got.OK(), got)
			}
		})
	}
}

func TestTerminus(t *testing.T) {
	if _, ok := Terminus(nil); ok {
		t.Fatal("expected no terminus for empty route")
	}

	pos, ok := Terminus(testRoute())
	if !ok || pos != 3 {
		t.Fatalf("Terminus = %d, %v; want 3, true", pos, ok)
	}
}

func TestEnrichUsesCurrentWaypoints(t *testing.T) {
	records := []AuditRecord{
		{ID: 1, ShipmentID: 7, FromPosition: NoPosition, ToPosition: 0, OK: true, Message: MsgCreated},
		{ID: 2, ShipmentID: 7, FromPosition: 0, ToPosition: 1, OK: true, Message: MsgMoveOK},
	}

	entries := Enrich(records, testRoute())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].FromCity != "" || entries[0].FromHandle != "" {
		t.Errorf("creation record should have no from waypoint, got %q/%q", entries[0].FromCity, entries[0].FromHandle)
	}
	if entries[0].ToCity != "Honolulu" {
		t.Errorf("to city = %q, want Honolulu", entries[0].ToCity)
	}
	if entries[1].FromHandle != "wp-0" || entries[1].ToHandle != "wp-1" {
		t.Errorf("handles = %q -> %q", entries[1].FromHandle, entries[1].ToHandle)
	}
}
