package domain

import "time"

// NoPosition marks an audit position that did not resolve to a waypoint
// (the creation record's "from", or an unresolvable reference).
const NoPosition = -1

// Immutable record of one transition attempt and its outcome.
type AuditRecord struct {
	ID           int64
	ShipmentID   int64
	FromPosition int
	ToPosition   int
	OK           bool
	Message      string
	CreatedAt    time.Time
}

// AuditEntry is an AuditRecord enriched with the current metadata of the
// waypoints it references. Enrichment reflects the registry at read time.
type AuditEntry struct {
	AuditRecord
	FromCity   string
	FromHandle string
	ToCity     string
	ToHandle   string
}

// Enrich resolves record positions against the given waypoints.
func Enrich(records []AuditRecord, waypoints []Waypoint) []AuditEntry {
	byPos := make(map[int]Waypoint, len(waypoints))
	for _, w := range waypoints {
		byPos[w.Position] = w
	}

	out := make([]AuditEntry, 0, len(records))
	for _, r := range records {
		e := AuditEntry{AuditRecord: r}
		if w, ok := byPos[r.FromPosition]; ok {
			e.FromCity, e.FromHandle = w.City, w.Handle
		}
		if w, ok := byPos[r.ToPosition]; ok {
			e.ToCity, e.ToHandle = w.City, w.Handle
		}
		out = append(out, e)
	}
	return out
}
