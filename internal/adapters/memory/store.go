package memory

import (
	"context"
	"errors"
	"fmt"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/ports"
	"slices"
	"sync"
	"time"
)

// In-memory implementation of the Store port.
//
// Update runs under an exclusive lock against a private copy of the state that
// replaces the committed state only when the unit succeeds, so a failed unit
// leaves nothing behind. View reads the committed state under a shared lock.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

type state struct {
	waypoints    []domain.Waypoint
	shipments    map[int64]domain.Shipment
	audit        []domain.AuditRecord
	nextShipment int64
	nextAudit    int64
}

// NewStore returns a store holding the given waypoints, sorted by position.
func NewStore(waypoints []domain.Waypoint) *Store {
	wps := make([]domain.Waypoint, 0, len(waypoints))
	for i, w := range waypoints {
		if w.ID == 0 {
			w.ID = int64(i + 1)
		}
		if w.Capacity == 0 {
			w.Capacity = 1
		}
		w.OccupantID = copyID(w.OccupantID)
		wps = append(wps, w)
	}
	slices.SortFunc(wps, func(a, b domain.Waypoint) int { return a.Position - b.Position })

	return &Store{
		state: &state{
			waypoints:    wps,
			shipments:    map[int64]domain.Shipment{},
			nextShipment: 1,
			nextAudit:    1,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{st: s.state, now: s.now, readOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (st *state) clone() *state {
	c := &state{
		waypoints:    make([]domain.Waypoint, len(st.waypoints)),
		shipments:    make(map[int64]domain.Shipment, len(st.shipments)),
		audit:        slices.Clone(st.audit),
		nextShipment: st.nextShipment,
		nextAudit:    st.nextAudit,
	}
	for i, w := range st.waypoints {
		w.OccupantID = copyID(w.OccupantID)
		c.waypoints[i] = w
	}
	for id, sh := range st.shipments {
		c.shipments[id] = sh
	}
	return c
}

type tx struct {
	st       *state
	now      func() time.Time
	readOnly bool
}

var errReadOnly = errors.New("memory store: write in read-only unit")

func (t *tx) ListWaypoints(ctx context.Context) ([]domain.Waypoint, error) {
	out := make([]domain.Waypoint, len(t.st.waypoints))
	for i, w := range t.st.waypoints {
		w.OccupantID = copyID(w.OccupantID)
		out[i] = w
	}
	return out, nil
}

func (t *tx) WaypointByID(ctx context.Context, id int64) (*domain.Waypoint, error) {
	for _, w := range t.st.waypoints {
		if w.ID == id {
			w.OccupantID = copyID(w.OccupantID)
			return &w, nil
		}
	}
	return nil, fmt.Errorf("waypoint id=%d: %w", id, ports.ErrNotFound)
}

func (t *tx) ClaimWaypoint(ctx context.Context, position int, shipmentID int64) error {
	if t.readOnly {
		return errReadOnly
	}

	w, err := t.waypointAt(position)
	if err != nil {
		return err
	}
	if w.OccupantID != nil {
		return fmt.Errorf("claim waypoint position=%d: %w", position, ports.ErrConflict)
	}
	for _, other := range t.st.waypoints {
		if other.OccupiedBy(shipmentID) {
			return fmt.Errorf("claim waypoint position=%d: shipment %d already holds position %d: %w",
				position, shipmentID, other.Position, ports.ErrConflict)
		}
	}

	w.OccupantID = copyID(&shipmentID)
	w.UpdatedAt = t.now()
	return nil
}

func (t *tx) ReleaseWaypoint(ctx context.Context, position int, shipmentID int64) error {
	if t.readOnly {
		return errReadOnly
	}

	w, err := t.waypointAt(position)
	if err != nil {
		return err
	}
	if !w.OccupiedBy(shipmentID) {
		return fmt.Errorf("release waypoint position=%d: %w", position, ports.ErrConflict)
	}

	w.OccupantID = nil
	w.UpdatedAt = t.now()
	return nil
}

func (t *tx) waypointAt(position int) (*domain.Waypoint, error) {
	for i := range t.st.waypoints {
		if t.st.waypoints[i].Position == position {
			return &t.st.waypoints[i], nil
		}
	}
	return nil, fmt.Errorf("waypoint position=%d: %w", position, ports.ErrNotFound)
}

func (t *tx) ShipmentByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	sh, ok := t.st.shipments[id]
	if !ok {
		return nil, fmt.Errorf("shipment id=%d: %w", id, ports.ErrNotFound)
	}
	return &sh, nil
}

func (t *tx) ShipmentByHandle(ctx context.Context, handle string) (*domain.Shipment, error) {
	for _, sh := range t.st.shipments {
		if sh.Handle == handle {
			return &sh, nil
		}
	}
	return nil, fmt.Errorf("shipment handle=%q: %w", handle, ports.ErrNotFound)
}

func (t *tx) InsertShipment(ctx context.Context, s *domain.Shipment) (int64, error) {
	if t.readOnly {
		return 0, errReadOnly
	}

	for _, sh := range t.st.shipments {
		if sh.Handle == s.Handle {
			return 0, fmt.Errorf("insert shipment handle=%q: %w", s.Handle, ports.ErrConflict)
		}
	}

	id := t.st.nextShipment
	t.st.nextShipment++

	row := *s
	row.ID = id
	t.st.shipments[id] = row
	return id, nil
}

func (t *tx) SaveShipment(ctx context.Context, s *domain.Shipment, expectedPosition int) error {
	if t.readOnly {
		return errReadOnly
	}

	row, ok := t.st.shipments[s.ID]
	if !ok {
		return fmt.Errorf("save shipment id=%d: %w", s.ID, ports.ErrNotFound)
	}
	if row.Position != expectedPosition || row.State != domain.StateInTransit {
		return fmt.Errorf("save shipment id=%d: %w", s.ID, ports.ErrConflict)
	}

	row.Position = s.Position
	row.State = s.State
	row.UpdatedAt = s.UpdatedAt
	t.st.shipments[s.ID] = row
	return nil
}

func (t *tx) ClearShipments(ctx context.Context) (int, error) {
	if t.readOnly {
		return 0, errReadOnly
	}

	n := len(t.st.shipments)
	now := t.now()
	for i := range t.st.waypoints {
		if t.st.waypoints[i].OccupantID != nil {
			t.st.waypoints[i].OccupantID = nil
			t.st.waypoints[i].UpdatedAt = now
		}
	}
	t.st.shipments = map[int64]domain.Shipment{}
	t.st.audit = nil
	return n, nil
}

func (t *tx) AppendAudit(ctx context.Context, rec *domain.AuditRecord) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.st.shipments[rec.ShipmentID]; !ok {
		return fmt.Errorf("append audit shipment id=%d: %w", rec.ShipmentID, ports.ErrNotFound)
	}

	rec.ID = t.st.nextAudit
	t.st.nextAudit++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t.now()
	}
	t.st.audit = append(t.st.audit, *rec)
	return nil
}

func (t *tx) ListAudit(ctx context.Context, shipmentID int64) ([]domain.AuditRecord, error) {
	out := make([]domain.AuditRecord, 0)
	for _, r := range t.st.audit {
		if r.ShipmentID == shipmentID {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b domain.AuditRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
