package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"shipment-route-service/internal/adapters/memory"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/ports"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var cities = []string{"Honolulu", "Tokyo", "Seoul", "Shanghai", "Beijing", "Hong Kong"}

func testWaypoints(n int) []domain.Waypoint {
	wps := make([]domain.Waypoint, 0, n)
	for i := 0; i < n; i++ {
		wps = append(wps, domain.Waypoint{
			Position: i,
			Handle:   fmt.Sprintf("wp-%d", i),
			City:     cities[i%len(cities)],
			Capacity: 1,
		})
	}
	return wps
}

func newTestEngine(t *testing.T, n int, opts Options) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore(testWaypoints(n))
	return NewEngine(store, opts), store
}

func defaultOptions() Options {
	return Options{EnforceAdjacent: true, AllowResetWithoutLock: true}
}

func mustCreate(t *testing.T, e *Engine, handle string) *domain.Shipment {
	t.Helper()
	s, err := e.CreateShipment(context.Background(), handle, "")
	require.NoError(t, err)
	return s
}

func mustMove(t *testing.T, e *Engine, id int64, from, to string) *domain.Shipment {
	t.Helper()
	s, err := e.Move(context.Background(), MoveRequest{ShipmentID: id, From: from, To: to})
	require.NoError(t, err)
	return s
}

func auditOf(t *testing.T, e *Engine, id int64) []domain.AuditEntry {
	t.Helper()
	trail, err := e.AuditTrail(context.Background(), id)
	require.NoError(t, err)
	return trail.Entries
}

func occupant(t *testing.T, e *Engine, pos int) *int64 {
	t.Helper()
	wps, err := e.ListWaypoints(context.Background())
	require.NoError(t, err)
	w, ok := domain.FindByPosition(wps, pos)
	require.True(t, ok, "waypoint %d missing", pos)
	return w.OccupantID
}

func TestCreateShipment(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 4, defaultOptions())

	s, err := e.CreateShipment(ctx, " alpha ", "")
	require.NoError(t, err)
	require.Equal(t, "alpha", s.Handle)
	require.Equal(t, "alpha", s.Name, "name defaults to handle")
	require.Equal(t, domain.StateInTransit, s.State)
	require.Equal(t, 0, s.Position)
	require.Equal(t, s.ID, *occupant(t, e, 0))

	entries := auditOf(t, e, s.ID)
	require.Len(t, entries, 1)
	require.Equal(t, domain.NoPosition, entries[0].FromPosition)
	require.Equal(t, 0, entries[0].ToPosition)
	require.Equal(t, domain.MsgCreated, entries[0].Message)

	_, err = e.CreateShipment(ctx, "beta", "Beta")
	require.ErrorIs(t, err, domain.ErrConflict, "origin occupied")

	mustMove(t, e, s.ID, "0", "1")

	_, err = e.CreateShipment(ctx, "alpha", "again")
	require.ErrorIs(t, err, domain.ErrConflict, "duplicate handle")

	b, err := e.CreateShipment(ctx, "beta", "Beta")
	require.NoError(t, err)
	require.Equal(t, "Beta", b.Name)

	_, err = e.CreateShipment(ctx, "   ", "x")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFindShipment(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 3, defaultOptions())
	s := mustCreate(t, e, "alpha")

	got, err := e.FindShipment(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "alpha", got.Handle)

	got, err = e.FindShipmentByHandle(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, s.ID, got.ID)

	_, err = e.FindShipment(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.FindShipmentByHandle(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveWaypoint(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 4, defaultOptions())
	s := mustCreate(t, e, "alpha")

	for _, ref := range []string{"0", "wp-0", "honolulu"} {
		w, err := e.ResolveWaypoint(ctx, ref)
		require.NoError(t, err, ref)
		require.Equal(t, 0, w.Position)
		require.NotNil(t, w.Occupant)
		require.Equal(t, s.ID, w.Occupant.ID)
	}

	_, err := e.ResolveWaypoint(ctx, "Atlantis")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.ResolveWaypoint(ctx, "17")
	require.ErrorIs(t, err, domain.ErrNotFound)

	w, err := e.WaypointByID(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "wp-1", w.Handle)
	require.Nil(t, w.Occupant)

	statuses, err := e.WaypointStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	require.NotNil(t, statuses[0].Occupant)
	require.Nil(t, statuses[1].Occupant)
}

func TestMoveToTerminusCompletesShipment(t *testing.T) {
	e, _ := newTestEngine(t, 4, defaultOptions())
	s := mustCreate(t, e, "alpha")

	s = mustMove(t, e, s.ID, "0", "1")
	require.Equal(t, 1, s.Position)
	require.Nil(t, occupant(t, e, 0))
	require.Equal(t, s.ID, *occupant(t, e, 1))

	// Mixed reference forms: handle and city.
	mustMove(t, e, s.ID, "wp-1", "seoul")
	s = mustMove(t, e, s.ID, "2", "3")

	require.Equal(t, domain.StateCompleted, s.State)
	require.Equal(t, 3, s.Position)
	for pos := 0; pos < 4; pos++ {
		require.Nil(t, occupant(t, e, pos), "waypoint %d should be vacant", pos)
	}

	entries := auditOf(t, e, s.ID)
	require.Len(t, entries, 5)
	last := entries[len(entries)-2:]
	require.Equal(t, domain.MsgMoveOK, last[0].Message)
	require.Equal(t, 2, last[0].FromPosition)
	require.Equal(t, 3, last[0].ToPosition)
	require.Equal(t, domain.MsgCompleted, last[1].Message)
	require.Equal(t, 3, last[1].FromPosition)
	require.Equal(t, 3, last[1].ToPosition)
	require.True(t, last[1].OK)

	// Terminal: never mutated again.
	_, err := e.Move(context.Background(), MoveRequest{ShipmentID: s.ID, From: "3", To: "2"})
	require.ErrorIs(t, err, domain.ErrStateMismatch)

	got, err := e.FindShipment(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StateCompleted, got.State)
	require.Equal(t, 3, got.Position)
}

func TestMoveRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		setup   func(t *testing.T, e *Engine, store *memory.Store) int64
		from    string
		to      string
		kind    error
		message string
		auditFrom,
		auditTo int
	}{
		{
			name: "non-adjacent",
			opts: defaultOptions(),
			setup: func(t *testing.T, e *Engine, _ *memory.Store) int64 {
				s := mustCreate(t, e, "alpha")
				mustMove(t, e, s.ID, "0", "1")
				mustMove(t, e, s.ID, "1", "2")
				return s.ID
			},
			from: "2", to: "4",
			kind: domain.ErrIllegalMove, message: domain.MsgNonAdjacent,
			auditFrom: 2, auditTo: 4,
		},
		{
			name: "unresolvable reference",
			opts: defaultOptions(),
			setup: func(t *testing.T, e *Engine, _ *memory.Store) int64 {
				return mustCreate(t, e, "alpha").ID
			},
			from: "0", to: "Atlantis",
			kind: domain.ErrInvalidReference, message: domain.MsgInvalidRefs,
			auditFrom: 0, auditTo: domain.NoPosition,
		},
		{
			name: "waypoint missing",
			opts: Options{},
			setup: func(t *testing.T, e *Engine, _ *memory.Store) int64 {
				return mustCreate(t, e, "alpha").ID
			},
			from: "0", to: "9",
			kind: domain.ErrNotFound, message: domain.MsgWaypointNotFound,
			auditFrom: 0, auditTo: 9,
		},
		{
			name: "shipment not at from",
			opts: defaultOptions(),
			setup: func(t *testing.T, e *Engine, _ *memory.Store) int64 {
				return mustCreate(t, e, "alpha").ID
			},
			from: "1", to: "2",
			kind: domain.ErrStateMismatch, message: domain.MsgNotAtFrom,
			auditFrom: 1, auditTo: 2,
		},
		{
			name: "from not held by shipment",
			opts: defaultOptions(),
			setup: func(t *testing.T, e *Engine, store *memory.Store) int64 {
				s := mustCreate(t, e, "alpha")
				mustMove(t, e, s.ID, "0", "1")
				// Drift the registry behind the engine's back.
				err := store.Update(context.Background(), func(tx ports.Tx) error {
					return tx.ReleaseWaypoint(context.Background(), 1, s.ID)
				})
				require.NoError(t, err)
				return s.ID
			},
			from: "1", to: "2",
			kind: domain.ErrOccupancyMismatch, message: domain.MsgFromNotOccupied,
			auditFrom: 1, auditTo: 2,
		},
		{
			name: "destination occupied",
			opts: defaultOptions(),
			setup: func(t *testing.T, e *Engine, _ *memory.Store) int64 {
				a := mustCreate(t, e, "alpha")
				mustMove(t, e, a.ID, "0", "1")
				return mustCreate(t, e, "beta").ID
			},
			from: "0", to: "1",
			kind: domain.ErrDestinationOccupied, message: domain.MsgDestOccupied,
			auditFrom: 0, auditTo: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, store := newTestEngine(t, 5, tt.opts)
			id := tt.setup(t, e, store)

			before := auditOf(t, e, id)
			shipBefore, err := e.FindShipment(ctx, id)
			require.NoError(t, err)

			_, err = e.Move(ctx, MoveRequest{ShipmentID: id, From: tt.from, To: tt.to})
			require.ErrorIs(t, err, tt.kind)

			after := auditOf(t, e, id)
			require.Len(t, after, len(before)+1, "exactly one audit record per rejected attempt")

			rec := after[len(after)-1]
			require.False(t, rec.OK)
			require.Equal(t, tt.message, rec.Message)
			require.Equal(t, tt.auditFrom, rec.FromPosition)
			require.Equal(t, tt.auditTo, rec.ToPosition)

			shipAfter, err := e.FindShipment(ctx, id)
			require.NoError(t, err)
			require.Equal(t, shipBefore.Position, shipAfter.Position, "rejection must not mutate")
			require.Equal(t, shipBefore.State, shipAfter.State)
		})
	}
}

func TestMoveUnknownShipment(t *testing.T) {
	e, _ := newTestEngine(t, 3, defaultOptions())

	_, err := e.Move(context.Background(), MoveRequest{ShipmentID: 42, From: "0", To: "1"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Adjacency is decided before the shipment lookup.
	_, err = e.Move(context.Background(), MoveRequest{ShipmentID: 42, From: "0", To: "2"})
	require.ErrorIs(t, err, domain.ErrIllegalMove)
}

func TestMoveWithoutAdjacencyAllowsJumps(t *testing.T) {
	e, _ := newTestEngine(t, 5, Options{})
	s := mustCreate(t, e, "alpha")

	s = mustMove(t, e, s.ID, "0", "3")
	require.Equal(t, 3, s.Position)
	require.Equal(t, domain.StateInTransit, s.State)

	s = mustMove(t, e, s.ID, "3", "1")
	require.Equal(t, 1, s.Position)

	s = mustMove(t, e, s.ID, "1", "4")
	require.Equal(t, domain.StateCompleted, s.State)
}

// conflictStore makes SaveShipment lose the commit race once.
type conflictStore struct {
	ports.Store
	armed atomic.Bool
}

type conflictTx struct {
	ports.Tx
	store *conflictStore
}

func (s *conflictStore) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	return s.Store.Update(ctx, func(tx ports.Tx) error {
		return fn(&conflictTx{Tx: tx, store: s})
	})
}

func (t *conflictTx) SaveShipment(ctx context.Context, sh *domain.Shipment, expected int) error {
	if t.store.armed.CompareAndSwap(true, false) {
		return fmt.Errorf("save shipment: %w", ports.ErrConflict)
	}
	return t.Tx.SaveShipment(ctx, sh, expected)
}

func TestMoveIntegrityConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &conflictStore{Store: memory.NewStore(testWaypoints(4))}
	e := NewEngine(store, defaultOptions())

	s := mustCreate(t, e, "alpha")
	store.armed.Store(true)

	_, err := e.Move(ctx, MoveRequest{ShipmentID: s.ID, From: "0", To: "1"})
	require.ErrorIs(t, err, domain.ErrIntegrityConflict)

	got, err := e.FindShipment(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Position)
	require.Equal(t, s.ID, *occupant(t, e, 0), "origin release must be rolled back")
	require.Nil(t, occupant(t, e, 1), "destination claim must be rolled back")

	entries := auditOf(t, e, s.ID)
	require.Len(t, entries, 2)
	require.False(t, entries[1].OK)
	require.Equal(t, domain.MsgIntegrityError, entries[1].Message)

	// The caller retries and wins.
	mustMove(t, e, s.ID, "0", "1")
}

func TestResetIntegrityConflictIsStateMismatch(t *testing.T) {
	ctx := context.Background()
	store := &conflictStore{Store: memory.NewStore(testWaypoints(4))}
	e := NewEngine(store, defaultOptions())

	s := mustCreate(t, e, "alpha")
	mustMove(t, e, s.ID, "0", "1")
	store.armed.Store(true)

	_, err := e.Reset(ctx, ResetRequest{ShipmentID: s.ID})
	require.ErrorIs(t, err, domain.ErrStateMismatch)

	got, err := e.FindShipment(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Position)

	entries := auditOf(t, e, s.ID)
	require.Equal(t, domain.MsgResetStateChanged, entries[len(entries)-1].Message)
}

func TestConcurrentMovesExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 5, defaultOptions())

	s := mustCreate(t, e, "alpha")
	mustMove(t, e, s.ID, "0", "1")
	before := len(auditOf(t, e, s.ID))

	const contenders = 8
	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		g.Go(func() error {
			_, err := e.Move(ctx, MoveRequest{ShipmentID: s.ID, From: "1", To: "2"})
			switch {
			case err == nil:
				wins.Add(1)
				return nil
			case errors.Is(err, domain.ErrStateMismatch), errors.Is(err, domain.ErrIntegrityConflict):
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, wins.Load())

	got, err := e.FindShipment(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Position)
	require.Nil(t, occupant(t, e, 1))
	require.Equal(t, s.ID, *occupant(t, e, 2))

	require.Len(t, auditOf(t, e, s.ID), before+contenders)
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 3, defaultOptions())

	const contenders = 6
	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		g.Go(func() error {
			_, err := e.CreateShipment(ctx, fmt.Sprintf("s-%d", i), "")
			switch {
			case err == nil:
				wins.Add(1)
				return nil
			case errors.Is(err, domain.ErrConflict):
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, wins.Load())
	require.NotNil(t, occupant(t, e, 0))
}

func TestShipmentsAdvanceWithoutSharingWaypoints(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 6, defaultOptions())

	// Stagger three shipments at positions 3, 2 and 1, then push them concurrently.
	var ids []int64
	for i := 0; i < 3; i++ {
		s := mustCreate(t, e, fmt.Sprintf("s-%d", i))
		ids = append(ids, s.ID)
		for p := 0; p < 3-i; p++ {
			mustMove(t, e, s.ID, fmt.Sprint(p), fmt.Sprint(p+1))
		}
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			for {
				s, err := e.FindShipment(ctx, id)
				if err != nil {
					return err
				}
				if s.Completed() {
					return nil
				}

				_, err = e.Move(ctx, MoveRequest{
					ShipmentID: id,
					From:       fmt.Sprint(s.Position),
					To:         fmt.Sprint(s.Position + 1),
				})
				switch {
				case err == nil, errors.Is(err, domain.ErrDestinationOccupied):
				default:
					return err
				}

				statuses, err := e.WaypointStatuses(ctx)
				if err != nil {
					return err
				}
				held := map[int64]int{}
				for _, st := range statuses {
					if st.OccupantID == nil {
						continue
					}
					held[*st.OccupantID]++
					if held[*st.OccupantID] > 1 {
						return fmt.Errorf("shipment %d holds more than one waypoint", *st.OccupantID)
					}
				}
				runtime.Gosched()
			}
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		s, err := e.FindShipment(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.StateCompleted, s.State)
		require.Equal(t, 5, s.Position)
	}
	for pos := 0; pos < 6; pos++ {
		require.Nil(t, occupant(t, e, pos))
	}
}

func TestClearAllShipments(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 4, defaultOptions())

	a := mustCreate(t, e, "alpha")
	mustMove(t, e, a.ID, "0", "1")
	mustCreate(t, e, "beta")

	n, err := e.ClearAllShipments(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for pos := 0; pos < 4; pos++ {
		require.Nil(t, occupant(t, e, pos))
	}
	_, err = e.FindShipment(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.AuditTrail(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	mustCreate(t, e, "alpha")
}

func TestAuditTrailOrdering(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 4, defaultOptions())

	s := mustCreate(t, e, "alpha")
	mustMove(t, e, s.ID, "0", "1")
	_, err := e.Move(ctx, MoveRequest{ShipmentID: s.ID, From: "0", To: "1"})
	require.Error(t, err)
	_, err = e.Reset(ctx, ResetRequest{ShipmentID: s.ID, Reason: "retry"})
	require.NoError(t, err)

	entries := auditOf(t, e, s.ID)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		require.False(t, cur.CreatedAt.Before(prev.CreatedAt))
		require.Greater(t, cur.ID, prev.ID)
	}

	require.Equal(t, "Honolulu", entries[1].FromCity)
	require.Equal(t, "wp-1", entries[1].ToHandle)
	require.Equal(t, "reset: retry", entries[3].Message)

	_, err = e.AuditTrail(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
