package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/ports"
	"time"
)

// SQL-backed implementation of the Store port, shared by Postgres and SQLite.
//
// Every write that depends on state the engine has just read is expressed as a
// conditional UPDATE. When no row matches, the write lost a race and the unit
// fails with ports.ErrConflict; the caller's transaction is then rolled back.
type SQLStore struct {
	DB      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{
		DB:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	if s.DB == nil {
		return errors.New("sql store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("view: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&sqlTx{tx: tx, d: s.dialect, now: s.now, readOnly: true})
}

func (s *SQLStore) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	if s.DB == nil {
		return errors.New("sql store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, d: s.dialect, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if s.dialect.isConflict(err) {
			return fmt.Errorf("update: commit tx: %w", ports.ErrConflict)
		}
		return fmt.Errorf("update: commit tx: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx       *sql.Tx
	d        Dialect
	now      func() time.Time
	readOnly bool
}

var errReadOnly = errors.New("sql store: write in read-only unit")

// classify maps driver errors onto the port's sentinels.
func (t *sqlTx) classify(op string, err error) error {
	switch {
	case t.d.isMissingRef(err):
		return fmt.Errorf("%s: %w", op, ports.ErrNotFound)
	case t.d.isConflict(err):
		return fmt.Errorf("%s: %w", op, ports.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const waypointColumns = `id, position, handle, city, capacity, occupant_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWaypoint(r rowScanner) (domain.Waypoint, error) {
	var (
		w        domain.Waypoint
		occupant sql.NullInt64
	)
	if err := r.Scan(&w.ID, &w.Position, &w.Handle, &w.City, &w.Capacity, &occupant, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return domain.Waypoint{}, err
	}
	if occupant.Valid {
		id := occupant.Int64
		w.OccupantID = &id
	}
	return w, nil
}

func (t *sqlTx) ListWaypoints(ctx context.Context) ([]domain.Waypoint, error) {
	query := `SELECT ` + waypointColumns + ` FROM waypoints ORDER BY position;`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list waypoints: query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Waypoint, 0, 16)
	for rows.Next() {
		w, err := scanWaypoint(rows)
		if err != nil {
			return nil, fmt.Errorf("list waypoints: scan row: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list waypoints: row iteration: %w", err)
	}
	return out, nil
}

func (t *sqlTx) WaypointByID(ctx context.Context, id int64) (*domain.Waypoint, error) {
	query := t.d.rebind(`SELECT ` + waypointColumns + ` FROM waypoints WHERE id = ?;`)
	w, err := scanWaypoint(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("waypoint id=%d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("waypoint id=%d: %w", id, err)
	}
	return &w, nil
}

func (t *sqlTx) waypointExists(ctx context.Context, position int) (bool, error) {
	var n int
	query := t.d.rebind(`SELECT COUNT(*) FROM waypoints WHERE position = ?;`)
	if err := t.tx.QueryRowContext(ctx, query, position).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// missOrConflict explains a conditional write on a waypoint that matched no row.
func (t *sqlTx) missOrConflict(ctx context.Context, op string, position int) error {
	ok, err := t.waypointExists(ctx, position)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ports.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, ports.ErrConflict)
}

func (t *sqlTx) ClaimWaypoint(ctx context.Context, position int, shipmentID int64) error {
	if t.readOnly {
		return errReadOnly
	}

	op := fmt.Sprintf("claim waypoint position=%d", position)
	n, err := t.exec(ctx, `
	UPDATE waypoints
	SET occupant_id = ?, updated_at = ?
	WHERE position = ? AND occupant_id IS NULL;
	`, shipmentID, t.now(), position)
	if err != nil {
		return t.classify(op, err)
	}
	if n == 0 {
		return t.missOrConflict(ctx, op, position)
	}
	return nil
}

func (t *sqlTx) ReleaseWaypoint(ctx context.Context, position int, shipmentID int64) error {
	if t.readOnly {
		return errReadOnly
	}

	op := fmt.Sprintf("release waypoint position=%d", position)
	n, err := t.exec(ctx, `
	UPDATE waypoints
	SET occupant_id = NULL, updated_at = ?
	WHERE position = ? AND occupant_id = ?;
	`, t.now(), position, shipmentID)
	if err != nil {
		return t.classify(op, err)
	}
	if n == 0 {
		return t.missOrConflict(ctx, op, position)
	}
	return nil
}

const shipmentColumns = `id, handle, name, state, position, created_at, updated_at`

func scanShipment(r rowScanner) (*domain.Shipment, error) {
	var (
		s     domain.Shipment
		state string
	)
	if err := r.Scan(&s.ID, &s.Handle, &s.Name, &state, &s.Position, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.State = domain.ShipmentState(state)
	return &s, nil
}

func (t *sqlTx) ShipmentByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	query := t.d.rebind(`SELECT ` + shipmentColumns + ` FROM shipments WHERE id = ?;`)
	s, err := scanShipment(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shipment id=%d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("shipment id=%d: %w", id, err)
	}
	return s, nil
}

func (t *sqlTx) ShipmentByHandle(ctx context.Context, handle string) (*domain.Shipment, error) {
	query := t.d.rebind(`SELECT ` + shipmentColumns + ` FROM shipments WHERE handle = ?;`)
	s, err := scanShipment(t.tx.QueryRowContext(ctx, query, handle))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shipment handle=%q: %w", handle, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("shipment handle=%q: %w", handle, err)
	}
	return s, nil
}

func (t *sqlTx) InsertShipment(ctx context.Context, s *domain.Shipment) (int64, error) {
	if t.readOnly {
		return 0, errReadOnly
	}

	query := t.d.rebind(`
	INSERT INTO shipments (handle, name, state, position, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id;
	`)

	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		s.Handle, s.Name, string(s.State), s.Position, s.CreatedAt, s.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, t.classify(fmt.Sprintf("insert shipment handle=%q", s.Handle), err)
	}
	return id, nil
}

func (t *sqlTx) SaveShipment(ctx context.Context, s *domain.Shipment, expectedPosition int) error {
	if t.readOnly {
		return errReadOnly
	}

	op := fmt.Sprintf("save shipment id=%d", s.ID)
	n, err := t.exec(ctx, `
	UPDATE shipments
	SET position = ?, state = ?, updated_at = ?
	WHERE id = ? AND position = ? AND state = ?;
	`, s.Position, string(s.State), s.UpdatedAt, s.ID, expectedPosition, string(domain.StateInTransit))
	if err != nil {
		return t.classify(op, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := t.ShipmentByID(ctx, s.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, ports.ErrConflict)
}

func (t *sqlTx) ClearShipments(ctx context.Context) (int, error) {
	if t.readOnly {
		return 0, errReadOnly
	}

	if _, err := t.exec(ctx, `
	UPDATE waypoints
	SET occupant_id = NULL, updated_at = ?
	WHERE occupant_id IS NOT NULL;
	`, t.now()); err != nil {
		return 0, fmt.Errorf("clear shipments: release waypoints: %w", err)
	}
	if _, err := t.exec(ctx, `DELETE FROM shipment_audit;`); err != nil {
		return 0, fmt.Errorf("clear shipments: delete audit: %w", err)
	}
	n, err := t.exec(ctx, `DELETE FROM shipments;`)
	if err != nil {
		return 0, fmt.Errorf("clear shipments: delete shipments: %w", err)
	}
	return int(n), nil
}

func (t *sqlTx) AppendAudit(ctx context.Context, rec *domain.AuditRecord) error {
	if t.readOnly {
		return errReadOnly
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t.now()
	}

	query := t.d.rebind(`
	INSERT INTO shipment_audit (shipment_id, from_position, to_position, ok, message, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id;
	`)
	err := t.tx.QueryRowContext(ctx, query,
		rec.ShipmentID, rec.FromPosition, rec.ToPosition, rec.OK, rec.Message, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return t.classify(fmt.Sprintf("append audit shipment id=%d", rec.ShipmentID), err)
	}
	return nil
}

func (t *sqlTx) ListAudit(ctx context.Context, shipmentID int64) ([]domain.AuditRecord, error) {
	query := t.d.rebind(`
	SELECT id, shipment_id, from_position, to_position, ok, message, created_at
	FROM shipment_audit
	WHERE shipment_id = ?
	ORDER BY created_at, id;
	`)
	rows, err := t.tx.QueryContext(ctx, query, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list audit: query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditRecord, 0, 16)
	for rows.Next() {
		var r domain.AuditRecord
		if err := rows.Scan(&r.ID, &r.ShipmentID, &r.FromPosition, &r.ToPosition, &r.OK, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("list audit: scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: row iteration: %w", err)
	}
	return out, nil
}
