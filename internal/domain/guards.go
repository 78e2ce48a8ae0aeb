package domain

import "fmt"

// Audit messages shared by the guards and the engine.
const (
	MsgMoveOK            = "move ok"
	MsgCompleted         = "shipment completed at final destination"
	MsgCreated           = "created at origin"
	MsgIntegrityError    = "integrity error"
	MsgInvalidRefs       = "invalid from/to"
	MsgNonAdjacent       = "non-adjacent move not allowed"
	MsgWaypointNotFound  = "waypoint not found"
	MsgAlreadyCompleted  = "shipment already completed"
	MsgNotAtFrom         = "shipment not at 'from'"
	MsgFromNotOccupied   = "'from' not occupied by this shipment"
	MsgDestOccupied      = "destination occupied"
	MsgResetStateChanged = "reset failed: state changed (shipment not at 'from')"
	MsgResetOriginTaken  = "reset failed: origin occupied"
	MsgResetCompleted    = "reset failed: shipment completed"
	MsgResetDisabled     = "reset failed: reset without lock disabled"
	MsgResetInvalidFrom  = "reset failed: invalid 'from'"
	MsgResetFromNotFound = "reset failed: from waypoint not found"
	DefaultResetReason   = "reset to origin"
	NoteAlreadyAtOrigin  = "already at origin"
)

// GuardResult is the outcome of a precondition check.
// Reason doubles as the audit message for a rejected attempt.
type GuardResult struct {
	Allowed bool
	Reason  string
	Kind    error
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(kind error, reason string) GuardResult {
	return GuardResult{Kind: kind, Reason: reason}
}

// Error converts the result to an error wrapping its kind, or nil when allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", r.Kind, r.Reason)
}

// CheckAdjacent allows only moves between consecutive positions.
func CheckAdjacent(from, to int) GuardResult {
	d := to - from
	if d != 1 && d != -1 {
		return deny(ErrIllegalMove, MsgNonAdjacent)
	}
	return allow()
}

// MoveContext is the state a move is validated against.
type MoveContext struct {
	Shipment *Shipment
	From     *Waypoint
	To       *Waypoint
}

// CanMove evaluates the current-state preconditions of a move.
// Rules, each a distinct failure:
//   - the shipment must still be in transit
//   - the shipment's recorded position must equal 'from'
//   - 'from' must be occupied by this shipment
//   - 'to' must have free capacity
func CanMove(ctx MoveContext) GuardResult {
	s := ctx.Shipment
	if s.Completed() {
		return deny(ErrStateMismatch, MsgAlreadyCompleted)
	}
	if s.Position != ctx.From.Position {
		return deny(ErrStateMismatch, MsgNotAtFrom)
	}
	if !ctx.From.OccupiedBy(s.ID) {
		return deny(ErrOccupancyMismatch, MsgFromNotOccupied)
	}
	if !ctx.To.IsFree() {
		return deny(ErrDestinationOccupied, MsgDestOccupied)
	}
	return allow()
}

// ResetContext is the state a reset is validated against.
type ResetContext struct {
	Shipment *Shipment
	From     *Waypoint
	Origin   *Waypoint
}

// CanReset evaluates the optimistic preconditions of a reset.
// Rules:
//   - completed shipments are never revived
//   - the shipment must still be at 'from' and hold it (race detector)
//   - the origin must be free or already held by this shipment
//
// A reset from the origin itself is allowed and is a no-op for the caller to apply.
func CanReset(ctx ResetContext) GuardResult {
	s := ctx.Shipment
	if s.Completed() {
		return deny(ErrStateMismatch, MsgResetCompleted)
	}
	if s.Position != ctx.From.Position || !ctx.From.OccupiedBy(s.ID) {
		return deny(ErrStateMismatch, MsgResetStateChanged)
	}
	if ctx.From.Position == OriginPosition {
		return allow()
	}
	if ctx.Origin.OccupantID != nil && !ctx.Origin.OccupiedBy(s.ID) {
		return deny(ErrDestinationOccupied, MsgResetOriginTaken)
	}
	return allow()
}
