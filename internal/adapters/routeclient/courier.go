package routeclient

import (
	"context"
	"errors"
	"fmt"
	"shipment-route-service/internal/api/dto"
	"shipment-route-service/internal/domain"
	"strings"
	"time"
)

type EventKind int

const (
	EventCreated EventKind = iota
	EventMoved
	EventHopFailed
	EventCompensated
	EventWaiting
	EventResynced
	EventDelivered
)

// Event reports courier progress.
type Event struct {
	Kind     EventKind
	Shipment *dto.ShipmentResponse
	From, To string
	Cycle    int
	Wait     time.Duration
	Err      error
}

// Courier drives one shipment from the origin to the terminus, one hop at a
// time. A hop that still fails after the client's per-call retries is
// compensated by moving the shipment back one hop, after which the courier
// waits min(MaxWait, 2^cycle seconds) and resumes.
type Courier struct {
	Client *Client
	// MaxCycles bounds consecutive failed cycles; zero means no bound.
	MaxCycles int
	MaxWait   time.Duration
	OnEvent   func(Event)

	sleep func(ctx context.Context, d time.Duration) error
}

func NewCourier(client *Client) *Courier {
	return &Courier{Client: client, MaxWait: 60 * time.Second, sleep: sleepCtx}
}

var errGaveUp = errors.New("courier: gave up")

// Deliver creates the shipment and moves it along the route until it completes.
func (c *Courier) Deliver(ctx context.Context, handle, name string) (*dto.ShipmentResponse, error) {
	route, err := c.Client.Route(ctx)
	if err != nil {
		return nil, fmt.Errorf("deliver: fetch route: %w", err)
	}
	if len(route) < 2 {
		return nil, fmt.Errorf("deliver: route has %d stops", len(route))
	}
	labels := stopLabels(route)

	s, err := c.Client.CreateShipment(ctx, handle, name)
	if err != nil {
		return nil, fmt.Errorf("deliver: create shipment: %w", err)
	}
	c.emit(Event{Kind: EventCreated, Shipment: s, To: labels[0]})

	i, cycle := 0, 0
	for i < len(route)-1 {
		from, to := labels[i], labels[i+1]

		moved, err := c.Client.Move(ctx, s.ID, from, to)
		if err == nil {
			s = moved
			i++
			cycle = 0
			c.emit(Event{Kind: EventMoved, Shipment: s, From: from, To: to})
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch {
		case needsResync(err):
			// Our view is stale, e.g. an earlier attempt landed after all.
			s, i, err = c.resync(ctx, s.ID, route)
			if err != nil {
				return nil, err
			}
			if s.Status == string(domain.StateCompleted) {
				i = len(route) - 1
			}
			c.emit(Event{Kind: EventResynced, Shipment: s, To: labels[i]})
			continue
		case !hopFailure(err):
			return nil, fmt.Errorf("deliver: move %s -> %s: %w", from, to, err)
		}

		c.emit(Event{Kind: EventHopFailed, Shipment: s, From: from, To: to, Cycle: cycle, Err: err})

		cycle++
		if c.MaxCycles > 0 && cycle > c.MaxCycles {
			return nil, fmt.Errorf("%w after %d cycles: last error: %v", errGaveUp, c.MaxCycles, err)
		}

		if i > 0 {
			back, err := c.compensate(ctx, s.ID, labels[i], labels[i-1])
			if err != nil {
				return nil, err
			}
			if back != nil {
				s = back
				i--
			} else {
				s, i, err = c.resync(ctx, s.ID, route)
				if err != nil {
					return nil, err
				}
			}
		}

		if err := c.wait(ctx, cycle, labels[i]); err != nil {
			return nil, err
		}
	}

	c.emit(Event{Kind: EventDelivered, Shipment: s, To: labels[len(labels)-1]})
	return s, nil
}

// compensate moves the shipment back one hop, retrying until it succeeds.
// A nil shipment with a nil error means the shipment moved on its own and
// the caller must resync.
func (c *Courier) compensate(ctx context.Context, id int64, from, to string) (*dto.ShipmentResponse, error) {
	for attempt := 1; ; attempt++ {
		s, err := c.Client.Move(ctx, id, from, to)
		if err == nil {
			c.emit(Event{Kind: EventCompensated, Shipment: s, From: from, To: to})
			return s, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if needsResync(err) {
			return nil, nil
		}
		if !hopFailure(err) {
			return nil, fmt.Errorf("deliver: compensate %s -> %s: %w", from, to, err)
		}
		if c.MaxCycles > 0 && attempt > c.MaxCycles {
			return nil, fmt.Errorf("%w compensating %s -> %s: %v", errGaveUp, from, to, err)
		}
		if err := c.wait(ctx, attempt, from); err != nil {
			return nil, err
		}
	}
}

func (c *Courier) resync(ctx context.Context, id int64, route []dto.RouteStop) (*dto.ShipmentResponse, int, error) {
	s, err := c.Client.Shipment(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("deliver: resync: %w", err)
	}
	for i, stop := range route {
		if stop.Idx == s.CurrentIdx {
			return s, i, nil
		}
	}
	return nil, 0, fmt.Errorf("deliver: resync: shipment at idx %d is not on the route", s.CurrentIdx)
}

func (c *Courier) wait(ctx context.Context, cycle int, at string) error {
	d := time.Duration(1<<min(cycle, 16)) * time.Second
	if c.MaxWait > 0 {
		d = min(d, c.MaxWait)
	}
	c.emit(Event{Kind: EventWaiting, To: at, Cycle: cycle, Wait: d})

	sleep := c.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return sleep(ctx, d)
}

func (c *Courier) emit(e Event) {
	if c.OnEvent != nil {
		c.OnEvent(e)
	}
}

// needsResync reports that the server's state differs from the courier's view.
func needsResync(err error) bool {
	switch ErrorCode(err) {
	case string(domain.CodeStateMismatch), string(domain.CodeOccupancyMismatch), string(domain.CodeIntegrityConflict):
		return true
	}
	return false
}

// hopFailure reports a failure worth backing off from: retries exhausted on a
// transient error, a network failure, or another shipment holding the next stop.
func hopFailure(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient() || se.ErrCode == string(domain.CodeDestinationOccupied)
	}
	return true
}

// stopLabels names each stop by city, or by handle where a city repeats on the route.
func stopLabels(route []dto.RouteStop) []string {
	seen := make(map[string]int, len(route))
	for _, stop := range route {
		seen[strings.ToLower(stop.City)]++
	}

	labels := make([]string, len(route))
	for i, stop := range route {
		labels[i] = stop.City
		if seen[strings.ToLower(stop.City)] > 1 || strings.TrimSpace(stop.City) == "" {
			labels[i] = stop.Handle
		}
	}
	return labels
}
