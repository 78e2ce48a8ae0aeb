package routeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"shipment-route-service/internal/api/dto"
	"shipment-route-service/internal/platform/obs"
	"strings"
	"time"
)

// Client calls the shipment route service over HTTP. Every call is retried on
// transient failures; see doWithRetry.
type Client struct {
	baseURL string
	session *http.Client

	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// OnRetry is told about each failed attempt that will be retried.
	OnRetry func(attempt int, wait time.Duration, err error)

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(baseURL string, session *http.Client) *Client {
	if session == nil {
		session = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		session:     session,
		MaxAttempts: 3,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  5 * time.Second,
		sleep:       sleepCtx,
	}
}

// call sends one JSON request (with retries) and decodes the response into out.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) (err error) {
	defer obs.Time(ctx, "routeclient."+op)(&err)

	var body []byte
	if in != nil {
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, method, path, body)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) Route(ctx context.Context) ([]dto.RouteStop, error) {
	var res dto.RouteResponse
	if err := c.call(ctx, "Route", http.MethodGet, "/route", nil, &res); err != nil {
		return nil, err
	}
	return res.Order, nil
}

func (c *Client) CreateShipment(ctx context.Context, handle, name string) (*dto.ShipmentResponse, error) {
	var res dto.ShipmentEnvelope
	req := dto.CreateShipmentRequest{Handle: handle, Name: name}
	if err := c.call(ctx, "CreateShipment", http.MethodPost, "/shipments", req, &res); err != nil {
		return nil, err
	}
	return &res.Shipment, nil
}

func (c *Client) Shipment(ctx context.Context, id int64) (*dto.ShipmentResponse, error) {
	var res dto.ShipmentEnvelope
	if err := c.call(ctx, "Shipment", http.MethodGet, fmt.Sprintf("/shipments/%d", id), nil, &res); err != nil {
		return nil, err
	}
	return &res.Shipment, nil
}

func (c *Client) ShipmentByHandle(ctx context.Context, handle string) (*dto.ShipmentResponse, error) {
	var res dto.ShipmentEnvelope
	path := "/shipments?handle=" + url.QueryEscape(handle)
	if err := c.call(ctx, "ShipmentByHandle", http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res.Shipment, nil
}

func (c *Client) Move(ctx context.Context, id int64, from, to string) (*dto.ShipmentResponse, error) {
	var res dto.ShipmentEnvelope
	req := dto.MoveRequest{ShipmentID: id, From: dto.WaypointRef(from), To: dto.WaypointRef(to)}
	if err := c.call(ctx, "Move", http.MethodPost, "/move", req, &res); err != nil {
		return nil, err
	}
	return &res.Shipment, nil
}

// Reset sends the shipment back to the origin; from may be empty.
func (c *Client) Reset(ctx context.Context, id int64, from, reason string) (*dto.ShipmentEnvelope, error) {
	var res dto.ShipmentEnvelope
	req := dto.ResetRequest{From: dto.WaypointRef(from), Reason: reason}
	if err := c.call(ctx, "Reset", http.MethodPost, fmt.Sprintf("/shipments/%d/reset", id), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Audit(ctx context.Context, id int64) (*dto.AuditTrailResponse, error) {
	var res dto.AuditTrailResponse
	if err := c.call(ctx, "Audit", http.MethodGet, fmt.Sprintf("/shipments/%d/audit", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ClearShipments(ctx context.Context) (int, error) {
	var res dto.DeleteShipmentsResponse
	if err := c.call(ctx, "ClearShipments", http.MethodDelete, "/shipments", nil, &res); err != nil {
		return 0, err
	}
	return res.DeletedShipments, nil
}
