package routeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"shipment-route-service/internal/api/dto"
	"strconv"
	"strings"
	"time"
)

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Code       int
	Message    string
	ErrCode    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.ErrCode != "" {
		return fmt.Sprintf("Code %d (%s): %s", e.Code, e.ErrCode, e.Message)
	}
	return fmt.Sprintf("Code %d: %s", e.Code, e.Message)
}

// Transient reports whether the request may succeed if sent again.
func (e *StatusError) Transient() bool {
	switch e.Code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// ErrorCode returns the service error code carried by err, if any.
func ErrorCode(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.ErrCode
	}
	return ""
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	path string,
	body []byte,
) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, statusError(resp, b)
	}
	return resp, nil
}

func statusError(resp *http.Response, body []byte) *StatusError {
	se := &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var er dto.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		se.Message = er.Error
		se.ErrCode = er.Code
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs >= 0 {
		se.RetryAfter = time.Duration(secs) * time.Second
	}
	return se
}

// doWithRetry retries transient failures (network errors, 429 and 5xx
// responses) using exponential backoff. A Retry-After hint lengthens the wait
// but never beyond MaxBackoff. Context cancellation stops the loop.
func (c *Client) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	maxAttempts := max(c.MaxAttempts, 1)
	backoff := c.BaseBackoff

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		wait := backoff
		var se *StatusError
		if errors.As(err, &se) {
			retry = se.Transient()
			wait = max(wait, se.RetryAfter)
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		if c.MaxBackoff > 0 {
			wait = min(wait, c.MaxBackoff)
		}
		if c.OnRetry != nil {
			c.OnRetry(attempt, wait, err)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}

		backoff *= 2
	}

	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
