package api

import (
	"log"
	"math/rand/v2"
	"net/http"
	"shipment-route-service/internal/api/dto"
	"shipment-route-service/internal/platform/obs"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// statusWriter captures the final HTTP status code and number of bytes written.
// This helps distinguish "handler returned 200" from "client received a response".
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware carries the caller's X-Request-ID, or a fresh one, in
// the request context and echoes it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(obs.WithRequestID(r.Context(), id)))
	})
}

// loggingMiddleware logs end-to-end request duration and response size for basic observability.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{
			ResponseWriter: w,
			status:         0,
		}

		next.ServeHTTP(sw, r)

		duration := time.Since(start).Milliseconds()

		log.Printf(
			"req_id=%s method=%s path=%s status=%d bytes=%d dur=%dms",
			obs.RequestID(r.Context()), r.Method, r.URL.RequestURI(), sw.status, sw.bytes, duration,
		)
	})
}

const simulatedFailure = "Simulated transient failure. Please retry."

// FaultInjector fails a share of mutating requests with 503 before they reach
// a handler, so clients have to cope with transient failures.
type FaultInjector struct {
	Rate          float64
	RetryAfterMin int
	RetryAfterMax int

	// Random sources; math/rand/v2 globals when nil.
	Float func() float64
	IntN  func(n int) int
}

func (f *FaultInjector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.eligible(r) || f.float() >= f.Rate {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := f.retryAfter()
		log.Printf("req_id=%s injected failure: method=%s path=%s retry_after=%d",
			obs.RequestID(r.Context()), r.Method, r.URL.Path, retryAfter)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = writeBody(w, dto.ErrorResponse{Error: simulatedFailure, Code: "TRANSIENT"})
	})
}

// Only mutating calls fail; shipment creation is exempt.
func (f *FaultInjector) eligible(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return false
	}
	return !(r.Method == http.MethodPost && strings.TrimSuffix(r.URL.Path, "/") == "/shipments")
}

func (f *FaultInjector) float() float64 {
	if f.Float != nil {
		return f.Float()
	}
	return rand.Float64()
}

func (f *FaultInjector) retryAfter() int {
	lo, hi := f.RetryAfterMin, f.RetryAfterMax
	if hi <= lo {
		return lo
	}
	intN := rand.IntN
	if f.IntN != nil {
		intN = f.IntN
	}
	return lo + intN(hi-lo+1)
}
