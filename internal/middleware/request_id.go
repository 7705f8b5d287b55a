// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	traceIDKey   contextKey = "trace_id"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// traceparentHeader is the W3C trace context header set by edge proxies.
const traceparentHeader = "traceparent"

const maxRequestIDLen = 64

// RequestID tags each request with an ID. A caller-supplied X-Request-ID is
// kept when it is short and made of safe characters; anything else is
// replaced with a fresh ULID so log lines stay greppable. The trace ID of a
// well-formed traceparent header is recorded alongside.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = ulid.Make().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		if traceID := traceIDFromParent(r.Header.Get(traceparentHeader)); traceID != "" {
			ctx = context.WithValue(ctx, traceIDKey, traceID)
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID, or "" outside RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetTraceID returns the upstream trace ID, or "" when none was propagated.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

// traceIDFromParent extracts the trace-id field of a version 00 traceparent:
// 00-<32 hex trace-id>-<16 hex parent-id>-<2 hex flags>.
func traceIDFromParent(header string) string {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || parts[0] != "00" {
		return ""
	}
	traceID := parts[1]
	if len(traceID) != 32 || len(parts[2]) != 16 || len(parts[3]) != 2 {
		return ""
	}
	if !isLowerHex(traceID) || strings.Trim(traceID, "0") == "" {
		return ""
	}
	return traceID
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
