package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	selectorKey  contextKey = "selector"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithSelector records the source selector ("all" or a source name) a
// request targets.
func WithSelector(ctx context.Context, selector string) context.Context {
	return context.WithValue(ctx, selectorKey, selector)
}

// SelectorFromContext retrieves the source selector from context.
// Returns empty string if not present.
func SelectorFromContext(ctx context.Context) string {
	if v := ctx.Value(selectorKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
