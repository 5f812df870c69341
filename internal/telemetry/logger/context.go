package logger

import "context"

type contextKey string

const (
	loggerKey    contextKey = "salesdesk.logger"
	requestIDKey contextKey = "salesdesk.request_id"
	resourceKey  contextKey = "salesdesk.resource"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithResource tags the context with the resource a CRUD call targets.
func WithResource(ctx context.Context, resource string) context.Context {
	return context.WithValue(ctx, resourceKey, resource)
}

// ResourceFromContext extracts the resource name from context.
func ResourceFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(resourceKey).(string); ok {
		return r
	}
	return ""
}

// L returns the context logger enriched with request ID and resource.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if resource := ResourceFromContext(ctx); resource != "" {
		l = l.With("resource", resource)
	}

	return l.WithContext(ctx)
}
