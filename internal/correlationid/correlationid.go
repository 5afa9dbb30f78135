// Package correlationid carries the per-request id used to tie log lines and
// responses together. Do not import logger here, it imports this package.
package correlationid

import (
	"context"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader is read from and echoed on every HTTP exchange.
	RequestIDHeader = "X-Request-ID"
	// Key is the structured log field name.
	Key = "correlation_id"
)

type contextKey struct{}

// New returns a fresh random id.
func New() string {
	return uuid.NewString()
}

// FromContext gets the correlation id from ctx if it exists. An empty string
// is returned otherwise.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// ContextWithCorrelationID returns a copy of ctx carrying id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if FromContext(ctx) == id {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}
