package middleware

import "context"

type contextKey string

const ctxOwnerID contextKey = "owner_id"

// OwnerIDFromContext returns the caller's owner id, or "" when none was sent.
func OwnerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOwnerID).(string); ok {
		return v
	}
	return ""
}

// WithOwnerID injects the owner identifier into the context.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOwnerID, ownerID)
}
