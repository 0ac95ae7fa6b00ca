package middleware

import "context"

type contextKey string

const ctxUserID contextKey = "user_id"

// WithUserID stamps the authenticated user's id onto the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// UserIDFromContext returns the user id set by the session middleware, or ""
// for an unauthenticated request.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(ctxUserID).(string)
	return userID
}
