package httpx

import "context"

type ctxKey string

const CtxKeyAccountID ctxKey = "account_id"

// WithAccountID stores the authenticated account id on ctx.
func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxKeyAccountID, id)
}

// AccountIDFromContext returns the account id placed by AuthnMiddleware.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CtxKeyAccountID).(string)
	return id, ok && id != ""
}
