package ctxutil

import "context"

// Default returns ctx, or context.Background() if ctx is nil. Call sites that
// build an http.Request directly from a caller-supplied context would
// otherwise panic on a nil context.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
