package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const terminalIDKey ctxKey = "pos/terminal-id"

// TerminalIDHeader carries the point-of-sale terminal identity.
const TerminalIDHeader = "X-Terminal-ID"

// WithTerminalID stores the calling terminal identifier on the context.
func WithTerminalID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, terminalIDKey, id)
}

// TerminalID extracts the calling terminal identifier from the context.
func TerminalID(ctx context.Context) (string, bool) {
	v := ctx.Value(terminalIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// TerminalMiddleware lifts the terminal header onto the request context.
func TerminalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(TerminalIDHeader)); id != "" {
			r = r.WithContext(WithTerminalID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
