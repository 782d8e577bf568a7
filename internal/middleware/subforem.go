package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type subforemKey struct{}

// WithSubforem scopes each request to the subforem serving its host. Hosts
// missing from domains leave the request unscoped.
func WithSubforem(domains map[string]int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if id, ok := domains[strings.ToLower(host)]; ok {
				r = r.WithContext(ContextWithSubforem(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithSubforem returns a copy of ctx scoped to subforemID.
func ContextWithSubforem(ctx context.Context, subforemID int) context.Context {
	return context.WithValue(ctx, subforemKey{}, subforemID)
}

// ContextTenantScope reads the subforem stored by WithSubforem. It is the
// ambient tenant fallback of the eligibility filter.
type ContextTenantScope struct{}

// CurrentSubforemID returns the request's subforem, if any.
func (ContextTenantScope) CurrentSubforemID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(subforemKey{}).(int)
	return id, ok
}
