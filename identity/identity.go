package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// HeaderPlayerID carries a trusted caller identity
const HeaderPlayerID = "X-Player-ID"

var (
	ErrNoIdentity   = errors.New("no identity in request")
	ErrInvalidToken = errors.New("invalid identity token")
)

// Resolver extracts the caller identity of an HTTP request. Implementations
// return ErrNoIdentity when the request carries nothing they understand.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(r *http.Request) (string, error)

func (f ResolverFunc) Resolve(r *http.Request) (string, error) { return f(r) }

// HeaderResolver trusts a request header, falling back to a query parameter
// for clients that cannot set headers, such as browser websockets.
type HeaderResolver struct {
	Header     string
	QueryParam string
}

// NewHeaderResolver reads X-Player-ID or the "player" query parameter
func NewHeaderResolver() HeaderResolver {
	return HeaderResolver{Header: HeaderPlayerID, QueryParam: "player"}
}

func (h HeaderResolver) Resolve(r *http.Request) (string, error) {
	if h.Header != "" {
		if v := strings.TrimSpace(r.Header.Get(h.Header)); v != "" {
			return v, nil
		}
	}
	if h.QueryParam != "" {
		if v := strings.TrimSpace(r.URL.Query().Get(h.QueryParam)); v != "" {
			return v, nil
		}
	}
	return "", ErrNoIdentity
}

// Chain tries resolvers in order. The first identity wins; an error other
// than ErrNoIdentity stops the chain.
type Chain []Resolver

func (c Chain) Resolve(r *http.Request) (string, error) {
	for _, resolver := range c {
		id, err := resolver.Resolve(r)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoIdentity) {
			return "", err
		}
	}
	return "", ErrNoIdentity
}

type contextKey struct{}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by Middleware
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Middleware resolves the caller and stores it in the request context.
// Requests without an identity pass through anonymously; a credential that
// fails verification is rejected with 401.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			switch {
			case err == nil:
				r = r.WithContext(WithIdentity(r.Context(), id))
			case errors.Is(err, ErrNoIdentity):
			default:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid credentials","code":"unauthenticated"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
