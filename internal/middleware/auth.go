package middleware

import (
	"context"
	"net/http"

	"github.com/subberhq/subber/internal/domain"
)

const identityContextKey contextKey = "identity"

// Identity is the authenticated principal of a request: a customer, a
// vendor, or (for unauthenticated requests) neither.
type Identity struct {
	Customer *domain.Customer
	Vendor   *domain.Vendor
}

// Authenticator resolves a request to an identity. Credential storage
// and session handling live outside this service; implementations are
// thin lookups over whatever the auth system issued.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// RequireIdentity rejects requests the authenticator cannot resolve and
// stores the identity in the request context for handlers.
func RequireIdentity(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := auth.Authenticate(r.Context(), r)
			if err != nil || identity == nil || (identity.Customer == nil && identity.Vendor == nil) {
				respondWithError(w, r, domain.Unauthorized("auth.require", "authentication required"))
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentityFromContext retrieves the authenticated identity, or nil.
func GetIdentityFromContext(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(identityContextKey).(*Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity returns a context carrying the identity. Used by tests
// and by transports that authenticate out of band.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
