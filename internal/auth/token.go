package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/middleware"
	"github.com/subberhq/subber/internal/repository"
)

// TokenAuthenticator resolves bearer tokens against the customers and
// vendors tables. Token issuance happens out of band; this is a lookup
// over whatever the account system stored.
type TokenAuthenticator struct {
	repo repository.Querier
}

// Compile-time check that TokenAuthenticator satisfies the middleware contract.
var _ middleware.Authenticator = (*TokenAuthenticator)(nil)

// NewTokenAuthenticator creates a token authenticator over the repository.
func NewTokenAuthenticator(repo repository.Querier) *TokenAuthenticator {
	return &TokenAuthenticator{repo: repo}
}

// Authenticate extracts the bearer token and resolves it to a customer
// or, failing that, a vendor.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*middleware.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, domain.Unauthorized("auth.token", "missing bearer token")
	}

	customer, err := a.repo.GetCustomerByAPIToken(ctx, token)
	if err == nil {
		return &middleware.Identity{Customer: &customer}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Internal(err, "auth.token", "customer lookup failed")
	}

	vendor, err := a.repo.GetVendorByAPIToken(ctx, token)
	if err == nil {
		return &middleware.Identity{Vendor: &vendor}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Internal(err, "auth.token", "vendor lookup failed")
	}

	return nil, domain.Unauthorized("auth.token", "invalid token")
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
