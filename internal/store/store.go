package store

import (
	"context"
	"errors"
)

// Identity is the account resolved from a bearer token. It is immutable for
// the lifetime of a connection; revocation tears the connection down instead
// of mutating it.
type Identity struct {
	AccountID       string
	AccessTokenID   string
	Scopes          []string
	ChosenLanguages []string
	DeviceID        string
}

// HasScope reports whether the token carries any of the given scopes.
func (i *Identity) HasScope(scopes ...string) bool {
	if i == nil {
		return false
	}
	for _, have := range i.Scopes {
		for _, want := range scopes {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ErrInvalidToken is returned by IdentityFromToken when the token is
// unknown or revoked.
var ErrInvalidToken = errors.New("invalid access token")

// ErrListNotFound is returned by ListOwner for an unknown list id.
var ErrListNotFound = errors.New("list not found")

// Store is the read-only collaborator lookup interface.
type Store interface {
	// IdentityFromToken resolves a bearer token. Returns ErrInvalidToken
	// for unknown or revoked tokens.
	IdentityFromToken(ctx context.Context, token string) (*Identity, error)

	// ListOwner returns the account id owning the given list.
	ListOwner(ctx context.Context, listID string) (string, error)

	// Suppresses checks, in one round trip, whether the viewer blocks or
	// mutes any of the target accounts (or is blocked back by the author,
	// the first target), or has blocked the given domain. An empty domain
	// skips the domain check.
	Suppresses(ctx context.Context, viewerID string, targetIDs []string, domain string) (bool, error)
}
