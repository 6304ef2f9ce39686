// Package auth resolves the authenticated principal for a request and
// carries it through a context.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/dayplan/internal/db"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the authenticated user on whose behalf a turn runs.
type Principal struct {
	ID          string
	DisplayName string
	Language    string
	Timezone    string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, or ErrUnauthenticated.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// UserStore is the slice of the repository the resolver needs.
type UserStore interface {
	UserByToken(ctx context.Context, token string) (*db.User, error)
	UserByDiscordID(ctx context.Context, discordID string) (*db.User, error)
}

type Resolver struct {
	users UserStore
}

func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users}
}

// ResolveToken maps an API token to its principal.
func (r *Resolver) ResolveToken(ctx context.Context, token string) (Principal, error) {
	u, err := r.users.UserByToken(ctx, token)
	return principalFor(u, err)
}

// ResolveDiscord maps a linked Discord account to its principal.
func (r *Resolver) ResolveDiscord(ctx context.Context, discordID string) (Principal, error) {
	u, err := r.users.UserByDiscordID(ctx, discordID)
	return principalFor(u, err)
}

func principalFor(u *db.User, err error) (Principal, error) {
	if errors.Is(err, db.ErrNotFound) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, fmt.Errorf("resolving principal: %w", err)
	}
	return Principal{ID: u.ID, DisplayName: u.DisplayName, Language: u.Language, Timezone: u.Timezone}, nil
}
