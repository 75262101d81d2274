// Package auth resolves the caller behind a bearer token and decides whether
// that caller may drive order transitions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	GradeDealer    = "dealer"
	StatusApproved = "approved"
)

var (
	// ErrUnauthorized means the credential was missing, malformed or unresolvable.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is known but lacks the required grade or status.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrProfileNotFound is returned by a ProfileStore that has no row for the id.
	ErrProfileNotFound = errors.New("profile not found")
)

// Actor is the authenticated caller. It is built per request and never cached.
type Actor struct {
	ID     string
	Grade  string
	Status string
}

// Profile is what the gate needs from the profile store.
type Profile struct {
	Grade  string
	Status string
}

// TokenVerifier resolves a raw bearer token to a user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// ProfileStore loads the profile for a user id.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// Gate authorises administrative callers.
type Gate struct {
	Verifier       TokenVerifier
	Profiles       ProfileStore
	RequiredGrade  string
	RequiredStatus string
}

// Authorize checks the Authorization header value and returns the actor.
func (g *Gate) Authorize(ctx context.Context, authorization string) (Actor, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return Actor{}, ErrUnauthorized
	}
	if g.Verifier == nil {
		return Actor{}, ErrUnauthorized
	}
	userID, err := g.Verifier.Verify(ctx, token)
	if err != nil || userID == "" {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	p, err := g.Profiles.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Actor{}, ErrForbidden
		}
		return Actor{}, fmt.Errorf("load profile: %w", err)
	}
	if p.Grade != g.requiredGrade() || p.Status != g.requiredStatus() {
		return Actor{}, ErrForbidden
	}
	return Actor{ID: userID, Grade: p.Grade, Status: p.Status}, nil
}

func (g *Gate) requiredGrade() string {
	if g.RequiredGrade != "" {
		return g.RequiredGrade
	}
	return GradeDealer
}

func (g *Gate) requiredStatus() string {
	if g.RequiredStatus != "" {
		return g.RequiredStatus
	}
	return StatusApproved
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

type contextKey string

const actorContextKey contextKey = "github.com/ariefcatur/def-order-backend/internal/auth/actor"

// WithActor stores the actor on the context for downstream handlers.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey).(Actor)
	return a, ok
}
