// Package access carries the authenticated actor through a request and
// checks that it may act on a property.
package access

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
)

// Actor is the authenticated landlord behind a request. Session resolution
// happens upstream.
type Actor struct {
	UserID int64
}

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored in ctx.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.UserID != 0
}

// Guard checks property ownership.
type Guard struct {
	properties repository.PropertyStore
}

// NewGuard creates a Guard.
func NewGuard(properties repository.PropertyStore) *Guard {
	return &Guard{properties: properties}
}

// RequirePropertyOwner returns the actor if it owns propertyID and
// models.ErrForbidden otherwise. A missing property is also reported as
// forbidden so that ids cannot be probed.
func (g *Guard) RequirePropertyOwner(ctx context.Context, propertyID int64) (Actor, error) {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return Actor{}, fmt.Errorf("no authenticated actor: %w", models.ErrForbidden)
	}

	property, err := g.properties.GetByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return Actor{}, fmt.Errorf("property %d: %w", propertyID, models.ErrForbidden)
		}
		return Actor{}, err
	}

	if property.OwnerID != actor.UserID {
		logger.Log.Warn().
			Str("user_hash", logger.HashUserID(actor.UserID)).
			Int64("property_id", propertyID).
			Msg("Blocked access to property of another owner")
		return Actor{}, fmt.Errorf("property %d: %w", propertyID, models.ErrForbidden)
	}
	return actor, nil
}
