// Package notify tells landlords about committed regularizations and rent
// revisions. Notification failures are logged and never undo a commit.
package notify

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/report"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
)

// ErrNoChannel is returned when the owner cannot be reached by a notifier.
var ErrNoChannel = errors.New("owner has no notification channel")

// Notifier delivers one kind of notification.
type Notifier interface {
	RegularizationCommitted(ctx context.Context, owner *models.User, st report.Statement) error
	RevisionCommitted(ctx context.Context, owner *models.User, lease *models.Lease, period *models.LeaseFinancialPeriod) error
}

// Dispatcher resolves the property owner and fans out to every notifier.
type Dispatcher struct {
	store     repository.Store
	notifiers []Notifier
}

// NewDispatcher creates a Dispatcher. With no notifiers it does nothing.
func NewDispatcher(store repository.Store, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{store: store, notifiers: notifiers}
}

// Regularization notifies the owner of the property of rec.
func (d *Dispatcher) Regularization(ctx context.Context, rec *models.Regularization) {
	if len(d.notifiers) == 0 {
		return
	}
	owner, err := d.owner(ctx, rec.PropertyID)
	if err != nil {
		logger.Log.Warn().Err(err).Int64("regularization_id", rec.ID).Msg("Cannot resolve owner for notification")
		return
	}

	st := report.FromRecord(rec)
	for _, n := range d.notifiers {
		if err := n.RegularizationCommitted(ctx, owner, st); err != nil {
			d.logFailure(err, owner, "regularization", rec.ID)
		}
	}
}

// Revision notifies the owner of the leased property of a new period.
func (d *Dispatcher) Revision(ctx context.Context, lease *models.Lease, period *models.LeaseFinancialPeriod) {
	if len(d.notifiers) == 0 {
		return
	}
	owner, err := d.owner(ctx, lease.PropertyID)
	if err != nil {
		logger.Log.Warn().Err(err).Int64("lease_id", lease.ID).Msg("Cannot resolve owner for notification")
		return
	}

	for _, n := range d.notifiers {
		if err := n.RevisionCommitted(ctx, owner, lease, period); err != nil {
			d.logFailure(err, owner, "revision", period.ID)
		}
	}
}

func (d *Dispatcher) owner(ctx context.Context, propertyID int64) (*models.User, error) {
	property, err := d.store.Properties().GetByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property %d: %w", propertyID, err)
	}
	user, err := d.store.Users().GetByID(ctx, property.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner of property %d: %w", propertyID, err)
	}
	return user, nil
}

func (d *Dispatcher) logFailure(err error, owner *models.User, kind string, id int64) {
	if errors.Is(err, ErrNoChannel) {
		logger.Log.Debug().
			Str("user_hash", logger.HashUserID(owner.ID)).
			Str("kind", kind).
			Msg("Owner has no notification channel")
		return
	}
	logger.Log.Error().
		Err(err).
		Str("user_hash", logger.HashUserID(owner.ID)).
		Str("kind", kind).
		Int64("id", id).
		Msg("Failed to send notification")
}
