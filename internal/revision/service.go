// Package revision computes and commits index-linked rent revisions.
package revision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/lease-engine/internal/access"
	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
	"gitlab.com/yelinaung/lease-engine/internal/telemetry"
)

// State is the revision state of a lease for its current lease year.
type State string

// Revision states.
const (
	StateNoRevisionDue    State = "NO_REVISION_DUE"
	StateDueAtAnniversary State = "DUE_AT_ANNIVERSARY"
	StateRevised          State = "REVISED"
)

// IndexSource resolves the published index value applicable at a date.
type IndexSource interface {
	ValueAt(ctx context.Context, date time.Time) (models.IndexPoint, error)
}

// Revision is a computed, uncommitted rent revision.
type Revision struct {
	CurrentRentCents int64
	NewRentCents     int64
	AnchorDate       time.Time
	EffectiveDate    time.Time
	BaseIndex        models.IndexPoint
	NewIndex         models.IndexPoint
}

// Quote is a revision computed for a lease from its current period.
type Quote struct {
	Revision
	LeaseID             int64
	CurrentPeriodID     int64
	ServiceChargesCents int64
}

// Status describes where a lease stands in its revision cycle.
type Status struct {
	State State
	// Anniversary is the anniversary the state refers to: the one already
	// reached when due or revised, the next one otherwise.
	Anniversary time.Time
}

// CommitInput asks for a new financial period starting at EffectiveDate.
type CommitInput struct {
	LeaseID         int64
	NewRentCents    int64
	NewChargesCents int64
	EffectiveDate   time.Time
}

// Service computes and commits rent revisions.
type Service struct {
	store  repository.Store
	index  IndexSource
	guard  *access.Guard
	tracer trace.Tracer

	commits   metric.Int64Counter
	conflicts metric.Int64Counter
}

// New creates a revision service.
func New(store repository.Store, index IndexSource) *Service {
	return &Service{
		store:     store,
		index:     index,
		guard:     access.NewGuard(store.Properties()),
		tracer:    otel.Tracer(telemetry.ScopeName),
		commits:   telemetry.Counter("lease.revision.commits", "Committed rent revisions"),
		conflicts: telemetry.Counter("lease.revision.conflicts", "Revisions rejected as duplicates"),
	}
}

// ComputeRevision indexes currentRentCents from the value applicable at
// anchorDate (lease start or last revision) to the value applicable at
// effectiveDate. It never changes state.
func (s *Service) ComputeRevision(ctx context.Context, currentRentCents int64, anchorDate, effectiveDate time.Time) (*Revision, error) {
	if currentRentCents < 0 {
		return nil, &models.ValidationError{Field: "currentRentCents", Reason: "must not be negative"}
	}
	if effectiveDate.Before(anchorDate) {
		return nil, &models.ValidationError{Field: "effectiveDate", Reason: "must not precede the anchor date"}
	}

	base, err := s.index.ValueAt(ctx, anchorDate)
	if err != nil {
		return nil, err
	}
	latest, err := s.index.ValueAt(ctx, effectiveDate)
	if err != nil {
		return nil, err
	}

	return &Revision{
		CurrentRentCents: currentRentCents,
		NewRentCents:     IndexedRent(currentRentCents, base.Value, latest.Value),
		AnchorDate:       models.Date(anchorDate),
		EffectiveDate:    models.Date(effectiveDate),
		BaseIndex:        base,
		NewIndex:         latest,
	}, nil
}

// Quote computes the revision of a lease's current rent at effectiveDate.
func (s *Service) Quote(ctx context.Context, leaseID int64, effectiveDate time.Time) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "revision.Quote", trace.WithAttributes(attribute.Int64("lease.id", leaseID)))
	defer span.End()

	lease, err := s.ownedLease(ctx, leaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	periods, err := s.store.Leases().Periods(ctx, leaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	q, err := s.checkedQuote(ctx, lease, periods, models.Date(effectiveDate))
	if err != nil {
		return nil, fail(span, err)
	}
	return q, nil
}

func (s *Service) quote(ctx context.Context, lease *models.Lease, periods []models.LeaseFinancialPeriod, effectiveDate time.Time) (*Quote, error) {
	current, err := currentPeriod(lease.ID, periods)
	if err != nil {
		return nil, err
	}

	rev, err := s.ComputeRevision(ctx, current.BaseRentCents, anchorOf(lease, periods), effectiveDate)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Revision:            *rev,
		LeaseID:             lease.ID,
		CurrentPeriodID:     current.ID,
		ServiceChargesCents: current.ServiceChargesCents,
	}, nil
}

// State reports the revision state of a lease at today.
func (s *Service) State(ctx context.Context, leaseID int64, today time.Time) (*Status, error) {
	lease, err := s.ownedLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	last, reached := LastAnniversary(lease.StartDate, today)
	if !reached {
		return &Status{State: StateNoRevisionDue, Anniversary: FirstRevisionDate(lease.StartDate)}, nil
	}

	periods, err := s.store.Leases().Periods(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	for _, p := range periods {
		if p.Source == models.PeriodSourceRevision && !p.StartDate.Before(last) {
			return &Status{State: StateRevised, Anniversary: last}, nil
		}
	}
	return &Status{State: StateDueAtAnniversary, Anniversary: last}, nil
}

// CommitRevision closes the open period of the lease and opens a new one at
// EffectiveDate. A period already starting at that date yields
// DuplicateRevisionError and leaves the lease unchanged. The new rent may
// not exceed the indexed rent.
func (s *Service) CommitRevision(ctx context.Context, in CommitInput) (*models.LeaseFinancialPeriod, error) {
	ctx, span := s.tracer.Start(ctx, "revision.CommitRevision", trace.WithAttributes(
		attribute.Int64("lease.id", in.LeaseID),
		attribute.String("effective_date", in.EffectiveDate.Format(time.DateOnly)),
	))
	defer span.End()

	if in.NewRentCents < 0 {
		return nil, fail(span, &models.ValidationError{Field: "newRentCents", Reason: "must not be negative"})
	}
	if in.NewChargesCents < 0 {
		return nil, fail(span, &models.ValidationError{Field: "newChargesCents", Reason: "must not be negative"})
	}
	effective := models.Date(in.EffectiveDate)

	lease, err := s.ownedLease(ctx, in.LeaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	actor, _ := access.ActorFrom(ctx)

	// The cap is computed from a plain read; the transaction then checks
	// that the period it was computed from is still the current one.
	periods, err := s.store.Leases().Periods(ctx, lease.ID)
	if err != nil {
		return nil, fail(span, err)
	}
	q, err := s.checkedQuote(ctx, lease, periods, effective)
	if err == nil && in.NewRentCents > q.NewRentCents {
		err = &models.ValidationError{
			Field:  "newRentCents",
			Reason: fmt.Sprintf("%d exceeds the indexed rent %d", in.NewRentCents, q.NewRentCents),
		}
	}

	var period *models.LeaseFinancialPeriod
	if err == nil {
		err = s.store.InTx(ctx, func(tx repository.Store) error {
			if _, err := tx.Leases().GetByIDForUpdate(ctx, lease.ID); err != nil {
				return err
			}
			periods, err := tx.Leases().Periods(ctx, lease.ID)
			if err != nil {
				return err
			}
			if err := checkDuplicate(lease.ID, periods, effective); err != nil {
				return err
			}
			current, err := currentPeriod(lease.ID, periods)
			if err != nil {
				return err
			}
			if current.ID != q.CurrentPeriodID {
				return fmt.Errorf("financial periods of lease %d changed during revision", lease.ID)
			}

			if err := tx.Leases().ClosePeriod(ctx, current.ID, effective); err != nil {
				return err
			}
			period = &models.LeaseFinancialPeriod{
				LeaseID:             lease.ID,
				StartDate:           effective,
				BaseRentCents:       in.NewRentCents,
				ServiceChargesCents: in.NewChargesCents,
				Source:              models.PeriodSourceRevision,
				BaseIndex:           &q.BaseIndex,
				NewIndex:            &q.NewIndex,
			}
			return tx.Leases().CreatePeriod(ctx, period)
		})
	}
	if err != nil {
		var dup *models.DuplicateRevisionError
		if errors.As(err, &dup) {
			s.conflicts.Add(ctx, 1)
		}
		logger.Log.Warn().Err(err).
			Int64("lease_id", lease.ID).
			Str("effective_date", effective.Format(time.DateOnly)).
			Msg("Rent revision rejected")
		return nil, fail(span, err)
	}

	s.commits.Add(ctx, 1)
	logger.Log.Info().
		Str("user_hash", logger.HashUserID(actor.UserID)).
		Int64("lease_id", lease.ID).
		Int64("period_id", period.ID).
		Str("effective_date", effective.Format(time.DateOnly)).
		Int64("rent_cents", period.BaseRentCents).
		Msg("Rent revision committed")
	return period, nil
}

// checkedQuote rejects an effective date that already starts a period or
// precedes the current one, then quotes the revision.
func (s *Service) checkedQuote(ctx context.Context, lease *models.Lease, periods []models.LeaseFinancialPeriod, effective time.Time) (*Quote, error) {
	if err := checkDuplicate(lease.ID, periods, effective); err != nil {
		return nil, err
	}
	current, err := currentPeriod(lease.ID, periods)
	if err != nil {
		return nil, err
	}
	if effective.Before(current.StartDate) {
		return nil, &models.ValidationError{
			Field:  "effectiveDate",
			Reason: fmt.Sprintf("must not precede the current period start %s", current.StartDate.Format(time.DateOnly)),
		}
	}
	return s.quote(ctx, lease, periods, effective)
}

func checkDuplicate(leaseID int64, periods []models.LeaseFinancialPeriod, effective time.Time) error {
	for _, p := range periods {
		if p.StartDate.Equal(effective) {
			return &models.DuplicateRevisionError{LeaseID: leaseID, EffectiveDate: effective}
		}
	}
	return nil
}

func (s *Service) ownedLease(ctx context.Context, leaseID int64) (*models.Lease, error) {
	lease, err := s.store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequirePropertyOwner(ctx, lease.PropertyID); err != nil {
		return nil, err
	}
	return lease, nil
}

// currentPeriod returns the open period that no later period follows.
func currentPeriod(leaseID int64, periods []models.LeaseFinancialPeriod) (*models.LeaseFinancialPeriod, error) {
	if len(periods) == 0 {
		return nil, &models.ValidationError{Field: "leaseId", Reason: fmt.Sprintf("lease %d has no financial period", leaseID)}
	}
	last := periods[len(periods)-1]
	if last.EndDate != nil {
		return nil, &models.ValidationError{Field: "leaseId", Reason: fmt.Sprintf("lease %d has no open financial period", leaseID)}
	}
	return &last, nil
}

// anchorOf returns the date the base index refers to: the effective date
// of the last revision, or the lease start.
func anchorOf(lease *models.Lease, periods []models.LeaseFinancialPeriod) time.Time {
	for i := len(periods) - 1; i >= 0; i-- {
		if periods[i].Source == models.PeriodSourceRevision {
			return periods[i].StartDate
		}
	}
	return lease.StartDate
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
