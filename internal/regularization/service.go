// Package regularization reconciles a year of tenant provisions against the
// recoverable expenses of a property and commits the result.
package regularization

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/lease-engine/internal/access"
	"gitlab.com/yelinaung/lease-engine/internal/allocator"
	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
	"gitlab.com/yelinaung/lease-engine/internal/telemetry"
)

// Service previews and commits regularizations.
type Service struct {
	store  repository.Store
	guard  *access.Guard
	tracer trace.Tracer

	commits    metric.Int64Counter
	conflicts  metric.Int64Counter
	mismatches metric.Int64Counter
}

// New creates a regularization service.
func New(store repository.Store) *Service {
	return &Service{
		store:      store,
		guard:      access.NewGuard(store.Properties()),
		tracer:     otel.Tracer(telemetry.ScopeName),
		commits:    telemetry.Counter("lease.regularization.commits", "Committed regularization records"),
		conflicts:  telemetry.Counter("lease.regularization.conflicts", "Commits rejected as duplicates"),
		mismatches: telemetry.Counter("lease.regularization.integrity_mismatches", "Commits rejected for totals that disagree with the ledger"),
	}
}

// CommitInput is the caller's view of the reconciliation being committed.
// Every total is recomputed from the ledger and compared before anything
// is persisted.
type CommitInput struct {
	LeaseID                       int64
	PropertyID                    int64
	Year                          int
	BalanceCents                  int64
	TotalRecoverableExpensesCents int64
	TotalProvisionsReceivedCents  int64
	IncludedExpenseIDs            []int64
}

// Preview computes the reconciliation of leaseID for year. Calling it twice
// with no ledger change in between gives identical results.
func (s *Service) Preview(ctx context.Context, leaseID, propertyID int64, year int) (*Preview, error) {
	ctx, span := s.tracer.Start(ctx, "regularization.Preview", trace.WithAttributes(
		attribute.Int64("lease.id", leaseID),
		attribute.Int("year", year),
	))
	defer span.End()

	if err := validateYear(year); err != nil {
		return nil, fail(span, err)
	}
	if _, err := s.guard.RequirePropertyOwner(ctx, propertyID); err != nil {
		return nil, fail(span, err)
	}

	lease, err := leaseOf(ctx, s.store, leaseID, propertyID, false)
	if err != nil {
		return nil, fail(span, err)
	}

	active, err := activeRecord(ctx, s.store, leaseID, year)
	if err != nil {
		return nil, fail(span, err)
	}
	var previous []int64
	if active != nil {
		previous = active.IncludedExpenseIDs
	}

	r := allocator.Year(year)
	candidates, err := s.store.Expenses().GetByPropertyAndDateRange(ctx, propertyID, r.Start, r.End)
	if err != nil {
		return nil, fail(span, err)
	}

	p := &Preview{LeaseID: leaseID, PropertyID: propertyID, Year: year}
	if active != nil {
		p.ActiveID = &active.ID
	}
	for i := range candidates {
		e := &candidates[i]
		if !inScope(e, lease, r) {
			continue
		}
		if e.IsFinalized && !slices.Contains(previous, e.ID) {
			continue
		}
		p.Expenses = append(p.Expenses, lineOf(e))
		p.TotalRecoverableExpensesCents += allocator.Recoverable(e, r)
	}
	sortLines(p.Expenses)

	periods, err := s.store.Leases().Periods(ctx, leaseID)
	if err != nil {
		return nil, fail(span, err)
	}
	p.TotalProvisionsReceivedCents, p.Provisions = allocator.Provisions(periods, r)
	p.BalanceCents = p.TotalRecoverableExpensesCents - p.TotalProvisionsReceivedCents

	span.SetAttributes(attribute.Int64("balance_cents", p.BalanceCents))
	return p, nil
}

// Commit persists the reconciliation and finalizes its expenses in one
// transaction. A record already committed for (lease, year) yields
// DuplicateRegularizationError; use Supersede to replace it.
func (s *Service) Commit(ctx context.Context, in CommitInput) (*models.Regularization, error) {
	return s.commit(ctx, in, nil)
}

// Supersede commits a record replacing previousID, which must be the active
// record for the same lease and year. Expenses of the previous record stay
// finalized even when the new record leaves them out.
func (s *Service) Supersede(ctx context.Context, previousID int64, in CommitInput) (*models.Regularization, error) {
	return s.commit(ctx, in, &previousID)
}

func (s *Service) commit(ctx context.Context, in CommitInput, supersedes *int64) (*models.Regularization, error) {
	ctx, span := s.tracer.Start(ctx, "regularization.Commit", trace.WithAttributes(
		attribute.Int64("lease.id", in.LeaseID),
		attribute.Int("year", in.Year),
		attribute.Bool("supersede", supersedes != nil),
	))
	defer span.End()

	if err := validateInput(in); err != nil {
		return nil, fail(span, err)
	}
	actor, err := s.guard.RequirePropertyOwner(ctx, in.PropertyID)
	if err != nil {
		return nil, fail(span, err)
	}

	rec := &models.Regularization{
		Reference:    uuid.New(),
		LeaseID:      in.LeaseID,
		PropertyID:   in.PropertyID,
		Year:         in.Year,
		SupersedesID: supersedes,
		CommittedBy:  actor.UserID,
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		lease, err := leaseOf(ctx, tx, in.LeaseID, in.PropertyID, true)
		if err != nil {
			return err
		}

		previous, err := checkActive(ctx, tx, in, supersedes)
		if err != nil {
			return err
		}

		r := allocator.Year(in.Year)
		expenses, err := tx.Expenses().GetByIDsForUpdate(ctx, in.IncludedExpenseIDs)
		if err != nil {
			return err
		}
		if err := checkExpenses(in, expenses, lease, r, previous); err != nil {
			return err
		}

		var recoverable int64
		for i := range expenses {
			recoverable += allocator.Recoverable(&expenses[i], r)
			rec.Lines = append(rec.Lines, lineOf(&expenses[i]))
		}
		sortLines(rec.Lines)

		periods, err := tx.Leases().Periods(ctx, in.LeaseID)
		if err != nil {
			return err
		}
		provisions, _ := allocator.Provisions(periods, r)

		if err := compareTotals(in, recoverable, provisions); err != nil {
			return err
		}
		rec.TotalRecoverableExpensesCents = recoverable
		rec.TotalProvisionsReceivedCents = provisions
		rec.BalanceCents = recoverable - provisions

		if err := tx.Regularizations().Create(ctx, rec); err != nil {
			return err
		}
		if _, err := tx.Expenses().Finalize(ctx, in.IncludedExpenseIDs); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.recordRejection(ctx, in, err)
		return nil, fail(span, err)
	}

	s.commits.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("regularization.id", rec.ID))
	logger.Log.Info().
		Str("user_hash", logger.HashUserID(actor.UserID)).
		Int64("regularization_id", rec.ID).
		Str("reference", rec.Reference.String()).
		Int64("lease_id", rec.LeaseID).
		Int("year", rec.Year).
		Int("expenses", len(rec.IncludedExpenseIDs)).
		Int64("balance_cents", rec.BalanceCents).
		Msg("Regularization committed")

	return rec, nil
}

// Active returns the record for (leaseID, year) that nothing supersedes.
func (s *Service) Active(ctx context.Context, leaseID, propertyID int64, year int) (*models.Regularization, error) {
	if _, err := s.guard.RequirePropertyOwner(ctx, propertyID); err != nil {
		return nil, err
	}
	if _, err := leaseOf(ctx, s.store, leaseID, propertyID, false); err != nil {
		return nil, err
	}
	return s.store.Regularizations().GetActive(ctx, leaseID, year)
}

// Get returns a committed record.
func (s *Service) Get(ctx context.Context, id int64) (*models.Regularization, error) {
	rec, err := s.store.Regularizations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequirePropertyOwner(ctx, rec.PropertyID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) recordRejection(ctx context.Context, in CommitInput, err error) {
	event := logger.Log.Warn().Err(err).Int64("lease_id", in.LeaseID).Int("year", in.Year)

	var dup *models.DuplicateRegularizationError
	var mismatch *models.IntegrityMismatchError
	switch {
	case errors.As(err, &dup):
		s.conflicts.Add(ctx, 1)
		event.Msg("Regularization commit rejected: already committed")
	case errors.As(err, &mismatch):
		s.mismatches.Add(ctx, 1)
		event.Str("field", mismatch.Field).Msg("Regularization commit rejected: totals mismatch")
	default:
		event.Msg("Regularization commit failed")
	}
}

func leaseOf(ctx context.Context, store repository.Store, leaseID, propertyID int64, forUpdate bool) (*models.Lease, error) {
	get := store.Leases().GetByID
	if forUpdate {
		get = store.Leases().GetByIDForUpdate
	}
	lease, err := get(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease.PropertyID != propertyID {
		return nil, &models.ValidationError{
			Field:  "propertyId",
			Reason: fmt.Sprintf("lease %d does not belong to property %d", leaseID, propertyID),
		}
	}
	return lease, nil
}

func activeRecord(ctx context.Context, store repository.Store, leaseID int64, year int) (*models.Regularization, error) {
	active, err := store.Regularizations().GetActive(ctx, leaseID, year)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return active, err
}

// checkActive returns the record being superseded, or nil for a first commit.
func checkActive(ctx context.Context, tx repository.Store, in CommitInput, supersedes *int64) (*models.Regularization, error) {
	active, err := activeRecord(ctx, tx, in.LeaseID, in.Year)
	if err != nil {
		return nil, err
	}
	if supersedes == nil {
		if active != nil {
			return nil, &models.DuplicateRegularizationError{LeaseID: in.LeaseID, Year: in.Year, ExistingID: active.ID}
		}
		return nil, nil
	}
	if active == nil {
		return nil, fmt.Errorf("regularization %d for lease %d year %d: %w",
			*supersedes, in.LeaseID, in.Year, models.ErrNotFound)
	}
	if active.ID != *supersedes {
		return nil, &models.DuplicateRegularizationError{LeaseID: in.LeaseID, Year: in.Year, ExistingID: active.ID}
	}
	return active, nil
}

func checkExpenses(in CommitInput, expenses []models.Expense, lease *models.Lease, r allocator.Range, previous *models.Regularization) error {
	if len(expenses) != len(in.IncludedExpenseIDs) {
		for _, id := range in.IncludedExpenseIDs {
			if !slices.ContainsFunc(expenses, func(e models.Expense) bool { return e.ID == id }) {
				return &models.ValidationError{Field: "includedExpenseIds", Reason: fmt.Sprintf("expense %d does not exist", id)}
			}
		}
	}

	for i := range expenses {
		e := &expenses[i]
		if e.PropertyID != in.PropertyID || !inScope(e, lease, r) {
			return &models.ValidationError{
				Field:  "includedExpenseIds",
				Reason: fmt.Sprintf("expense %d is not a recoverable expense of this lease in %d", e.ID, in.Year),
			}
		}
		if e.IsFinalized && (previous == nil || !slices.Contains(previous.IncludedExpenseIDs, e.ID)) {
			return &models.LockedError{ExpenseID: e.ID}
		}
	}
	return nil
}

func compareTotals(in CommitInput, recoverable, provisions int64) error {
	switch {
	case in.TotalRecoverableExpensesCents != recoverable:
		return &models.IntegrityMismatchError{
			Field: "totalRecoverableExpensesCents", Submitted: in.TotalRecoverableExpensesCents, Computed: recoverable,
		}
	case in.TotalProvisionsReceivedCents != provisions:
		return &models.IntegrityMismatchError{
			Field: "totalProvisionsReceivedCents", Submitted: in.TotalProvisionsReceivedCents, Computed: provisions,
		}
	case in.BalanceCents != recoverable-provisions:
		return &models.IntegrityMismatchError{
			Field: "balanceCents", Submitted: in.BalanceCents, Computed: recoverable - provisions,
		}
	}
	return nil
}

func inScope(e *models.Expense, lease *models.Lease, r allocator.Range) bool {
	return e.IsRecoverable && r.Contains(e.DateOccurred) && e.AppliesToUnit(lease.RentalUnitID)
}

func validateYear(year int) error {
	if year < 1900 || year > 9999 {
		return &models.ValidationError{Field: "year", Reason: fmt.Sprintf("%d is out of range", year)}
	}
	return nil
}

func validateInput(in CommitInput) error {
	if err := validateYear(in.Year); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(in.IncludedExpenseIDs))
	for _, id := range in.IncludedExpenseIDs {
		if seen[id] {
			return &models.ValidationError{Field: "includedExpenseIds", Reason: fmt.Sprintf("expense %d listed twice", id)}
		}
		seen[id] = true
	}
	return nil
}

func sortLines(lines []models.RegularizationLine) {
	slices.SortFunc(lines, func(a, b models.RegularizationLine) int {
		if c := a.DateOccurred.Compare(b.DateOccurred); c != 0 {
			return c
		}
		return cmp.Compare(a.ExpenseID, b.ExpenseID)
	})
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
