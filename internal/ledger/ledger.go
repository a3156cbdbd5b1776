// Package ledger records and classifies operating expenses.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/lease-engine/internal/access"
	"gitlab.com/yelinaung/lease-engine/internal/allocator"
	"gitlab.com/yelinaung/lease-engine/internal/gemini"
	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
	"gitlab.com/yelinaung/lease-engine/internal/telemetry"
)

// CategorySuggester proposes a category for a free-text expense label.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, label string, categories []models.Category) (*gemini.CategorySuggestion, error)
}

// Service is the expense ledger.
type Service struct {
	store     repository.Store
	guard     *access.Guard
	suggester CategorySuggester
	tracer    trace.Tracer
}

// New creates a ledger service. suggester may be nil.
func New(store repository.Store, suggester CategorySuggester) *Service {
	return &Service{
		store:     store,
		guard:     access.NewGuard(store.Properties()),
		suggester: suggester,
		tracer:    otel.Tracer(telemetry.ScopeName),
	}
}

// RecordInput describes a new expense. Optional fields are pointers.
type RecordInput struct {
	PropertyID   int64
	RentalUnitID *int64
	Category     string
	Label        string
	AmountTotal  int64
	DateOccurred string
	Frequency    models.Frequency
	// IsRecoverable defaults from the category. A recoverable expense with
	// no AmountRecoverable recovers its full total only in that default case.
	IsRecoverable     *bool
	AmountRecoverable *int64
	// AmountDeductible is only accepted for categories with the MANUAL rule.
	AmountDeductible *int64
	ProofReference   string
}

// Patch lists the fields to change on an expense. Nil means unchanged.
type Patch struct {
	Category          *string
	Label             *string
	AmountTotal       *int64
	DateOccurred      *string
	Frequency         *models.Frequency
	IsRecoverable     *bool
	AmountRecoverable *int64
	AmountDeductible  *int64
	ProofReference    *string
}

// financialField returns the first financial field the patch touches.
func (p *Patch) financialField() string {
	switch {
	case p.Category != nil:
		return "category"
	case p.AmountTotal != nil:
		return "amountTotal"
	case p.DateOccurred != nil:
		return "dateOccurred"
	case p.IsRecoverable != nil:
		return "isRecoverable"
	case p.AmountRecoverable != nil:
		return "amountRecoverable"
	case p.AmountDeductible != nil:
		return "amountDeductible"
	}
	return ""
}

// RecordExpense validates, classifies and persists a new expense.
func (s *Service) RecordExpense(ctx context.Context, in RecordInput) (*models.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RecordExpense",
		trace.WithAttributes(attribute.Int64("property.id", in.PropertyID)))
	defer span.End()

	actor, err := s.guard.RequirePropertyOwner(ctx, in.PropertyID)
	if err != nil {
		return nil, fail(span, err)
	}

	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return nil, fail(span, err)
	}
	date, err := models.ParseDate("dateOccurred", in.DateOccurred)
	if err != nil {
		return nil, fail(span, err)
	}
	label, err := cleanLabel(in.Label)
	if err != nil {
		return nil, fail(span, err)
	}

	exp := &models.Expense{
		PropertyID:     in.PropertyID,
		RentalUnitID:   in.RentalUnitID,
		Category:       category,
		Label:          label,
		AmountTotal:    in.AmountTotal,
		DateOccurred:   date,
		Frequency:      in.Frequency,
		ProofReference: strings.TrimSpace(in.ProofReference),
	}
	if exp.Frequency == "" {
		exp.Frequency = models.FrequencyOnce
	}

	recoverable := in.IsRecoverable
	amountRecoverable := in.AmountRecoverable
	if recoverable == nil {
		def := category.DefaultRecoverable()
		recoverable = &def
		if def && amountRecoverable == nil {
			amountRecoverable = &in.AmountTotal
		}
	}
	exp.IsRecoverable = *recoverable
	if amountRecoverable != nil {
		exp.AmountRecoverable = *amountRecoverable
	}

	if err := classify(exp, in.AmountDeductible, amountRecoverable != nil); err != nil {
		return nil, fail(span, err)
	}

	if err := s.store.Expenses().Create(ctx, exp); err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.Int64("expense.id", exp.ID))
	logger.Log.Info().
		Str("user_hash", logger.HashUserID(actor.UserID)).
		Int64("expense_id", exp.ID).
		Int64("property_id", exp.PropertyID).
		Str("category", string(exp.Category)).
		Int64("amount_total", exp.AmountTotal).
		Msg("Expense recorded")

	return exp, nil
}

// UpdateExpense applies patch to an expense. Financial fields of a
// finalized expense cannot change: such a patch fails with LockedError.
func (s *Service) UpdateExpense(ctx context.Context, id int64, patch Patch) (*models.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.UpdateExpense",
		trace.WithAttributes(attribute.Int64("expense.id", id)))
	defer span.End()

	if _, err := s.GetExpense(ctx, id); err != nil {
		return nil, fail(span, err)
	}

	var updated *models.Expense
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		exp, err := tx.Expenses().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if field := patch.financialField(); exp.IsFinalized && field != "" {
			logger.Log.Warn().
				Int64("expense_id", id).
				Str("field", field).
				Msg("Rejected change to finalized expense")
			return &models.LockedError{ExpenseID: id, Field: field}
		}

		if err := applyPatch(exp, patch); err != nil {
			return err
		}
		if err := tx.Expenses().Update(ctx, exp); err != nil {
			return err
		}
		updated = exp
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	logger.Log.Info().Int64("expense_id", id).Msg("Expense updated")
	return updated, nil
}

// AttachProof sets the proof reference. It is allowed on finalized expenses.
func (s *Service) AttachProof(ctx context.Context, id int64, reference string) (*models.Expense, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, &models.ValidationError{Field: "proofReference", Reason: "must not be empty"}
	}
	return s.UpdateExpense(ctx, id, Patch{ProofReference: &reference})
}

// DeleteExpense removes an unfinalized expense. Finalized expenses yield
// LockedError; they can only be excluded by a superseding regularization.
func (s *Service) DeleteExpense(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "ledger.DeleteExpense",
		trace.WithAttributes(attribute.Int64("expense.id", id)))
	defer span.End()

	if _, err := s.GetExpense(ctx, id); err != nil {
		return fail(span, err)
	}

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		exp, err := tx.Expenses().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if exp.IsFinalized {
			return &models.LockedError{ExpenseID: id}
		}
		return tx.Expenses().Delete(ctx, id)
	})
	if err != nil {
		return fail(span, err)
	}

	logger.Log.Info().Int64("expense_id", id).Msg("Expense deleted")
	return nil
}

// GetExpense returns one expense of a property owned by the actor. Mutations
// check ownership through it before opening their transaction; an expense
// never changes property.
func (s *Service) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	exp, err := s.store.Expenses().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequirePropertyOwner(ctx, exp.PropertyID); err != nil {
		return nil, err
	}
	return exp, nil
}

// ListExpenses returns the expenses of a property dated in year, ordered by
// date then ID.
func (s *Service) ListExpenses(ctx context.Context, propertyID int64, year int) ([]models.Expense, error) {
	if _, err := s.guard.RequirePropertyOwner(ctx, propertyID); err != nil {
		return nil, err
	}
	r := allocator.Year(year)
	return s.store.Expenses().GetByPropertyAndDateRange(ctx, propertyID, r.Start, r.End)
}

// SuggestCategory asks the configured suggester for a category. The result
// is always a member of the category set.
func (s *Service) SuggestCategory(ctx context.Context, label string) (models.Category, error) {
	if s.suggester == nil {
		return "", errors.New("category suggestion is not configured")
	}
	label, err := cleanLabel(label)
	if err != nil {
		return "", err
	}
	if label == "" {
		return "", &models.ValidationError{Field: "label", Reason: "must not be empty"}
	}

	suggestion, err := s.suggester.SuggestCategory(ctx, label, models.AllCategories)
	if err != nil {
		return "", fmt.Errorf("failed to suggest category: %w", err)
	}
	category, err := models.ParseCategory(suggestion.Category)
	if err != nil {
		logger.Log.Warn().
			Str("label", logger.SanitizeLabel(label)).
			Str("suggested", suggestion.Category).
			Msg("Suggester returned unknown category")
		return models.CategoryOther, nil
	}
	return category, nil
}

func applyPatch(exp *models.Expense, p Patch) error {
	if p.Label != nil {
		label, err := cleanLabel(*p.Label)
		if err != nil {
			return err
		}
		exp.Label = label
	}
	if p.Frequency != nil {
		if !p.Frequency.Valid() {
			return &models.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", *p.Frequency)}
		}
		exp.Frequency = *p.Frequency
	}
	if p.ProofReference != nil {
		exp.ProofReference = strings.TrimSpace(*p.ProofReference)
	}
	if p.financialField() == "" {
		return nil
	}

	if p.Category != nil {
		category, err := models.ParseCategory(*p.Category)
		if err != nil {
			return err
		}
		exp.Category = category
	}
	wasRecoverable := exp.IsRecoverable
	if p.AmountTotal != nil {
		exp.AmountTotal = *p.AmountTotal
	}
	if p.DateOccurred != nil {
		date, err := models.ParseDate("dateOccurred", *p.DateOccurred)
		if err != nil {
			return err
		}
		exp.DateOccurred = date
	}
	if p.IsRecoverable != nil {
		exp.IsRecoverable = *p.IsRecoverable
		if !exp.IsRecoverable {
			exp.AmountRecoverable = 0
		}
	}
	if p.AmountRecoverable != nil {
		exp.AmountRecoverable = *p.AmountRecoverable
	}

	manual := p.AmountDeductible
	if manual == nil && exp.Category.Rule() == models.RuleManual {
		manual = &exp.AmountDeductible
	}
	// Turning recovery on needs an explicit amount, as when recording.
	return classify(exp, manual, wasRecoverable || p.AmountRecoverable != nil)
}

// classify checks amount bounds and derives AmountDeductible from the
// category rule.
func classify(exp *models.Expense, manual *int64, recoverableGiven bool) error {
	if exp.AmountTotal <= 0 {
		return &models.ValidationError{Field: "amountTotal", Reason: "must be greater than zero"}
	}
	if !exp.Frequency.Valid() {
		return &models.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", exp.Frequency)}
	}
	if exp.IsRecoverable {
		if !recoverableGiven {
			return &models.ValidationError{Field: "amountRecoverable", Reason: "required when the expense is recoverable"}
		}
		if exp.AmountRecoverable < 0 || exp.AmountRecoverable > exp.AmountTotal {
			return &models.ValidationError{Field: "amountRecoverable", Reason: "must be between 0 and amountTotal"}
		}
	} else if exp.AmountRecoverable != 0 {
		return &models.ValidationError{Field: "amountRecoverable", Reason: "must be zero when the expense is not recoverable"}
	}

	rule := exp.Category.Rule()
	if manual != nil && rule != models.RuleManual {
		return &models.ValidationError{
			Field:  "amountDeductible",
			Reason: fmt.Sprintf("category %s derives it automatically", exp.Category),
		}
	}
	deductible, err := models.Deductible(rule, exp.AmountTotal, exp.AmountRecoverable, manual)
	if err != nil {
		return err
	}
	exp.AmountDeductible = deductible
	return nil
}

func cleanLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if utf8.RuneCountInString(label) > models.MaxLabelLength {
		return "", &models.ValidationError{
			Field:  "label",
			Reason: fmt.Sprintf("must be at most %d characters", models.MaxLabelLength),
		}
	}
	return label, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
