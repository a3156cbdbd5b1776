package regularization

import (
	"fmt"
	"slices"

	"gitlab.com/yelinaung/lease-engine/internal/allocator"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// Preview is a non-persisted reconciliation of one lease year.
type Preview struct {
	LeaseID    int64
	PropertyID int64
	Year       int
	// ActiveID is the committed record for the same key, if any.
	ActiveID *int64

	Expenses   []models.RegularizationLine
	Provisions []allocator.ProvisionLine

	TotalRecoverableExpensesCents int64
	TotalProvisionsReceivedCents  int64
	BalanceCents                  int64
}

// IncludedExpenseIDs returns the IDs of the expenses still in the preview.
func (p *Preview) IncludedExpenseIDs() []int64 {
	ids := make([]int64, len(p.Expenses))
	for i, e := range p.Expenses {
		ids[i] = e.ExpenseID
	}
	return ids
}

// Exclude drops one expense and subtracts it from the totals.
func (p *Preview) Exclude(expenseID int64) error {
	i := slices.IndexFunc(p.Expenses, func(e models.RegularizationLine) bool {
		return e.ExpenseID == expenseID
	})
	if i < 0 {
		return fmt.Errorf("expense %d is not in the preview: %w", expenseID, models.ErrNotFound)
	}
	p.TotalRecoverableExpensesCents -= p.Expenses[i].AmountRecoverable
	p.BalanceCents = p.TotalRecoverableExpensesCents - p.TotalProvisionsReceivedCents
	p.Expenses = slices.Delete(p.Expenses, i, i+1)
	return nil
}

// CommitInput returns the commit request matching the preview as it stands.
func (p *Preview) CommitInput() CommitInput {
	return CommitInput{
		LeaseID:                       p.LeaseID,
		PropertyID:                    p.PropertyID,
		Year:                          p.Year,
		BalanceCents:                  p.BalanceCents,
		TotalRecoverableExpensesCents: p.TotalRecoverableExpensesCents,
		TotalProvisionsReceivedCents:  p.TotalProvisionsReceivedCents,
		IncludedExpenseIDs:            p.IncludedExpenseIDs(),
	}
}

// TenantOwes reports whether the balance is an additional bill for the tenant.
func (p *Preview) TenantOwes() bool {
	return p.BalanceCents > 0
}

func lineOf(e *models.Expense) models.RegularizationLine {
	return models.RegularizationLine{
		ExpenseID:         e.ID,
		Category:          e.Category,
		Label:             e.Label,
		DateOccurred:      e.DateOccurred,
		AmountRecoverable: e.AmountRecoverable,
	}
}
