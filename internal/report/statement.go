// Package report renders regularization statements as CSV and charts.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/regularization"
)

// Statement is what a tenant receives for one regularization.
type Statement struct {
	LeaseID                       int64
	Year                          int
	Reference                     string
	Lines                         []models.RegularizationLine
	TotalRecoverableExpensesCents int64
	TotalProvisionsReceivedCents  int64
	BalanceCents                  int64
}

// FromRecord builds the statement of a committed record.
func FromRecord(rec *models.Regularization) Statement {
	return Statement{
		LeaseID:                       rec.LeaseID,
		Year:                          rec.Year,
		Reference:                     rec.Reference.String(),
		Lines:                         rec.Lines,
		TotalRecoverableExpensesCents: rec.TotalRecoverableExpensesCents,
		TotalProvisionsReceivedCents:  rec.TotalProvisionsReceivedCents,
		BalanceCents:                  rec.BalanceCents,
	}
}

// FromPreview builds a draft statement. Drafts have no reference.
func FromPreview(p *regularization.Preview) Statement {
	return Statement{
		LeaseID:                       p.LeaseID,
		Year:                          p.Year,
		Lines:                         p.Expenses,
		TotalRecoverableExpensesCents: p.TotalRecoverableExpensesCents,
		TotalProvisionsReceivedCents:  p.TotalProvisionsReceivedCents,
		BalanceCents:                  p.BalanceCents,
	}
}

// Cents formats minor units as a fixed two-decimal amount.
func Cents(c int64) string {
	return decimal.New(c, -2).StringFixed(2)
}

// CSVFilename returns e.g. "regularization_lease12_2024.csv".
func (s Statement) CSVFilename() string {
	return fmt.Sprintf("regularization_lease%d_%d.csv", s.LeaseID, s.Year)
}

// ChartFilename returns e.g. "regularization_lease12_2024.png".
func (s Statement) ChartFilename() string {
	return fmt.Sprintf("regularization_lease%d_%d.png", s.LeaseID, s.Year)
}

// Summary is the one-paragraph text of the statement.
func (s Statement) Summary() string {
	outcome := "Tenant owes"
	amount := s.BalanceCents
	if s.BalanceCents < 0 {
		outcome = "Refund due to tenant"
		amount = -s.BalanceCents
	}
	return fmt.Sprintf("Charge regularization %d (lease %d)\nRecoverable expenses: %s\nProvisions received: %s\n%s: %s",
		s.Year, s.LeaseID,
		Cents(s.TotalRecoverableExpensesCents),
		Cents(s.TotalProvisionsReceivedCents),
		outcome, Cents(amount))
}
