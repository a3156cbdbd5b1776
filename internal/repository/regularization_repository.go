package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// RegularizationRepository handles committed regularization records.
// Records are insert-only.
type RegularizationRepository struct {
	db database.PGXDB
}

// NewRegularizationRepository creates a new RegularizationRepository.
func NewRegularizationRepository(db database.PGXDB) *RegularizationRepository {
	return &RegularizationRepository{db: db}
}

// Create inserts a record and its expense snapshot lines. The unique indexes
// make this the serialization point between concurrent commits: the loser
// gets DuplicateRegularizationError.
func (r *RegularizationRepository) Create(ctx context.Context, rec *models.Regularization) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO regularizations (reference, lease_id, property_id, year, total_recoverable_cents,
			total_provisions_cents, balance_cents, supersedes_id, committed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, committed_at
	`, rec.Reference, rec.LeaseID, rec.PropertyID, rec.Year, rec.TotalRecoverableExpensesCents,
		rec.TotalProvisionsReceivedCents, rec.BalanceCents, rec.SupersedesID, rec.CommittedBy,
	).Scan(&rec.ID, &rec.CommittedAt)
	if err != nil {
		if database.IsUniqueViolation(err, database.ConstraintRegularizationActive) ||
			database.IsUniqueViolation(err, database.ConstraintRegularizationSupersedes) {
			return &models.DuplicateRegularizationError{LeaseID: rec.LeaseID, Year: rec.Year}
		}
		return fmt.Errorf("failed to create regularization: %w", err)
	}

	ids := make([]int64, 0, len(rec.Lines))
	for _, line := range rec.Lines {
		_, err := r.db.Exec(ctx, `
			INSERT INTO regularization_expenses (regularization_id, expense_id, category, label,
				date_occurred, amount_recoverable)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.ID, line.ExpenseID, string(line.Category), line.Label, line.DateOccurred, line.AmountRecoverable)
		if err != nil {
			return fmt.Errorf("failed to record regularization expense %d: %w", line.ExpenseID, err)
		}
		ids = append(ids, line.ExpenseID)
	}
	rec.IncludedExpenseIDs = ids
	return nil
}

const regularizationColumns = `id, reference, lease_id, property_id, year, total_recoverable_cents,
	total_provisions_cents, balance_cents, supersedes_id, committed_by, committed_at`

// GetByID retrieves a record with its lines.
func (r *RegularizationRepository) GetByID(ctx context.Context, id int64) (*models.Regularization, error) {
	row := r.db.QueryRow(ctx, `SELECT `+regularizationColumns+` FROM regularizations WHERE id = $1`, id)
	return r.load(ctx, row)
}

// GetActive returns the record for (lease, year) that nothing supersedes.
func (r *RegularizationRepository) GetActive(ctx context.Context, leaseID int64, year int) (*models.Regularization, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+regularizationColumns+` FROM regularizations g
		WHERE g.lease_id = $1 AND g.year = $2
		  AND NOT EXISTS (SELECT 1 FROM regularizations s WHERE s.supersedes_id = g.id)
	`, leaseID, year)
	return r.load(ctx, row)
}

func (r *RegularizationRepository) load(ctx context.Context, row pgx.Row) (*models.Regularization, error) {
	var rec models.Regularization
	err := row.Scan(
		&rec.ID, &rec.Reference, &rec.LeaseID, &rec.PropertyID, &rec.Year, &rec.TotalRecoverableExpensesCents,
		&rec.TotalProvisionsReceivedCents, &rec.BalanceCents, &rec.SupersedesID, &rec.CommittedBy, &rec.CommittedAt,
	)
	if err != nil {
		return nil, notFound(err, "regularization")
	}

	rows, err := r.db.Query(ctx, `
		SELECT expense_id, category, label, date_occurred, amount_recoverable
		FROM regularization_expenses
		WHERE regularization_id = $1
		ORDER BY date_occurred, expense_id
	`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query regularization expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line models.RegularizationLine
		var category string
		if err := rows.Scan(&line.ExpenseID, &category, &line.Label, &line.DateOccurred, &line.AmountRecoverable); err != nil {
			return nil, fmt.Errorf("failed to scan regularization expense: %w", err)
		}
		line.Category = models.Category(category)
		rec.Lines = append(rec.Lines, line)
		rec.IncludedExpenseIDs = append(rec.IncludedExpenseIDs, line.ExpenseID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regularization expenses: %w", err)
	}
	return &rec, nil
}
