package repository

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// ExpenseRepository handles expense database operations.
type ExpenseRepository struct {
	db database.PGXDB
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.PGXDB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

const expenseColumns = `id, property_id, rental_unit_id, category, label, amount_total, date_occurred,
	frequency, is_recoverable, amount_recoverable, amount_deductible, proof_reference,
	is_finalized, created_at, updated_at`

// Create adds a new expense. New expenses are never finalized.
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	if expense.Frequency == "" {
		expense.Frequency = models.FrequencyOnce
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO expenses (property_id, rental_unit_id, category, label, amount_total, date_occurred,
			frequency, is_recoverable, amount_recoverable, amount_deductible, proof_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, is_finalized, created_at, updated_at
	`, expense.PropertyID, expense.RentalUnitID, string(expense.Category), expense.Label,
		expense.AmountTotal, expense.DateOccurred, string(expense.Frequency), expense.IsRecoverable,
		expense.AmountRecoverable, expense.AmountDeductible, expense.ProofReference,
	).Scan(&expense.ID, &expense.IsFinalized, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense by ID.
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*models.Expense, error) {
	row := r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	exp, err := scanExpense(row)
	if err != nil {
		return nil, notFound(err, "expense")
	}
	return exp, nil
}

// GetByIDForUpdate retrieves an expense and locks its row until the
// surrounding transaction ends.
func (r *ExpenseRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Expense, error) {
	row := r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 FOR UPDATE`, id)
	exp, err := scanExpense(row)
	if err != nil {
		return nil, notFound(err, "expense")
	}
	return exp, nil
}

// GetByIDsForUpdate locks and returns the given expenses ordered by ID.
// Missing IDs are simply absent from the result.
func (r *ExpenseRepository) GetByIDsForUpdate(ctx context.Context, ids []int64) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses by ids: %w", err)
	}
	defer rows.Close()

	return scanExpenses(rows)
}

// GetByPropertyAndDateRange retrieves expenses of a property occurring in
// [start, end), ordered by date then ID.
func (r *ExpenseRepository) GetByPropertyAndDateRange(
	ctx context.Context,
	propertyID int64,
	start, end time.Time,
) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE property_id = $1 AND date_occurred >= $2 AND date_occurred < $3
		ORDER BY date_occurred, id
	`, propertyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses by date range: %w", err)
	}
	defer rows.Close()

	return scanExpenses(rows)
}

// Update writes every mutable column of an expense.
func (r *ExpenseRepository) Update(ctx context.Context, expense *models.Expense) error {
	err := r.db.QueryRow(ctx, `
		UPDATE expenses SET
			rental_unit_id = $2,
			category = $3,
			label = $4,
			amount_total = $5,
			date_occurred = $6,
			frequency = $7,
			is_recoverable = $8,
			amount_recoverable = $9,
			amount_deductible = $10,
			proof_reference = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, expense.ID, expense.RentalUnitID, string(expense.Category), expense.Label, expense.AmountTotal,
		expense.DateOccurred, string(expense.Frequency), expense.IsRecoverable, expense.AmountRecoverable,
		expense.AmountDeductible, expense.ProofReference,
	).Scan(&expense.UpdatedAt)
	if err != nil {
		if database.IsExpenseFinalized(err) {
			return &models.LockedError{ExpenseID: expense.ID}
		}
		return notFound(err, "expense")
	}
	return nil
}

// Delete removes an unfinalized expense.
func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		if database.IsExpenseFinalized(err) {
			return &models.LockedError{ExpenseID: id}
		}
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense: %w", models.ErrNotFound)
	}
	return nil
}

// Finalize locks the given expenses. Already finalized rows are untouched.
// Returns the number of rows that transitioned.
func (r *ExpenseRepository) Finalize(ctx context.Context, ids []int64) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE expenses SET is_finalized = TRUE, updated_at = NOW()
		WHERE id = ANY($1) AND NOT is_finalized
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to finalize expenses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	var exp models.Expense
	var category, frequency string
	if err := row.Scan(
		&exp.ID, &exp.PropertyID, &exp.RentalUnitID, &category, &exp.Label, &exp.AmountTotal,
		&exp.DateOccurred, &frequency, &exp.IsRecoverable, &exp.AmountRecoverable, &exp.AmountDeductible,
		&exp.ProofReference, &exp.IsFinalized, &exp.CreatedAt, &exp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	exp.Category = models.Category(category)
	exp.Frequency = models.Frequency(frequency)
	return &exp, nil
}

// scanExpenses is a helper to scan expense rows.
func scanExpenses(rows rowsIterator) ([]models.Expense, error) {
	var expenses []models.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}
