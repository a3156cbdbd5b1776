package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// LeaseRepository handles lease and financial period operations.
type LeaseRepository struct {
	db database.PGXDB
}

// NewLeaseRepository creates a new LeaseRepository.
func NewLeaseRepository(db database.PGXDB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// Create adds a new lease.
func (r *LeaseRepository) Create(ctx context.Context, lease *models.Lease) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO leases (property_id, rental_unit_id, tenant_name, start_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, lease.PropertyID, lease.RentalUnitID, lease.TenantName, lease.StartDate,
	).Scan(&lease.ID, &lease.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}
	return nil
}

// GetByID retrieves a lease by ID.
func (r *LeaseRepository) GetByID(ctx context.Context, id int64) (*models.Lease, error) {
	return r.get(ctx, `SELECT id, property_id, rental_unit_id, tenant_name, start_date, created_at
		FROM leases WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a lease and locks its row, serializing period
// changes for that lease within the surrounding transaction.
func (r *LeaseRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Lease, error) {
	return r.get(ctx, `SELECT id, property_id, rental_unit_id, tenant_name, start_date, created_at
		FROM leases WHERE id = $1 FOR UPDATE`, id)
}

func (r *LeaseRepository) get(ctx context.Context, query string, id int64) (*models.Lease, error) {
	var l models.Lease
	err := r.db.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.PropertyID, &l.RentalUnitID, &l.TenantName, &l.StartDate, &l.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "lease")
	}
	return &l, nil
}

// Periods returns the financial periods of a lease ordered by start date.
func (r *LeaseRepository) Periods(ctx context.Context, leaseID int64) ([]models.LeaseFinancialPeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lease_id, start_date, end_date, base_rent_cents, service_charges_cents, source,
		       base_index_year, base_index_quarter, base_index_value,
		       new_index_year, new_index_quarter, new_index_value, created_at
		FROM lease_financial_periods
		WHERE lease_id = $1
		ORDER BY start_date, id
	`, leaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query financial periods: %w", err)
	}
	defer rows.Close()

	var periods []models.LeaseFinancialPeriod
	for rows.Next() {
		var p models.LeaseFinancialPeriod
		var source string
		var baseYear, baseQuarter, newYear, newQuarter *int
		var baseValue, newValue decimal.NullDecimal
		if err := rows.Scan(
			&p.ID, &p.LeaseID, &p.StartDate, &p.EndDate, &p.BaseRentCents, &p.ServiceChargesCents, &source,
			&baseYear, &baseQuarter, &baseValue, &newYear, &newQuarter, &newValue, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan financial period: %w", err)
		}
		p.Source = models.PeriodSource(source)
		p.BaseIndex = indexPoint(baseYear, baseQuarter, baseValue)
		p.NewIndex = indexPoint(newYear, newQuarter, newValue)
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating financial periods: %w", err)
	}
	return periods, nil
}

// CreatePeriod inserts a financial period. A period already starting on the
// same date for the lease yields DuplicateRevisionError.
func (r *LeaseRepository) CreatePeriod(ctx context.Context, period *models.LeaseFinancialPeriod) error {
	if period.Source == "" {
		period.Source = models.PeriodSourceSigning
	}
	baseYear, baseQuarter, baseValue := indexColumns(period.BaseIndex)
	newYear, newQuarter, newValue := indexColumns(period.NewIndex)

	err := r.db.QueryRow(ctx, `
		INSERT INTO lease_financial_periods (lease_id, start_date, end_date, base_rent_cents,
			service_charges_cents, source, base_index_year, base_index_quarter, base_index_value,
			new_index_year, new_index_quarter, new_index_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, period.LeaseID, period.StartDate, period.EndDate, period.BaseRentCents, period.ServiceChargesCents,
		string(period.Source), baseYear, baseQuarter, baseValue, newYear, newQuarter, newValue,
	).Scan(&period.ID, &period.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, database.ConstraintPeriodLeaseStart) {
			return &models.DuplicateRevisionError{LeaseID: period.LeaseID, EffectiveDate: period.StartDate}
		}
		return fmt.Errorf("failed to create financial period: %w", err)
	}
	return nil
}

// ClosePeriod sets the end date of an open period.
func (r *LeaseRepository) ClosePeriod(ctx context.Context, periodID int64, end time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE lease_financial_periods SET end_date = $2
		WHERE id = $1 AND end_date IS NULL
	`, periodID, end)
	if err != nil {
		return fmt.Errorf("failed to close financial period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open financial period %d: %w", periodID, models.ErrNotFound)
	}
	return nil
}

func indexPoint(year, quarter *int, value decimal.NullDecimal) *models.IndexPoint {
	if year == nil || quarter == nil || !value.Valid {
		return nil
	}
	return &models.IndexPoint{Year: *year, Quarter: *quarter, Value: value.Decimal}
}

func indexColumns(p *models.IndexPoint) (*int, *int, decimal.NullDecimal) {
	if p == nil {
		return nil, nil, decimal.NullDecimal{}
	}
	return &p.Year, &p.Quarter, decimal.NullDecimal{Decimal: p.Value, Valid: true}
}
