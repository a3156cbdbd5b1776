package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Unique index names translated into domain errors by the repositories.
const (
	ConstraintPeriodLeaseStart         = "uq_periods_lease_start"
	ConstraintRegularizationActive     = "uq_regularizations_lease_year_original"
	ConstraintRegularizationSupersedes = "uq_regularizations_supersedes"
	ConstraintIndexQuarter             = "uq_index_values_quarter"
)

// ErrCodeExpenseFinalized is the SQLSTATE raised when a write touches the
// financial fields of a finalized expense or deletes it.
const ErrCodeExpenseFinalized = "LE001"

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			telegram_chat_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS properties (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_properties_owner_id ON properties(owner_id)`,

		`CREATE TABLE IF NOT EXISTS leases (
			id BIGSERIAL PRIMARY KEY,
			property_id BIGINT NOT NULL REFERENCES properties(id),
			rental_unit_id BIGINT,
			tenant_name TEXT NOT NULL DEFAULT '',
			start_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leases_property_id ON leases(property_id)`,

		`CREATE TABLE IF NOT EXISTS lease_financial_periods (
			id BIGSERIAL PRIMARY KEY,
			lease_id BIGINT NOT NULL REFERENCES leases(id),
			start_date DATE NOT NULL,
			end_date DATE,
			base_rent_cents BIGINT NOT NULL CHECK (base_rent_cents >= 0),
			service_charges_cents BIGINT NOT NULL CHECK (service_charges_cents >= 0),
			source TEXT NOT NULL DEFAULT 'signing',
			base_index_year INTEGER,
			base_index_quarter INTEGER,
			base_index_value NUMERIC(10, 2),
			new_index_year INTEGER,
			new_index_quarter INTEGER,
			new_index_value NUMERIC(10, 2),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (end_date IS NULL OR end_date > start_date)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + ConstraintPeriodLeaseStart + `
			ON lease_financial_periods(lease_id, start_date)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id BIGSERIAL PRIMARY KEY,
			property_id BIGINT NOT NULL REFERENCES properties(id),
			rental_unit_id BIGINT,
			category TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			amount_total BIGINT NOT NULL CHECK (amount_total > 0),
			date_occurred DATE NOT NULL,
			frequency TEXT NOT NULL DEFAULT 'ONCE'
				CONSTRAINT chk_expenses_frequency CHECK (frequency IN ('ONCE', 'MONTHLY', 'QUARTERLY', 'YEARLY')),
			is_recoverable BOOLEAN NOT NULL DEFAULT FALSE,
			amount_recoverable BIGINT NOT NULL DEFAULT 0,
			amount_deductible BIGINT NOT NULL DEFAULT 0 CHECK (amount_deductible >= 0),
			proof_reference TEXT NOT NULL DEFAULT '',
			is_finalized BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (amount_recoverable >= 0 AND amount_recoverable <= amount_total)
		)`,
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_expenses_frequency') THEN
				ALTER TABLE expenses ADD CONSTRAINT chk_expenses_frequency
					CHECK (frequency IN ('ONCE', 'MONTHLY', 'QUARTERLY', 'YEARLY'));
			END IF;
		END $$`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_property_date ON expenses(property_id, date_occurred)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_is_finalized ON expenses(is_finalized)`,

		// Finalized rows keep their financial fields and cannot be deleted,
		// whatever path the write comes from.
		`CREATE OR REPLACE FUNCTION expenses_guard_finalized() RETURNS trigger AS $$
		BEGIN
			IF TG_OP = 'DELETE' THEN
				IF OLD.is_finalized THEN
					RAISE EXCEPTION 'expense % is finalized', OLD.id USING ERRCODE = '` + ErrCodeExpenseFinalized + `';
				END IF;
				RETURN OLD;
			END IF;
			IF OLD.is_finalized AND (
				NOT NEW.is_finalized
				OR NEW.category <> OLD.category
				OR NEW.amount_total <> OLD.amount_total
				OR NEW.is_recoverable <> OLD.is_recoverable
				OR NEW.amount_recoverable <> OLD.amount_recoverable
				OR NEW.amount_deductible <> OLD.amount_deductible
				OR NEW.date_occurred <> OLD.date_occurred
				OR NEW.property_id <> OLD.property_id
				OR NEW.rental_unit_id IS DISTINCT FROM OLD.rental_unit_id
			) THEN
				RAISE EXCEPTION 'expense % is finalized', OLD.id USING ERRCODE = '` + ErrCodeExpenseFinalized + `';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_expenses_guard_finalized ON expenses`,
		`CREATE TRIGGER trg_expenses_guard_finalized
			BEFORE UPDATE OR DELETE ON expenses
			FOR EACH ROW EXECUTE FUNCTION expenses_guard_finalized()`,

		`CREATE TABLE IF NOT EXISTS regularizations (
			id BIGSERIAL PRIMARY KEY,
			reference UUID NOT NULL UNIQUE,
			lease_id BIGINT NOT NULL REFERENCES leases(id),
			property_id BIGINT NOT NULL REFERENCES properties(id),
			year INTEGER NOT NULL,
			total_recoverable_cents BIGINT NOT NULL,
			total_provisions_cents BIGINT NOT NULL,
			balance_cents BIGINT NOT NULL,
			supersedes_id BIGINT REFERENCES regularizations(id),
			committed_by BIGINT NOT NULL,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (balance_cents = total_recoverable_cents - total_provisions_cents)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + ConstraintRegularizationActive + `
			ON regularizations(lease_id, year) WHERE supersedes_id IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + ConstraintRegularizationSupersedes + `
			ON regularizations(supersedes_id) WHERE supersedes_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS regularization_expenses (
			regularization_id BIGINT NOT NULL REFERENCES regularizations(id),
			expense_id BIGINT NOT NULL REFERENCES expenses(id),
			category TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			date_occurred DATE NOT NULL,
			amount_recoverable BIGINT NOT NULL,
			PRIMARY KEY (regularization_id, expense_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_regularization_expenses_expense_id
			ON regularization_expenses(expense_id)`,

		`CREATE TABLE IF NOT EXISTS index_values (
			id BIGSERIAL PRIMARY KEY,
			series TEXT NOT NULL,
			year INTEGER NOT NULL,
			quarter INTEGER NOT NULL CHECK (quarter BETWEEN 1 AND 4),
			value NUMERIC(10, 2) NOT NULL CHECK (value > 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + ConstraintIndexQuarter + `
			ON index_values(series, year, quarter)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
