// Package repository provides PostgreSQL-backed persistence for the engine.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// UserStore persists landlord accounts.
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// PropertyStore persists properties.
type PropertyStore interface {
	Create(ctx context.Context, property *models.Property) error
	GetByID(ctx context.Context, id int64) (*models.Property, error)
}

// ExpenseStore persists ledger expenses.
type ExpenseStore interface {
	Create(ctx context.Context, expense *models.Expense) error
	GetByID(ctx context.Context, id int64) (*models.Expense, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Expense, error)
	GetByIDsForUpdate(ctx context.Context, ids []int64) ([]models.Expense, error)
	GetByPropertyAndDateRange(ctx context.Context, propertyID int64, start, end time.Time) ([]models.Expense, error)
	Update(ctx context.Context, expense *models.Expense) error
	Delete(ctx context.Context, id int64) error
	Finalize(ctx context.Context, ids []int64) (int, error)
}

// LeaseStore persists leases and their financial periods.
type LeaseStore interface {
	Create(ctx context.Context, lease *models.Lease) error
	GetByID(ctx context.Context, id int64) (*models.Lease, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Lease, error)
	Periods(ctx context.Context, leaseID int64) ([]models.LeaseFinancialPeriod, error)
	CreatePeriod(ctx context.Context, period *models.LeaseFinancialPeriod) error
	ClosePeriod(ctx context.Context, periodID int64, end time.Time) error
}

// RegularizationStore persists committed regularization records.
type RegularizationStore interface {
	Create(ctx context.Context, rec *models.Regularization) error
	GetByID(ctx context.Context, id int64) (*models.Regularization, error)
	GetActive(ctx context.Context, leaseID int64, year int) (*models.Regularization, error)
}

// IndexStore persists published reference index values.
type IndexStore interface {
	Upsert(ctx context.Context, series string, point models.IndexPoint) error
	Get(ctx context.Context, series string, year, quarter int) (*models.IndexPoint, error)
	List(ctx context.Context, series string) ([]models.IndexPoint, error)
}

// Store is the persistence surface used by the engine services.
// InTx runs fn against a store bound to one transaction; fn's error rolls
// everything back.
type Store interface {
	Users() UserStore
	Properties() PropertyStore
	Expenses() ExpenseStore
	Leases() LeaseStore
	Regularizations() RegularizationStore
	Index() IndexStore
	InTx(ctx context.Context, fn func(Store) error) error
}

// PGStore implements Store over a pgx pool or transaction.
type PGStore struct {
	db              database.PGXDB
	beginner        database.TxBeginner
	users           *UserRepository
	properties      *PropertyRepository
	expenses        *ExpenseRepository
	leases          *LeaseRepository
	regularizations *RegularizationRepository
	index           *IndexRepository
}

var _ Store = (*PGStore)(nil)

// NewPGStore creates a store. beginner may be nil when db is already a
// transaction, in which case InTx reuses it.
func NewPGStore(db database.PGXDB, beginner database.TxBeginner) *PGStore {
	return &PGStore{
		db:              db,
		beginner:        beginner,
		users:           NewUserRepository(db),
		properties:      NewPropertyRepository(db),
		expenses:        NewExpenseRepository(db),
		leases:          NewLeaseRepository(db),
		regularizations: NewRegularizationRepository(db),
		index:           NewIndexRepository(db),
	}
}

func (s *PGStore) Users() UserStore                     { return s.users }
func (s *PGStore) Properties() PropertyStore            { return s.properties }
func (s *PGStore) Expenses() ExpenseStore               { return s.expenses }
func (s *PGStore) Leases() LeaseStore                   { return s.leases }
func (s *PGStore) Regularizations() RegularizationStore { return s.regularizations }
func (s *PGStore) Index() IndexStore                    { return s.index }

// InTx runs fn inside a transaction and commits only if fn succeeds.
func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.beginner == nil {
		return fn(s)
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(NewPGStore(tx, nil)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to models.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type rowsIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}
