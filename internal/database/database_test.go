package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("fails with invalid connection string", func(t *testing.T) {
		ctx := context.Background()
		pool, err := Connect(ctx, "invalid://connection")
		require.Error(t, err)
		require.Nil(t, pool)
	})

	t.Run("fails with unreachable host", func(t *testing.T) {
		ctx := context.Background()
		pool, err := Connect(ctx, "postgres://localhost:59999/nonexistent?connect_timeout=1")
		require.Error(t, err)
		require.Nil(t, pool)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_periods_lease_start"}
	wrapped := fmt.Errorf("failed to insert: %w", dup)

	require.True(t, IsUniqueViolation(wrapped, "uq_periods_lease_start"))
	require.True(t, IsUniqueViolation(wrapped, ""))
	require.False(t, IsUniqueViolation(wrapped, "other"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	require.False(t, IsUniqueViolation(errors.New("boom"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool))

	for _, table := range []string{
		"users", "properties", "leases", "lease_financial_periods",
		"expenses", "regularizations", "regularization_expenses", "index_values",
	} {
		var n int
		err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
		require.NoError(t, err, table)
	}
}

func TestMigrations_UniqueIndexes(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, pool))

	for _, name := range []string{
		ConstraintPeriodLeaseStart,
		ConstraintRegularizationActive,
		ConstraintRegularizationSupersedes,
		ConstraintIndexQuarter,
	} {
		t.Run(name, func(t *testing.T) {
			var exists bool
			err := pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT FROM pg_indexes WHERE indexname = $1)`, name,
			).Scan(&exists)
			require.NoError(t, err)
			require.True(t, exists, "index %s should exist", name)
		})
	}
}

func TestTestTx_Savepoints(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	_, err := tx.Exec(ctx, `INSERT INTO users (id, username) VALUES (991, 'outer')`)
	require.NoError(t, err)

	inner, err := tx.Begin(ctx)
	require.NoError(t, err)
	_, err = inner.Exec(ctx, `INSERT INTO users (id, username) VALUES (992, 'inner')`)
	require.NoError(t, err)
	require.NoError(t, inner.Rollback(ctx))

	var n int
	require.NoError(t, tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id IN (991, 992)`).Scan(&n))
	require.Equal(t, 1, n)
}
