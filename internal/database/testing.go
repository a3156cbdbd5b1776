package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestURLEnv names the database used by integration tests. It must point at
// a disposable database: tests create and truncate the engine tables.
const TestURLEnv = "TEST_DATABASE_URL"

func testURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv(TestURLEnv)
	if url == "" {
		t.Skip(TestURLEnv + " not set, skipping integration test")
	}
	return url
}

// TestDB opens a pool owned by the calling test. The schema is not touched.
func TestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := Connect(context.Background(), testURL(t))
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

var shared struct {
	once sync.Once
	pool *pgxpool.Pool
	err  error
}

// TestPool returns the pool shared by all tests of the binary, migrated on
// first use.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := testURL(t)
	shared.once.Do(func() {
		ctx := context.Background()
		shared.pool, shared.err = Connect(ctx, url)
		if shared.err == nil {
			shared.err = RunMigrations(ctx, shared.pool)
		}
	})
	if shared.err != nil {
		t.Fatalf("failed to set up test database: %v", shared.err)
	}
	return shared.pool
}

// TestTx begins a transaction on the shared pool and rolls it back when the
// test ends. The transaction is also a TxBeginner: Begin on it opens a
// savepoint, so a store built with NewPGStore(tx, tx) runs InTx for real.
func TestTx(t *testing.T) pgx.Tx {
	t.Helper()

	tx, err := TestPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})
	return tx
}
