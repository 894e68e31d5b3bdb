package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDatabaseURLEnv names the variable pointing integration tests at a
// disposable PostgreSQL database.
const TestDatabaseURLEnv = "TEST_DATABASE_URL"

var (
	sharedPool     *pgxpool.Pool
	sharedPoolOnce sync.Once
	sharedPoolErr  error
)

func testDatabaseURL(t *testing.T) string {
	t.Helper()

	url := os.Getenv(TestDatabaseURLEnv)
	if url == "" {
		t.Skip(TestDatabaseURLEnv + " not set, skipping integration test")
	}
	return url
}

// TestPool returns a pool shared by every test in the binary, with the
// schema already migrated.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := testDatabaseURL(t)
	sharedPoolOnce.Do(func() {
		ctx := context.Background()
		if sharedPool, sharedPoolErr = Connect(ctx, url); sharedPoolErr != nil {
			return
		}
		sharedPoolErr = RunMigrations(ctx, sharedPool)
	})
	if sharedPoolErr != nil {
		t.Fatalf("failed to set up test database: %v", sharedPoolErr)
	}
	return sharedPool
}

// TestTx opens a transaction on the shared pool and rolls it back at test
// cleanup. Repositories built on it see only their own writes.
//
//	repo := repository.NewCalculationRepository(database.TestTx(t))
func TestTx(t *testing.T) PGXDB {
	t.Helper()

	tx, err := TestPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin test transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})
	return tx
}
