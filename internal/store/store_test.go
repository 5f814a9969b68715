package store

import (
	"context"
	"crypto/rand"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wirewarden/wirewarden/internal/database"
	"github.com/wirewarden/wirewarden/internal/vault"
)

// testStore connects to WIREWARDEN_TEST_DATABASE_URL and applies
// migrations. Tests that need a live Postgres skip themselves when the
// variable is unset, matching the corpus's privilege-skip convention
// for environment-gated tests.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("WIREWARDEN_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WIREWARDEN_TEST_DATABASE_URL not set, skipping store integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	db := &database.DB{Pool: pool}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	v, err := vault.New(secret)
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}

	s := New(pool, v)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `TRUNCATE networks CASCADE`)
	})
	return s
}
