package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yourusername/stakecraft/internal/config"
)

// SetupTestDB creates a test database connection and verifies it. Tests using
// it are skipped unless STAKECRAFT_TEST_DB is set.
func SetupTestDB(t *testing.T) *DB {
	if os.Getenv("STAKECRAFT_TEST_DB") == "" {
		t.Skip("STAKECRAFT_TEST_DB not set, skipping database test")
	}

	cfg, err := config.LoadWithDefaults(os.Getenv("STAKECRAFT_TEST_DB"))
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Initialize(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	return db
}

// TeardownTestDB closes the database connection cleanly
func TeardownTestDB(t *testing.T, db *DB) {
	db.Close()
}
