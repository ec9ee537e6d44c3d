package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "data", "nested", "halomqtt.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("journal mode follows config", func(t *testing.T) {
		for _, wal := range []bool{true, false} {
			db, err := Open(Config{Path: filepath.Join(t.TempDir(), "j.db"), WALMode: wal, BusyTimeout: 1})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			var mode string
			if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
				t.Fatalf("PRAGMA journal_mode error = %v", err)
			}
			if (mode == "wal") != wal {
				t.Errorf("WALMode=%v: journal_mode = %q", wal, mode)
			}
			db.Close() //nolint:errcheck // Test cleanup
		}
	})
}

func TestOpenAndMigrate(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: filepath.Join(t.TempDir(), "halomqtt.db"), BusyTimeout: 5}

	db, err := OpenAndMigrate(ctx, cfg, testMigrations)
	if err != nil {
		t.Fatalf("OpenAndMigrate() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO test_lights (tag, level) VALUES (?, ?)", "halomqtt_1_1", 200); err != nil {
		t.Errorf("insert into migrated table error = %v", err)
	}
	db.Close() //nolint:errcheck // Test cleanup

	broken := fstest.MapFS{"20261018_110000_bad.up.sql": &fstest.MapFile{Data: []byte("NOT SQL")}}
	if _, err := OpenAndMigrate(ctx, cfg, broken); err == nil {
		t.Error("OpenAndMigrate() expected error for broken migration")
	}
}

// TestHealthCheck verifies the health check functionality.
func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestClose verifies graceful shutdown.
func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

// TestBeginTx verifies commit and rollback through the wrapper.
func TestBeginTx(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	for _, commit := range []bool{true, false} {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", commit); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if commit {
			err = tx.Commit()
		} else {
			err = tx.Rollback()
		}
		if err != nil {
			t.Fatalf("finishing tx (commit=%v) error = %v", commit, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tx_test").Scan(&count); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1 (only the committed insert)", count)
	}
}

// TestStats verifies stats are returned.
func TestStats(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if stats := db.Stats(); stats.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %v, want 1 (SQLite single writer)", stats.MaxOpenConnections)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	return db
}
