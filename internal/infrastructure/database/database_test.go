package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return db
}

func TestOpenAndHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, err := Open(Config{Path: path, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() should create missing directories: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestCloseIsIdempotentOnNil(t *testing.T) {
	db := &DB{}
	if err := db.Close(); err != nil {
		t.Errorf("Close() on zero DB should be nil, got: %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		input       string
		wantVersion string
		wantName    string
		wantUp      bool
		wantErr     bool
	}{
		{"20260301_120000_accessories.up.sql", "20260301_120000", "accessories", true, false},
		{"20260301_120000_accessories.down.sql", "20260301_120000", "accessories", false, false},
		{"20260301_120000_state_history.up.sql", "20260301_120000", "state_history", true, false},
		{"garbage.sql", "", "", false, true},
		{"20260301_120000_x.sideways.sql", "", "", false, true},
	}

	for _, tt := range tests {
		version, name, up, err := parseMigrationFilename(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMigrationFilename(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMigrationFilename(%q): %v", tt.input, err)
			continue
		}
		if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.input, version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
		}
	}
}

func TestMigrateWithNoEmbeddedFiles(t *testing.T) {
	db := openTestDB(t)

	// MigrationsFS is unset in this test binary; Migrate should be a no-op.
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no embedded migrations: %v", err)
	}
}
