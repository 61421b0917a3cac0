package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	})
	return db
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.DatabasePath != "./data/visualmath.db" {
		t.Errorf("Expected DatabasePath './data/visualmath.db', got %s", config.DatabasePath)
	}
	if config.MaxConnections != 10 {
		t.Errorf("Expected MaxConnections 10, got %d", config.MaxConnections)
	}
	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime 1 hour, got %v", config.ConnMaxLifetime)
	}
	if config.MigrationsPath != "" {
		t.Errorf("Expected embedded migrations by default, got %s", config.MigrationsPath)
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"empty database path", func(c *Config) { c.DatabasePath = "" }, true},
		{"zero max connections", func(c *Config) { c.MaxConnections = 0 }, true},
		{"zero lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }, true},
		{"zero idle time", func(c *Config) { c.ConnMaxIdleTime = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMigrationManager_EmbeddedSchema(t *testing.T) {
	db := openTestDB(t)

	mgr := NewMigrationManager(db, MigrationsFS(""))
	if err := mgr.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	// A second run finds everything applied.
	if err := mgr.ApplyMigrations(); err != nil {
		t.Fatalf("second ApplyMigrations failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 applied migration, got %d", count)
	}

	if err := NewSchemaValidator(db).Validate(); err != nil {
		t.Errorf("Schema validation failed after migrations: %v", err)
	}
}

func TestMigrationManager_DirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_second.sql": `CREATE TABLE second (id INTEGER);`,
		"001_first.sql":  `CREATE TABLE first (id INTEGER);`,
		"README.md":      `not a migration`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	db := openTestDB(t)
	mgr := NewMigrationManager(db, MigrationsFS(dir))

	migrations, err := mgr.loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(migrations) != 2 || migrations[0].Version != "001" || migrations[1].Description != "second" {
		t.Fatalf("Unexpected migrations: %+v", migrations)
	}

	if err := mgr.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	for _, table := range []string{"first", "second"} {
		ok, err := NewSchemaValidator(db).exists("table", table)
		if err != nil || !ok {
			t.Errorf("table %s missing (err=%v)", table, err)
		}
	}
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	dir := t.TempDir()
	body := `CREATE TABLE half (id INTEGER); THIS IS NOT SQL;`
	if err := os.WriteFile(filepath.Join(dir, "001_broken.sql"), []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write migration: %v", err)
	}

	db := openTestDB(t)
	if err := NewMigrationManager(db, MigrationsFS(dir)).ApplyMigrations(); err == nil {
		t.Fatal("Expected broken migration to fail")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 0 {
		t.Errorf("Broken migration must not be recorded, got %d rows", count)
	}
}

func TestApplySQLiteOptimizations(t *testing.T) {
	db := openTestDB(t)

	if err := ApplySQLiteOptimizations(db); err != nil {
		t.Fatalf("Failed to apply SQLite optimizations: %v", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to check journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected WAL journal mode, got %s", journalMode)
	}
}
