package storage

import (
	"os"
	"path/filepath"
	"testing"

	"audioedit/internal/config"
)

func TestOpenSQLiteCreatesParentDir(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "data", "audioedit.db")

	db, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	info, err := os.Stat(filepath.Dir(dsn))
	if err != nil {
		t.Fatalf("stat data dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %s to be a directory", filepath.Dir(dsn))
	}
	if _, err := os.Stat(dsn); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestOpenDefaultConfigInFreshDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open default database: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "audioedit.db")); err != nil {
		t.Fatalf("expected database under data/: %v", err)
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty jobs table, got %d", n)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"oracle": {}}}
	if _, err := Open("oracle", cfg); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
