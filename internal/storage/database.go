package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"audioedit/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database configured under dbType.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return OpenSQLite(dbCfg.DSN)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			mysqlParams(dbCfg.Params),
		)
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}
}

// OpenSQLite opens a sqlite3 database. ":memory:" is accepted for tests.
func OpenSQLite(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must be provided")
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection: in-memory databases are per connection and sqlite serializes writers anyway
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// ensureSQLiteDir creates the directory holding a file-backed database.
// URI and in-memory DSNs are left to the driver.
func ensureSQLiteDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path, _, _ := strings.Cut(dsn, "?")
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory: %w", err)
	}
	return nil
}

// mysql needs parseTime so DATETIME columns scan into time.Time.
func mysqlParams(params string) string {
	if strings.Contains(params, "parseTime") {
		return params
	}
	if params == "" {
		return "parseTime=true"
	}
	return params + "&parseTime=true"
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				client TEXT NOT NULL,
				mode TEXT NOT NULL,
				method TEXT NOT NULL,
				output_format TEXT NOT NULL,
				quality TEXT NOT NULL,
				crossfade REAL NOT NULL,
				target_seconds INTEGER NOT NULL,
				file_count INTEGER NOT NULL,
				normalize INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				template TEXT NOT NULL DEFAULT '',
				output_size INTEGER NOT NULL DEFAULT 0,
				download_name TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS temp_files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id TEXT NOT NULL,
				role TEXT NOT NULL,
				file_name TEXT NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_temp_files_job ON temp_files(job_id)`,
			`CREATE INDEX IF NOT EXISTS idx_temp_files_expiry ON temp_files(expires_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS jobs (
				id VARCHAR(64) NOT NULL,
				client VARCHAR(255) NOT NULL,
				mode VARCHAR(32) NOT NULL,
				method VARCHAR(64) NOT NULL,
				output_format VARCHAR(16) NOT NULL,
				quality VARCHAR(16) NOT NULL,
				crossfade DOUBLE NOT NULL,
				target_seconds BIGINT NOT NULL,
				file_count INT NOT NULL,
				normalize TINYINT(1) NOT NULL DEFAULT 0,
				status VARCHAR(16) NOT NULL,
				message TEXT NOT NULL,
				template VARCHAR(32) NOT NULL DEFAULT '',
				output_size BIGINT NOT NULL DEFAULT 0,
				download_name VARCHAR(255) NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_jobs_created_at (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS temp_files (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				job_id VARCHAR(64) NOT NULL,
				role VARCHAR(16) NOT NULL,
				file_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type VARCHAR(255) NOT NULL,
				size BIGINT NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_temp_files_job (job_id),
				INDEX idx_temp_files_expiry (expires_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
