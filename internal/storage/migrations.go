package storage

import (
	"database/sql"
	"fmt"
)

type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// MigrationRunner 按版本顺序应用 schema 变更；已应用的版本记录在 schema_migrations。
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "initial_schema", Apply: migrateV001},
		},
	}
}

// Run 幂等：重复执行只会跳过已记录的版本。
func (r *MigrationRunner) Run() error {
	if _, err := r.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("开启外键约束：%w", err)
	}
	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("创建 schema_migrations：%w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(m.Version)
		if err != nil {
			return fmt.Errorf("检查 migration %d：%w", m.Version, err)
		}
		if applied {
			continue
		}
		if err := r.apply(m); err != nil {
			return fmt.Errorf("应用 migration %d (%s)：%w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *MigrationRunner) isApplied(version int) (bool, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MigrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return fmt.Errorf("记录 migration：%w", err)
	}
	return tx.Commit()
}

func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS harvests (
			run_id       TEXT PRIMARY KEY,
			chart        TEXT NOT NULL,
			start_period TEXT NOT NULL,
			end_period   TEXT NOT NULL,
			started_at   DATETIME NOT NULL,
			finished_at  DATETIME NOT NULL,
			canceled     BOOLEAN NOT NULL DEFAULT 0,
			succeeded    INTEGER NOT NULL DEFAULT 0,
			failed       INTEGER NOT NULL DEFAULT 0,
			records      INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS harvest_items (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL REFERENCES harvests(run_id) ON DELETE CASCADE,
			seq          INTEGER NOT NULL,
			period       TEXT NOT NULL,
			chart_date   TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL CHECK (status IN ('ok', 'empty', 'failed', 'no_dates')),
			error_code   TEXT NOT NULL DEFAULT '',
			error_msg    TEXT NOT NULL DEFAULT '',
			entries      INTEGER NOT NULL DEFAULT 0,
			skipped_rows INTEGER NOT NULL DEFAULT 0,
			UNIQUE(run_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS chart_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL REFERENCES harvests(run_id) ON DELETE CASCADE,
			chart      TEXT NOT NULL,
			chart_date TEXT NOT NULL,
			rank       INTEGER NOT NULL CHECK (rank > 0),
			title      TEXT NOT NULL,
			artist     TEXT NOT NULL,
			last_week  TEXT NOT NULL,
			peak       INTEGER NOT NULL,
			weeks      TEXT NOT NULL,
			image_url  TEXT NOT NULL,
			trend      TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_chart_entries_date ON chart_entries(chart, chart_date)`,
		`CREATE INDEX IF NOT EXISTS idx_chart_entries_run  ON chart_entries(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_harvest_items_run  ON harvest_items(run_id)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
