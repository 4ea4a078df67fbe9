package db

import (
	"context"
	"database/sql"
	"fmt"
)

// tables は MySQL / SQLite 共通で通る DDL。
// NULL を許す UNIQUE 列（open_task_id, running_user_id）は「開いている行は 1 つまで」の制約。
var tables = []string{
	`CREATE TABLE IF NOT EXISTS user_locks (
		user_id    VARCHAR(64) NOT NULL PRIMARY KEY,
		touched_at DATETIME    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendances (
		id        CHAR(26)    NOT NULL PRIMARY KEY,
		user_id   VARCHAR(64) NOT NULL,
		duty_date CHAR(10)    NOT NULL,
		in_time   DATETIME    NOT NULL,
		out_time  DATETIME    NULL,
		auto_off  BOOLEAN     NOT NULL DEFAULT FALSE,
		CONSTRAINT uq_attendances_user_date UNIQUE (user_id, duty_date)
	)`,
	`CREATE TABLE IF NOT EXISTS duty_overrides (
		id         CHAR(26)     NOT NULL PRIMARY KEY,
		user_id    VARCHAR(64)  NOT NULL,
		duty_date  CHAR(10)     NOT NULL,
		start_at   DATETIME     NOT NULL,
		end_at     DATETIME     NOT NULL,
		note       VARCHAR(255) NULL,
		created_by VARCHAR(64)  NOT NULL,
		created_at DATETIME     NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id              CHAR(26)     NOT NULL PRIMARY KEY,
		assignee_id     VARCHAR(64)  NOT NULL,
		title           VARCHAR(255) NOT NULL,
		status          VARCHAR(32)  NOT NULL,
		total_seconds   BIGINT       NULL,
		last_resumed_at DATETIME     NULL
	)`,
	`CREATE TABLE IF NOT EXISTS task_work_sessions (
		id              CHAR(26)    NOT NULL PRIMARY KEY,
		task_id         CHAR(26)    NOT NULL,
		user_id         VARCHAR(64) NOT NULL,
		started_at      DATETIME    NOT NULL,
		ended_at        DATETIME    NULL,
		running_user_id VARCHAR(64) NULL,
		CONSTRAINT uq_sessions_running_user UNIQUE (running_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS task_breaks (
		id               CHAR(26)     NOT NULL PRIMARY KEY,
		task_id          CHAR(26)     NOT NULL,
		user_id          VARCHAR(64)  NOT NULL,
		reasons          VARCHAR(128) NOT NULL,
		note             VARCHAR(255) NULL,
		started_at       DATETIME     NOT NULL,
		ended_at         DATETIME     NULL,
		duration_seconds BIGINT       NULL,
		open_task_id     CHAR(26)     NULL,
		CONSTRAINT uq_breaks_open_task UNIQUE (open_task_id)
	)`,
	`CREATE TABLE IF NOT EXISTS manual_logs (
		id               CHAR(26)     NOT NULL PRIMARY KEY,
		user_id          VARCHAR(64)  NOT NULL,
		description      VARCHAR(500) NOT NULL,
		log_date         CHAR(10)     NOT NULL,
		categories       VARCHAR(255) NOT NULL,
		start_at         DATETIME     NOT NULL,
		end_at           DATETIME     NULL,
		duration_seconds BIGINT       NOT NULL DEFAULT 0,
		running_user_id  VARCHAR(64)  NULL,
		created_at       DATETIME     NOT NULL,
		updated_at       DATETIME     NOT NULL,
		CONSTRAINT uq_manual_logs_running_user UNIQUE (running_user_id)
	)`,
}

type index struct{ name, table, cols string }

var indexes = []index{
	{"idx_overrides_user_date", "duty_overrides", "user_id, duty_date"},
	{"idx_sessions_user_start", "task_work_sessions", "user_id, started_at"},
	{"idx_breaks_user_start", "task_breaks", "user_id, started_at"},
	{"idx_breaks_task", "task_breaks", "task_id"},
	{"idx_manual_logs_user_date", "manual_logs", "user_id, log_date"},
	{"idx_manual_logs_user_start", "manual_logs", "user_id, start_at"},
}

// Migrate はスキーマを作成する。何度実行してもよい。
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	for _, ddl := range tables {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, ix := range indexes {
		if err := createIndex(ctx, db, driver, ix); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func createIndex(ctx context.Context, db *sql.DB, driver string, ix index) error {
	if driver == DriverSQLite {
		_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", ix.name, ix.table, ix.cols))
		return err
	}
	// MySQL は CREATE INDEX IF NOT EXISTS を持たないので information_schema で確認する
	var n int
	err := db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM information_schema.statistics
	WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`, ix.table, ix.name).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", ix.name, ix.table, ix.cols))
	return err
}
