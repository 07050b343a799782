package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// RunLog 同步运行历史的 SQLite 存储层
type RunLog struct {
	db *sql.DB
}

// RunRecord 一次同步运行的记录
type RunRecord struct {
	RunID          string `json:"run_id"`
	Source         string `json:"source"`
	Status         string `json:"status"`
	OrdersTotal    int    `json:"orders_total"`
	OrdersAppended int    `json:"orders_appended"`
	OrdersReplaced int    `json:"orders_replaced"`
	OrdersSkipped  int    `json:"orders_skipped"`
	OrdersCorrupt  int    `json:"orders_corrupt"`
	RowsAdded      int    `json:"rows_added"`
	RowsRemoved    int    `json:"rows_removed"`
	ErrorMessage   string `json:"error_message,omitempty"`
	StartedAt      string `json:"started_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// NewRunLog 打开（或创建）运行历史数据库
func NewRunLog(dbPath string) (*RunLog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite 建议单连接
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &RunLog{db: db}
	if err := l.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return l, nil
}

func (l *RunLog) initSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := l.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (l *RunLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Begin 登记一次开始运行
func (l *RunLog) Begin(runID, source string) error {
	_, err := l.db.Exec(`
		INSERT INTO sync_runs (run_id, source, status)
		VALUES (?, ?, 'running')
	`, runID, source)
	if err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}
	return nil
}

// Complete 登记运行结束
func (l *RunLog) Complete(runID, status string, rec RunRecord) error {
	_, err := l.db.Exec(`
		UPDATE sync_runs SET
			status = ?,
			orders_total = ?,
			orders_appended = ?,
			orders_replaced = ?,
			orders_skipped = ?,
			orders_corrupt = ?,
			rows_added = ?,
			rows_removed = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE run_id = ?
	`, status, rec.OrdersTotal, rec.OrdersAppended, rec.OrdersReplaced,
		rec.OrdersSkipped, rec.OrdersCorrupt, rec.RowsAdded, rec.RowsRemoved,
		rec.ErrorMessage, runID)
	if err != nil {
		return fmt.Errorf("failed to update run record: %w", err)
	}
	return nil
}

// Latest 最近一次运行记录；无记录时返回 (nil, nil)
func (l *RunLog) Latest() (*RunRecord, error) {
	row := l.db.QueryRow(`
		SELECT run_id, source, status,
		       orders_total, orders_appended, orders_replaced, orders_skipped, orders_corrupt,
		       rows_added, rows_removed, error_message,
		       started_at, IFNULL(completed_at, '')
		FROM sync_runs ORDER BY id DESC LIMIT 1
	`)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return rec, nil
}

// Recent 最近 n 次运行记录，按时间倒序
func (l *RunLog) Recent(n int) ([]RunRecord, error) {
	rows, err := l.db.Query(`
		SELECT run_id, source, status,
		       orders_total, orders_appended, orders_replaced, orders_skipped, orders_corrupt,
		       rows_added, rows_removed, error_message,
		       started_at, IFNULL(completed_at, '')
		FROM sync_runs ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(r rowScanner) (*RunRecord, error) {
	var rec RunRecord
	err := r.Scan(
		&rec.RunID, &rec.Source, &rec.Status,
		&rec.OrdersTotal, &rec.OrdersAppended, &rec.OrdersReplaced, &rec.OrdersSkipped, &rec.OrdersCorrupt,
		&rec.RowsAdded, &rec.RowsRemoved, &rec.ErrorMessage,
		&rec.StartedAt, &rec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
