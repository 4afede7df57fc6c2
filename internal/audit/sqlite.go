package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/logging"
	"github.com/JonMunkholm/repairdesk/internal/repair"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS repair_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id    TEXT NOT NULL,
	log_name    TEXT NOT NULL,
	table_name  TEXT NOT NULL,
	column_name TEXT NOT NULL,
	dirty_value TEXT,
	clean_value TEXT,
	changed_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS repair_history_log_name_idx ON repair_history (log_name, changed_at);
`

const sqliteInsert = `INSERT INTO repair_history
	(batch_id, log_name, table_name, column_name, dirty_value, clean_value, changed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink journals batches to a local SQLite file.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the journal at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; the journal is append-only.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Submit(ctx context.Context, batch repair.AuditBatch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch.Records {
		_, err := stmt.ExecContext(ctx,
			batch.ID.String(),
			batch.LogName,
			r.Table,
			r.Column,
			toNullString(r.DirtyValue),
			toNullString(r.CleanValue),
			r.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logging.FromContext(ctx).Info("audit batch stored",
		"sink", KindSQLite,
		"log_name", batch.LogName,
		"batch_id", batch.ID,
		"records", len(batch.Records))
	return nil
}

// History returns the records stored under logName, oldest first.
func (s *SQLiteSink) History(ctx context.Context, logName string) ([]repair.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, column_name, dirty_value, clean_value, changed_at
		FROM repair_history
		WHERE log_name = ?
		ORDER BY id`, logName)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []repair.AuditRecord
	for rows.Next() {
		var (
			rec          repair.AuditRecord
			dirty, clean sql.NullString
			changedAt    string
		)
		if err := rows.Scan(&rec.Table, &rec.Column, &dirty, &clean, &changedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.DirtyValue = fromNullString(dirty)
		rec.CleanValue = fromNullString(clean)
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, changedAt); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", changedAt, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func toNullString(v dataset.Value) sql.NullString {
	s, ok := nullableText(v)
	return sql.NullString{String: s, Valid: ok}
}

// fromNullString reads a stored value back. Numbers come back as strings;
// the journal keeps text only.
func fromNullString(ns sql.NullString) dataset.Value {
	if !ns.Valid {
		return dataset.Null()
	}
	return dataset.Str(ns.String)
}
