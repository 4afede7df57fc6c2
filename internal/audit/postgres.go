package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/repairdesk/internal/config"
	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/logging"
	"github.com/JonMunkholm/repairdesk/internal/repair"
)

const historyTable = "repair_history"

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS repair_history (
	id          BIGSERIAL PRIMARY KEY,
	batch_id    UUID        NOT NULL,
	log_name    TEXT        NOT NULL,
	table_name  TEXT        NOT NULL,
	column_name TEXT        NOT NULL,
	dirty_value TEXT,
	clean_value TEXT,
	changed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS repair_history_log_name_idx ON repair_history (log_name, changed_at);
`

var historyColumns = []string{
	"batch_id", "log_name", "table_name", "column_name",
	"dirty_value", "clean_value", "changed_at",
}

// pgConn is the subset of *pgxpool.Pool the sink uses.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// PostgresSink copies batches into the repair_history table.
type PostgresSink struct {
	db    pgConn
	close func()
}

// OpenPostgres connects with the pool settings in cfg and creates the
// history table if needed.
func OpenPostgres(ctx context.Context, cfg config.AuditConfig) (*PostgresSink, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresSink{db: pool, close: pool.Close}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresSink wraps an existing pool. The caller keeps ownership.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: pool}
}

// EnsureSchema creates the history table and index.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("create %s: %w", historyTable, err)
	}
	return nil
}

func (s *PostgresSink) Submit(ctx context.Context, batch repair.AuditBatch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	batchID := pgtype.UUID{Bytes: batch.ID, Valid: true}
	rows := make([][]any, len(batch.Records))
	for i, r := range batch.Records {
		rows[i] = []any{
			batchID,
			batch.LogName,
			r.Table,
			r.Column,
			toPgText(r.DirtyValue),
			toPgText(r.CleanValue),
			pgtype.Timestamptz{Time: r.Timestamp, Valid: true},
		}
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{historyTable}, historyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", historyTable, err)
	}

	logging.FromContext(ctx).Info("audit batch stored",
		"sink", KindPostgres,
		"log_name", batch.LogName,
		"batch_id", batch.ID,
		"records", n)
	return nil
}

// Close releases the pool when the sink opened it.
func (s *PostgresSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func toPgText(v dataset.Value) pgtype.Text {
	s, ok := nullableText(v)
	return pgtype.Text{String: s, Valid: ok}
}
