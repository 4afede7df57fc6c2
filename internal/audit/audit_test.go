package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/repairdesk/internal/config"
	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/remote"
	"github.com/JonMunkholm/repairdesk/internal/repair"
)

var ts = time.Date(2024, 3, 1, 17, 30, 15, 123000000, time.UTC)

func sampleRecords() []repair.AuditRecord {
	return []repair.AuditRecord{
		{Table: "orders", Column: "city", DirtyValue: dataset.Str("Bostn"), CleanValue: dataset.Str("Boston"), Timestamp: ts},
		{Table: "orders", Column: "city", DirtyValue: dataset.Null(), CleanValue: dataset.Str("Chicago"), Timestamp: ts},
	}
}

var batchID = uuid.MustParse("6f1c2a9e-3b7d-4c1e-9a51-2f0d8e4b7c10")

func newBatch(logName string, records []repair.AuditRecord) repair.AuditBatch {
	return repair.AuditBatch{ID: batchID, LogName: logName, Records: records}
}

func TestSQLiteSink_SubmitAndHistory(t *testing.T) {
	ctx := context.Background()
	sink, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "journal", "audit.db"))
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Submit(ctx, newBatch("history_log_orders", sampleRecords())))
	require.NoError(t, sink.Submit(ctx, newBatch("history_log_other", sampleRecords()[:1])))
	require.NoError(t, sink.Submit(ctx, newBatch("history_log_orders", nil)))

	got, err := sink.History(ctx, "history_log_orders")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "city", got[0].Column)
	assert.True(t, got[0].DirtyValue.Equal(dataset.Str("Bostn")))
	assert.True(t, got[1].DirtyValue.IsNull())
	assert.True(t, got[1].CleanValue.Equal(dataset.Str("Chicago")))
	assert.True(t, got[0].Timestamp.Equal(ts))

	other, err := sink.History(ctx, "history_log_other")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

type fakeCopier struct {
	execSQL []string
	table   pgx.Identifier
	columns []string
	rows    [][]any
	err     error
}

func (f *fakeCopier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeCopier) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.table, f.columns = table, columns
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.rows = append(f.rows, vals)
	}
	return int64(len(f.rows)), src.Err()
}

func TestPostgresSink_Submit(t *testing.T) {
	fc := &fakeCopier{}
	sink := &PostgresSink{db: fc}

	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.Len(t, fc.execSQL, 1)
	assert.Contains(t, fc.execSQL[0], "CREATE TABLE IF NOT EXISTS repair_history")

	require.NoError(t, sink.Submit(context.Background(), newBatch("history_log_orders", sampleRecords())))

	assert.Equal(t, pgx.Identifier{"repair_history"}, fc.table)
	assert.Equal(t, historyColumns, fc.columns)
	require.Len(t, fc.rows, 2)

	first := fc.rows[0]
	assert.Equal(t, "history_log_orders", first[1])
	assert.Equal(t, pgtype.Text{String: "Bostn", Valid: true}, first[4])
	assert.Equal(t, pgtype.Text{String: "Boston", Valid: true}, first[5])
	assert.Equal(t, pgtype.Text{}, fc.rows[1][4])
	assert.Equal(t, pgtype.UUID{Bytes: batchID, Valid: true}, first[0])
	assert.Equal(t, first[0], fc.rows[1][0], "one batch id per submit")
}

func TestPostgresSink_CopyError(t *testing.T) {
	sink := &PostgresSink{db: &fakeCopier{err: errors.New("relation does not exist")}}
	err := sink.Submit(context.Background(), newBatch("history_log_orders", sampleRecords()))
	assert.ErrorContains(t, err, "copy into repair_history")
}

// fakeUpserter accumulates every record it is sent.
type fakeUpserter struct {
	logName string
	records []repair.AuditRecord
	err     error
}

func (f *fakeUpserter) UpsertRows(ctx context.Context, logName string, records []repair.AuditRecord) (*remote.UpsertResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.logName = logName
	f.records = append(f.records, records...)
	return &remote.UpsertResponse{Status: "ok", Upserted: len(records)}, nil
}

func TestRemoteSink(t *testing.T) {
	up := &fakeUpserter{}
	require.NoError(t, NewRemoteSink(up).Submit(context.Background(), newBatch("history_log_orders", sampleRecords())))
	assert.Equal(t, "history_log_orders", up.logName)
	assert.Len(t, up.records, 2)
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	ok := &fakeUpserter{}
	bad := &fakeUpserter{err: &repair.RemoteError{Op: repair.OpUpsertRows, Status: 503}}
	m := NewMultiSink(NewRemoteSink(bad), NewRemoteSink(ok))

	err := m.Submit(context.Background(), newBatch("history_log_orders", sampleRecords()))
	var re *repair.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Len(t, ok.records, 2, "later sinks still receive the batch")
}

func TestMultiSink_RetryOnlyResendsToFailedSinks(t *testing.T) {
	ctx := context.Background()
	healthy := &fakeUpserter{}
	flaky := &fakeUpserter{err: errors.New("connection refused")}
	m := NewMultiSink(NewRemoteSink(healthy), NewRemoteSink(flaky))

	records := sampleRecords()
	require.Error(t, m.Submit(ctx, newBatch("history_log_orders", records[:1])))
	assert.Len(t, healthy.records, 1)

	// The pending batch grew before the retry.
	flaky.err = nil
	require.NoError(t, m.Submit(ctx, newBatch("history_log_orders", records)))

	assert.Len(t, healthy.records, 2, "healthy sink gets only the new record")
	assert.Len(t, flaky.records, 2, "flaky sink gets the whole batch")
	assert.Empty(t, m.delivered, "delivered batches are forgotten")

	// A fully delivered ID starts from scratch if it is ever reused.
	require.NoError(t, m.Submit(ctx, newBatch("history_log_orders", records[:1])))
	assert.Len(t, healthy.records, 3)
}

func TestParseKinds(t *testing.T) {
	assert.Equal(t, []string{"remote", "sqlite"}, ParseKinds(" Remote, sqlite,,remote "))
	assert.Empty(t, ParseKinds(""))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	sinks, err := Open(ctx, config.AuditConfig{
		Sinks:      "sqlite,remote",
		SQLitePath: filepath.Join(t.TempDir(), "audit.db"),
	}, &fakeUpserter{})
	require.NoError(t, err)
	defer sinks.Close()
	require.Equal(t, 2, sinks.Len())
	assert.IsType(t, &SQLiteSink{}, sinks.sinks[0])
	assert.IsType(t, &RemoteSink{}, sinks.sinks[1])

	_, err = Open(ctx, config.AuditConfig{Sinks: "kafka"}, nil)
	assert.ErrorContains(t, err, "unknown audit sink")

	_, err = Open(ctx, config.AuditConfig{Sinks: "remote"}, nil)
	assert.Error(t, err)
}
