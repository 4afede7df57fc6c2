// Package audit delivers committed repair batches to one or more history
// stores: the backend's upsert endpoint, a Postgres table or a local SQLite
// journal.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/repairdesk/internal/config"
	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/repair"
)

// Sink kinds accepted by AUDIT_SINK.
const (
	KindRemote   = "remote"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
)

// Sink stores audit batches. It is satisfied by every sink in this package
// and by repair.AuditSink.
type Sink interface {
	Submit(ctx context.Context, batch repair.AuditBatch) error
}

// Closer is implemented by sinks that hold connections.
type Closer interface {
	Close() error
}

// MultiSink submits every batch to each sink in turn. All sinks are tried;
// failures are joined.
//
// A batch that fails on some sinks is remembered by ID. When it is submitted
// again each sink only receives the records it has not stored yet, so a
// healthy sink never stores a record twice.
type MultiSink struct {
	sinks []Sink

	mu        sync.Mutex
	delivered map[uuid.UUID][]int // per sink, length of the stored prefix
}

// NewMultiSink fans batches out to sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, delivered: make(map[uuid.UUID][]int)}
}

// Len reports the number of sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) Submit(ctx context.Context, batch repair.AuditBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.delivered[batch.ID]
	if !ok {
		stored = make([]int, len(m.sinks))
	}

	var errs []error
	for i, s := range m.sinks {
		if stored[i] >= len(batch.Records) {
			continue
		}
		part := batch
		part.Records = batch.Records[stored[i]:]
		if err := s.Submit(ctx, part); err != nil {
			errs = append(errs, err)
			continue
		}
		stored[i] = len(batch.Records)
	}

	if len(errs) == 0 {
		delete(m.delivered, batch.ID)
		return nil
	}
	m.delivered[batch.ID] = stored
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Open builds the sinks named in cfg.Sinks. up serves the remote sink and
// may be nil when "remote" is not listed.
func Open(ctx context.Context, cfg config.AuditConfig, up Upserter) (*MultiSink, error) {
	var sinks []Sink
	for _, kind := range ParseKinds(cfg.Sinks) {
		var (
			s   Sink
			err error
		)
		switch kind {
		case KindRemote:
			if up == nil {
				err = errors.New("remote audit sink needs a backend client")
			} else {
				s = NewRemoteSink(up)
			}
		case KindPostgres:
			s, err = OpenPostgres(ctx, cfg)
		case KindSQLite:
			s, err = OpenSQLite(ctx, cfg.SQLitePath)
		default:
			err = fmt.Errorf("unknown audit sink %q", kind)
		}
		if err != nil {
			NewMultiSink(sinks...).Close()
			return nil, fmt.Errorf("open %s audit sink: %w", kind, err)
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}

// ParseKinds splits a comma-separated sink list, dropping blanks and
// duplicates.
func ParseKinds(list string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range strings.Split(list, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// nullableText maps a value to a nullable text column.
func nullableText(v dataset.Value) (string, bool) {
	if v.IsNull() {
		return "", false
	}
	return v.String(), true
}
