package audit

import (
	"context"

	"github.com/JonMunkholm/repairdesk/internal/logging"
	"github.com/JonMunkholm/repairdesk/internal/remote"
	"github.com/JonMunkholm/repairdesk/internal/repair"
)

// Upserter is the part of the backend client the remote sink needs.
type Upserter interface {
	UpsertRows(ctx context.Context, logName string, records []repair.AuditRecord) (*remote.UpsertResponse, error)
}

// RemoteSink appends batches to the backend's history index.
type RemoteSink struct {
	up Upserter
}

func NewRemoteSink(up Upserter) *RemoteSink {
	return &RemoteSink{up: up}
}

func (s *RemoteSink) Submit(ctx context.Context, batch repair.AuditBatch) error {
	resp, err := s.up.UpsertRows(ctx, batch.LogName, batch.Records)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("audit batch upserted",
		"log_name", batch.LogName,
		"batch_id", batch.ID,
		"records", len(batch.Records),
		"status", resp.Status,
		"upserted", resp.Upserted)
	return nil
}
