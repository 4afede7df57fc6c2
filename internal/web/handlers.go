package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/repair"
	"github.com/JonMunkholm/repairdesk/internal/web/templates"
)

// multipartOverhead is allowed on top of the file size cap for form framing.
const multipartOverhead = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"repair": s.session.GateStatus(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.session.Catalog()
	if r.URL.Query().Get("refresh") == "true" || (cat.Models == nil && cat.Indexes == nil) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Remote.CatalogTimeout)
		defer cancel()

		var err error
		if cat, err = s.session.LoadCatalog(ctx); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, cat)
}

// uploadResponse summarizes a freshly ingested dataset.
type uploadResponse struct {
	SessionID string   `json:"sessionId"`
	FileName  string   `json:"fileName"`
	LogName   string   `json:"logName"`
	Columns   []string `json:"columns"`
	Rows      int      `json:"rows"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			err = fmt.Errorf("%w: %v", dataset.ErrFileTooLarge, err)
			s.respondError(w, r, err)
			return
		}
		s.respondErrorStatus(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	if err := s.session.Ingest(ctx, header.Filename, file); err != nil {
		s.respondError(w, r, err)
		return
	}

	snap := s.session.Snapshot()
	if isHTMX(r) {
		renderNotice(w, r, http.StatusCreated, fmt.Sprintf("Loaded %s: %d rows", snap.FileName, len(snap.Rows)))
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		SessionID: snap.SessionID,
		FileName:  snap.FileName,
		LogName:   snap.LogName,
		Columns:   snap.Columns,
		Rows:      len(snap.Rows),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// configPatch carries the fields to change; nil fields are left alone.
type configPatch struct {
	TargetColumn   *string   `json:"targetColumn"`
	FilterPreset   *string   `json:"filterPreset"`
	FilterPattern  *string   `json:"filterPattern"`
	PivotColumns   *[]string `json:"pivotColumns"`
	ReasonerID     *string   `json:"reasonerId"`
	SearchIndexIDs *[]string `json:"searchIndexIds"`
	Guidance       *string   `json:"guidance"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		s.respondErrorStatus(w, r, fmt.Errorf("decode config: %w", err), http.StatusBadRequest)
		return
	}

	if err := s.applyPatch(patch); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Configuration())
}

// applyPatch applies session-independent preferences first so they stick
// even when no dataset is loaded yet.
func (s *Server) applyPatch(p configPatch) error {
	if p.ReasonerID != nil {
		s.session.SetReasoner(*p.ReasonerID)
	}
	if p.SearchIndexIDs != nil {
		s.session.SetSearchIndexes(*p.SearchIndexIDs)
	}
	if p.Guidance != nil {
		s.session.SetGuidance(*p.Guidance)
	}
	if p.TargetColumn != nil {
		if err := s.session.SetTargetColumn(*p.TargetColumn); err != nil {
			return err
		}
	}
	if p.FilterPreset != nil {
		if err := s.session.ApplyPreset(repair.FilterPreset(*p.FilterPreset)); err != nil {
			return err
		}
	}
	if p.FilterPattern != nil {
		if err := s.session.SetFilter(*p.FilterPattern); err != nil {
			return err
		}
	}
	if p.PivotColumns != nil {
		if err := s.session.SetPivotColumns(*p.PivotColumns); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleToggleRetrieval(w http.ResponseWriter, r *http.Request) {
	kind := repair.RetrievalKind(strings.ToLower(chi.URLParam(r, "kind")))
	toggles, err := s.session.ToggleRetrieval(kind)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"retrieval": toggles,
		"mode":      toggles.Mode(),
	})
}

func (s *Server) handleToggleRerank(w http.ResponseWriter, r *http.Request) {
	mode, err := repair.ParseRerankMode(chi.URLParam(r, "mode"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rerank": s.session.ToggleRerank(mode)})
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Remote.RepairTimeout)
	defer cancel()

	report, err := s.session.Run(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		renderNotice(w, r, http.StatusOK, fmt.Sprintf("%d of %d rows have a proposed repair", report.Proposed, report.Rows))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// rowIndex parses the {index} URL parameter.
func rowIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &repair.InvalidRequestError{Field: "index", Reason: fmt.Sprintf("%q is not a row number", raw)}
	}
	return i, nil
}

func (s *Server) handleToggleMark(w http.ResponseWriter, r *http.Request) {
	i, err := rowIndex(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	marked, err := s.session.ToggleMark(i)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": i, "marked": marked})
}

func (s *Server) handleMarkAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.session.MarkAll()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": n})
}

func (s *Server) handleClearMarks(w http.ResponseWriter, r *http.Request) {
	s.session.ClearMarks()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	i, err := rowIndex(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, ok := s.session.ShowEvidence(i)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"index": i, "evidence": nil})
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.EvidencePanel(ev.Row, ev.SourceTable, ev.SourceRowNumber, ev.ConflictSummary, string(ev.Citation)).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	report, err := s.session.Apply(r.Context())
	if err != nil {
		// The commit stands when only the audit delivery failed.
		if report != nil {
			requestLogger(r).Warn("repairs applied without audit delivery",
				"applied", report.Applied, "pending", report.Pending)
		}
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		renderNotice(w, r, http.StatusOK, fmt.Sprintf("Applied %d repairs", report.Applied))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.session.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetryAudit(w http.ResponseWriter, r *http.Request) {
	n, err := s.session.RetryAudit(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submitted": n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ds, err := s.session.Dataset()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	name := dataset.Name(ds.FileName) + "_repaired"
	var write func() error
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		name += ".csv"
		write = func() error { return dataset.WriteCSV(w, ds.Columns, ds.Rows) }
	case "jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
		name += ".jsonl"
		write = func() error { return dataset.WriteJSONL(w, ds.Columns, ds.Rows) }
	default:
		s.respondError(w, r, &repair.InvalidRequestError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", format)})
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := write(); err != nil {
		// Headers are gone; all that is left is to log.
		requestLogger(r).Error("export failed", "error", err, "format", format)
	}
}

func renderNotice(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Notice(msg).Render(r.Context(), w)
}
