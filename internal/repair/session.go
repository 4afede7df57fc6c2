package repair

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/logging"
)

// DefaultScratchColumn holds proposed values until they are committed.
const DefaultScratchColumn = "repaired_value"

// Backend is the remote repair service and its catalogs.
type Backend interface {
	ListModels(ctx context.Context) ([]string, error)
	ListIndexes(ctx context.Context) ([]string, error)
	Repair(ctx context.Context, req *Request) ([]Result, error)
}

// AuditSink receives committed batches under their log name.
type AuditSink interface {
	Submit(ctx context.Context, batch AuditBatch) error
}

// Options tunes a Session. Zero values fall back to defaults.
type Options struct {
	ScratchColumn string
	Now           func() time.Time
}

// Catalog lists what the operator can pick from.
type Catalog struct {
	Models  []string `json:"models"`
	Indexes []string `json:"indexes"`
}

// RunReport summarizes a merged repair response.
type RunReport struct {
	Rows     int               `json:"rows"`
	Proposed int               `json:"proposed"`
	Warning  *AlignmentWarning `json:"warning,omitempty"`
}

// ApplyReport summarizes a commit.
type ApplyReport struct {
	LogName string `json:"logName,omitempty"`
	Applied int    `json:"applied"`
	Pending int    `json:"pending"`
	Audited bool   `json:"audited"`
}

// prefs are operator choices that survive a new upload.
type prefs struct {
	reasoner  string
	indexes   []string
	retrieval RetrievalToggles
	rerank    RerankMode
	guidance  string
}

// state is everything tied to one uploaded file. A new upload replaces it
// wholesale.
type state struct {
	id         uuid.UUID
	generation uint64
	data       *dataset.Dataset
	scratch    string

	target  string
	pattern string
	pivots  []string
	active  IndexSet
	marked  IndexSet

	// merged is nil until a repair response arrives; it is data.Rows plus
	// the scratch column. repaired is the target column the proposals were
	// requested for.
	merged   []dataset.Row
	perRow   []*Result
	repaired string
	shown    int

	pending *AuditBatch
}

func (st *state) clearResults() {
	st.merged = nil
	st.repaired = ""
	st.perRow = nil
	st.marked = NewIndexSet()
	st.shown = -1
}

// Session owns the single operator session: the uploaded dataset, the filter,
// the in-flight repair call and the accepted proposals.
type Session struct {
	backend Backend
	sink    AuditSink
	opts    Options
	gate    *Gate

	// auditMu serializes deliveries so a batch is never in two Submit
	// calls at once.
	auditMu sync.Mutex

	mu        sync.Mutex
	st        *state
	prefs     prefs
	catalog   Catalog
	nextGen   uint64
	cancelRun context.CancelFunc
}

// NewSession creates an empty session. sink may be nil, in which case
// committed batches are only logged.
func NewSession(backend Backend, sink AuditSink, opts Options) *Session {
	if opts.ScratchColumn == "" {
		opts.ScratchColumn = DefaultScratchColumn
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		backend: backend,
		sink:    sink,
		opts:    opts,
		gate:    NewGate(),
		prefs:   prefs{retrieval: DefaultRetrieval()},
	}
}

// LoadCatalog fetches the reasoner and index catalogs concurrently.
func (s *Session) LoadCatalog(ctx context.Context) (Catalog, error) {
	var cat Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		models, err := s.backend.ListModels(gctx)
		if err != nil {
			return err
		}
		cat.Models = models
		return nil
	})
	g.Go(func() error {
		indexes, err := s.backend.ListIndexes(gctx)
		if err != nil {
			return err
		}
		cat.Indexes = indexes
		return nil
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, fmt.Errorf("load catalog: %w", err)
	}

	s.mu.Lock()
	s.catalog = cat
	s.mu.Unlock()

	logging.FromContext(ctx).Info("catalog loaded", "models", len(cat.Models), "indexes", len(cat.Indexes))
	return cat, nil
}

// Catalog returns the last loaded catalog.
func (s *Session) Catalog() Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Ingest parses r and replaces the whole session state with a fresh one.
// An in-flight repair is cancelled and its response will be dropped.
func (s *Session) Ingest(ctx context.Context, fileName string, r io.Reader) error {
	ds, err := dataset.Ingest(fileName, r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	if old := s.st; old != nil && old.pending != nil {
		logging.WithFields(ctx, "session_id", old.id, "log_name", old.pending.LogName).
			Error("discarding undelivered audit batch", "records", len(old.pending.Records))
	}

	s.nextGen++
	s.st = &state{
		id:         uuid.New(),
		generation: s.nextGen,
		data:       ds,
		scratch:    scratchName(s.opts.ScratchColumn, ds),
		pattern:    MatchAll,
		active:     AllRows(ds.Len()),
		marked:     NewIndexSet(),
		shown:      -1,
	}

	logging.WithFields(ctx, "session_id", s.st.id, "generation", s.st.generation, "file", ds.FileName).
		Info("dataset ingested", "rows", ds.Len(), "columns", len(ds.Columns))
	return nil
}

// scratchName picks a scratch column name that does not collide with the
// dataset's own columns.
func scratchName(base string, ds *dataset.Dataset) string {
	name := base
	for n := 1; ds.HasColumn(name); n++ {
		name = base + "_" + strconv.Itoa(n)
	}
	return name
}

// current returns the live state or ErrNoSession. Callers hold s.mu.
func (s *Session) current() (*state, error) {
	if s.st == nil {
		return nil, ErrNoSession
	}
	return s.st, nil
}

// refilter recomputes the active set. Unset target column leaves it alone.
func (st *state) refilter(pattern string) error {
	if st.target == "" {
		return ValidatePattern(pattern)
	}
	active, err := FilterRows(st.data.Rows, st.target, pattern)
	if err != nil {
		return err
	}
	st.active = active
	st.marked = NewIndexSet()
	return nil
}

// SetTargetColumn selects the column to repair and re-applies the filter.
func (s *Session) SetTargetColumn(column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return err
	}
	if column != "" && !st.data.HasColumn(column) {
		return &InvalidRequestError{Field: "targetColumn", Reason: fmt.Sprintf("unknown column %q", column)}
	}

	prev := st.target
	st.target = column
	if err := st.refilter(st.pattern); err != nil {
		st.target = prev
		return err
	}
	// Proposals belong to the column they were requested for.
	if column != prev {
		st.clearResults()
	}
	return nil
}

// SetFilter changes the filter pattern. On a FilterError neither the pattern
// nor the active set changes.
func (s *Session) SetFilter(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return err
	}
	if err := st.refilter(pattern); err != nil {
		return err
	}
	st.pattern = pattern
	return nil
}

// ApplyPreset sets the filter from a named preset.
func (s *Session) ApplyPreset(p FilterPreset) error {
	pattern, ok := p.Pattern()
	if !ok {
		return &InvalidRequestError{Field: "filterPreset", Reason: fmt.Sprintf("unknown preset %q", p)}
	}
	return s.SetFilter(pattern)
}

// SetPivotColumns sets the context columns, dropping duplicates.
func (s *Session) SetPivotColumns(columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(columns))
	pivots := make([]string, 0, len(columns))
	for _, c := range columns {
		if !st.data.HasColumn(c) {
			return &InvalidRequestError{Field: "pivotColumns", Reason: fmt.Sprintf("unknown column %q", c)}
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		pivots = append(pivots, c)
	}
	st.pivots = pivots
	return nil
}

// SetReasoner selects the reasoner model.
func (s *Session) SetReasoner(id string) {
	s.mu.Lock()
	s.prefs.reasoner = id
	s.mu.Unlock()
}

// SetSearchIndexes selects the search indexes, keeping first-seen order.
func (s *Session) SetSearchIndexes(ids []string) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	s.mu.Lock()
	s.prefs.indexes = out
	s.mu.Unlock()
}

// ToggleRetrieval flips one retrieval kind. At least one stays enabled.
func (s *Session) ToggleRetrieval(kind RetrievalKind) (RetrievalToggles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.prefs.retrieval.Toggle(kind)
	if err != nil {
		return s.prefs.retrieval, err
	}
	s.prefs.retrieval = t
	return t, nil
}

// ToggleRerank selects m, or turns reranking off if m is already selected.
func (s *Session) ToggleRerank(m RerankMode) RerankMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.rerank = s.prefs.rerank.Toggle(m)
	return s.prefs.rerank
}

// SetGuidance sets the free-text entity description.
func (s *Session) SetGuidance(text string) {
	s.mu.Lock()
	s.prefs.guidance = text
	s.mu.Unlock()
}

// Configuration returns the current repair setup.
func (s *Session) Configuration() Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configLocked()
}

func (s *Session) configLocked() Configuration {
	cfg := Configuration{
		ReasonerID:     s.prefs.reasoner,
		SearchIndexIDs: append([]string{}, s.prefs.indexes...),
		Retrieval:      s.prefs.retrieval,
		Rerank:         s.prefs.rerank,
		Guidance:       s.prefs.guidance,
		FilterPattern:  MatchAll,
		PivotColumns:   []string{},
	}
	if st := s.st; st != nil {
		cfg.TargetColumn = st.target
		cfg.FilterPattern = st.pattern
		cfg.PivotColumns = append([]string{}, st.pivots...)
	}
	return cfg
}

// Run sends the active rows to the repair service and merges the response.
//
// Only one call may be outstanding; a second Run returns ErrRepairInFlight.
// A response that arrives after a new upload is dropped with
// ErrStaleResponse.
func (s *Session) Run(ctx context.Context) (*RunReport, error) {
	if !s.gate.TryAcquire() {
		return nil, ErrRepairInFlight
	}
	defer s.gate.Release()

	s.mu.Lock()
	st, err := s.current()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req, err := BuildRequest(st.data, st.active, s.configLocked())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gen := st.generation
	active := st.active.Clone()
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.mu.Unlock()
	defer cancel()

	log := logging.WithFields(ctx, "session_id", st.id, "generation", gen)
	log.Info("repair requested", "rows", active.Len(), "target", req.TargetName, "reasoner", req.ReasonerName)

	started := time.Now()
	results, err := s.backend.Repair(runCtx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st == nil || s.st.generation != gen {
		log.Warn("dropping repair response for replaced session", "error", err)
		return nil, ErrStaleResponse
	}
	if s.st.target != req.TargetName {
		s.cancelRun = nil
		log.Warn("dropping repair response for a previous target column", "target", req.TargetName, "current", s.st.target)
		return nil, ErrStaleResponse
	}
	s.cancelRun = nil

	if err != nil {
		log.Error("repair failed", "error", err, "duration", time.Since(started))
		return nil, err
	}
	if len(results) == 0 {
		log.Warn("repair returned no results")
		return nil, ErrNoRepairs
	}

	cur := s.st
	out := MergeResults(cur.data.Rows, active, results, cur.scratch)
	cur.merged = out.Rows
	cur.perRow = out.PerRow
	cur.repaired = req.TargetName
	cur.marked = NewIndexSet()
	cur.shown = -1

	if out.Warning != nil {
		log.Warn("repair result count mismatch",
			"expected", out.Warning.Expected,
			"received", out.Warning.Received,
			"detail", out.Warning.String())
	}
	log.Info("repair merged", "proposed", out.Proposed, "duration", time.Since(started))

	return &RunReport{Rows: active.Len(), Proposed: out.Proposed, Warning: out.Warning}, nil
}

// Loading reports whether a repair call is outstanding.
func (s *Session) Loading() bool {
	return s.gate.Busy()
}

// GateStatus reports the in-flight gate for monitoring.
func (s *Session) GateStatus() GateStatus {
	return s.gate.Status()
}

// WaitForDrain blocks until no repair call is outstanding or ctx is done.
func (s *Session) WaitForDrain(ctx context.Context) error {
	return s.gate.WaitForDrain(ctx)
}

// ToggleMark flips whether row i's proposal is accepted and reports the new
// membership.
func (s *Session) ToggleMark(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return false, err
	}
	if st.merged == nil {
		return false, &InvalidRequestError{Field: "marks", Reason: "no repair results to accept"}
	}
	if i < 0 || i >= st.data.Len() {
		return false, &InvalidRequestError{Field: "marks", Reason: fmt.Sprintf("row %d out of range", i)}
	}
	return st.marked.Toggle(i), nil
}

// MarkAll accepts every row that has a non-null proposal and returns how many
// rows are marked.
func (s *Session) MarkAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return 0, err
	}
	if st.merged == nil {
		return 0, &InvalidRequestError{Field: "marks", Reason: "no repair results to accept"}
	}
	for i, res := range st.perRow {
		if res != nil && !res.Value.IsNull() {
			st.marked[i] = struct{}{}
		}
	}
	return st.marked.Len(), nil
}

// ClearMarks empties the marked set.
func (s *Session) ClearMarks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != nil {
		s.st.marked.Clear()
	}
}

// Evidence returns the supporting payload for row i without changing state.
func (s *Session) Evidence(i int) (Evidence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return Evidence{}, false
	}
	return EvidenceAt(s.st.perRow, i)
}

// ShowEvidence makes row i the displayed evidence row. Rows without a result
// clear the display.
func (s *Session) ShowEvidence(i int) (Evidence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return Evidence{}, false
	}
	ev, ok := EvidenceAt(s.st.perRow, i)
	if ok {
		s.st.shown = i
	} else {
		s.st.shown = -1
	}
	return ev, ok
}

// Apply commits the marked proposals and hands the audit batch to the sink.
//
// With nothing marked it does nothing. If the sink fails the local commit
// still stands and the batch stays pending for RetryAudit.
func (s *Session) Apply(ctx context.Context) (*ApplyReport, error) {
	s.mu.Lock()
	st, err := s.current()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.marked.Len() == 0 || st.merged == nil {
		s.mu.Unlock()
		return &ApplyReport{}, nil
	}
	if st.repaired == "" || st.repaired != st.target {
		s.mu.Unlock()
		return nil, &InvalidRequestError{Field: "targetColumn", Reason: "proposals do not belong to the selected target column"}
	}

	logName := dataset.LogName(st.data.FileName)
	rows, records := CommitRepairs(st.merged, st.marked, st.repaired, st.scratch, dataset.Name(st.data.FileName), s.opts.Now)

	st.data.Rows = StripColumn(rows, st.scratch)
	st.clearResults()

	if st.pending == nil {
		st.pending = &AuditBatch{ID: uuid.New(), LogName: logName}
	}
	st.pending.Records = append(st.pending.Records, records...)
	s.mu.Unlock()

	log := logging.WithFields(ctx, "session_id", st.id, "log_name", logName)
	log.Info("repairs applied", "records", len(records))

	report := &ApplyReport{LogName: logName, Applied: len(records)}
	_, pending, err := s.deliver(ctx, st)
	if err != nil {
		report.Pending = pending
		log.Error("audit delivery failed; batch kept for retry", "error", err, "pending", pending)
		return report, err
	}
	report.Audited = true
	return report, nil
}

// RetryAudit resubmits the pending audit batch.
func (s *Session) RetryAudit(ctx context.Context) (int, error) {
	s.mu.Lock()
	st, err := s.current()
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if st.pending == nil {
		s.mu.Unlock()
		return 0, ErrNoPendingAudit
	}
	s.mu.Unlock()

	n, _, err := s.deliver(ctx, st)
	if err != nil {
		logging.WithFields(ctx, "session_id", st.id).Error("audit retry failed", "error", err)
		return 0, err
	}
	return n, nil
}

// deliver submits st's pending batch and clears it on success. Records
// appended while the call was outstanding stay pending under a new batch id.
// It returns how many records were delivered and how many remain pending.
// Sink failures are reported as *RemoteError.
func (s *Session) deliver(ctx context.Context, st *state) (int, int, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	s.mu.Lock()
	if st.pending == nil {
		s.mu.Unlock()
		return 0, 0, nil
	}
	batch := *st.pending
	batch.Records = append([]AuditRecord(nil), st.pending.Records...)
	s.mu.Unlock()

	log := logging.WithFields(ctx, "session_id", st.id, "log_name", batch.LogName, "batch_id", batch.ID)
	if s.sink != nil {
		if err := s.sink.Submit(ctx, batch); err != nil {
			var re *RemoteError
			if !errors.As(err, &re) {
				err = &RemoteError{Op: OpUpsertRows, Err: err}
			}
			return 0, len(batch.Records), err
		}
	} else {
		log.Debug("no audit sink configured", "records", len(batch.Records))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := 0
	if p := st.pending; p != nil && p.ID == batch.ID {
		if len(p.Records) > len(batch.Records) {
			st.pending = &AuditBatch{
				ID:      uuid.New(),
				LogName: p.LogName,
				Records: append([]AuditRecord(nil), p.Records[len(batch.Records):]...),
			}
			remaining = len(st.pending.Records)
		} else {
			st.pending = nil
		}
	}
	return len(batch.Records), remaining, nil
}

// Cancel discards the current results, marks and evidence. The dataset
// content is left as it was. Calling it again is harmless.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != nil {
		s.st.clearResults()
	}
}

// Snapshot is a read-only view of the session for display.
type Snapshot struct {
	SessionID     string        `json:"sessionId,omitempty"`
	FileName      string        `json:"fileName,omitempty"`
	LogName       string        `json:"logName,omitempty"`
	Columns       []string      `json:"columns"`
	ScratchColumn string        `json:"scratchColumn,omitempty"`
	Rows          []dataset.Row `json:"rows"`
	Active        IndexSet      `json:"active"`
	Marked        IndexSet      `json:"marked"`
	HasResults    bool          `json:"hasResults"`
	ShownEvidence *Evidence     `json:"shownEvidence,omitempty"`
	PendingAudit  int           `json:"pendingAudit"`
	Loading       bool          `json:"loading"`
	Config        Configuration `json:"config"`
	Catalog       Catalog       `json:"catalog"`
	Mode          RetrievalMode `json:"retrievalMode"`
}

// Snapshot returns the current view. Rows are shared with the session; they
// are never mutated in place.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Columns: []string{},
		Rows:    []dataset.Row{},
		Active:  NewIndexSet(),
		Marked:  NewIndexSet(),
		Loading: s.gate.Busy(),
		Config:  s.configLocked(),
		Catalog: s.catalog,
		Mode:    s.prefs.retrieval.Mode(),
	}

	st := s.st
	if st == nil {
		return snap
	}
	snap.SessionID = st.id.String()
	snap.FileName = st.data.FileName
	snap.LogName = dataset.LogName(st.data.FileName)
	snap.Columns = append(snap.Columns, st.data.Columns...)
	snap.Rows = append(snap.Rows, st.data.Rows...)
	snap.Active = st.active.Clone()
	snap.Marked = st.marked.Clone()
	if st.merged != nil {
		snap.HasResults = true
		snap.ScratchColumn = st.scratch
		snap.Columns = append(snap.Columns, st.scratch)
		snap.Rows = append(snap.Rows[:0], st.merged...)
	}
	if ev, ok := EvidenceAt(st.perRow, st.shown); ok {
		snap.ShownEvidence = &ev
	}
	if st.pending != nil {
		snap.PendingAudit = len(st.pending.Records)
	}
	return snap
}

// Dataset returns the committed content without the scratch column.
func (s *Session) Dataset() (*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return nil, err
	}
	return &dataset.Dataset{
		FileName: st.data.FileName,
		Columns:  append([]string{}, st.data.Columns...),
		Rows:     append([]dataset.Row{}, st.data.Rows...),
	}, nil
}
