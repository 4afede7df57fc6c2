package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/repairdesk/internal/audit"
	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/repair"
)

// Accept policies for proposals.
const (
	AcceptNone = "none"
	AcceptAll  = "all"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	File       string
	Column     string
	Pattern    string
	Preset     string
	Pivots     []string
	Reasoner   string
	Indexes    []string
	Syntactic  bool
	NoSemantic bool
	Rerank     string
	Guidance   string
	Accept     string
	Out        string
	NoAudit    bool
}

// Proposal is one filtered row and what the service suggested for it.
type Proposal struct {
	Row      int           `json:"row"`
	Current  dataset.Value `json:"current"`
	Proposed dataset.Value `json:"proposed"`
}

// RunResult summarizes one run.
type RunResult struct {
	File      string               `json:"file"`
	LogName   string               `json:"logName"`
	Column    string               `json:"column"`
	Report    *repair.RunReport    `json:"report"`
	Proposals []Proposal           `json:"proposals"`
	Applied   *repair.ApplyReport  `json:"applied,omitempty"`
	Config    repair.Configuration `json:"config"`
	Output    string               `json:"output,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Repair one column of a file",
		Long: `Ingest a file, filter the target column, and ask the repair service for
corrected values.

With --accept none (the default) the proposals are only printed. With
--accept all every proposal is committed, the audit batch is recorded in the
configured sinks, and --out receives the repaired table.`,
		Example: `  repairctl run --file orders_dirty.csv --column city --reasoner gpt-4o --index cities
  repairctl run --file orders.jsonl --column city --pattern '^Bost' --pivot country \
      --reasoner gpt-4o --index cities --syntactic --rerank colbert --accept all --out orders.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.File, "file", "", "CSV, JSONL or XLSX file to repair (required)")
	f.StringVar(&opts.Column, "column", "", "column to repair (required)")
	f.StringVar(&opts.Pattern, "pattern", "", "regular expression selecting rows; overrides --preset")
	f.StringVar(&opts.Preset, "preset", string(repair.PresetNull), "filter preset (any|null)")
	f.StringSliceVar(&opts.Pivots, "pivot", nil, "context column (repeatable)")
	f.StringVar(&opts.Reasoner, "reasoner", "", "reasoner model (required)")
	f.StringSliceVar(&opts.Indexes, "index", nil, "search index (repeatable, at least one)")
	f.BoolVar(&opts.Syntactic, "syntactic", false, "enable syntactic retrieval")
	f.BoolVar(&opts.NoSemantic, "no-semantic", false, "disable semantic retrieval (needs --syntactic)")
	f.StringVar(&opts.Rerank, "rerank", "none", "reranker (none|colbert|cross-encoder)")
	f.StringVar(&opts.Guidance, "guidance", "", "free-text description of the entity")
	f.StringVar(&opts.Accept, "accept", AcceptNone, "which proposals to commit (all|none)")
	f.StringVarP(&opts.Out, "out", "o", "", "write the repaired table here (.csv or .jsonl)")
	f.BoolVar(&opts.NoAudit, "no-audit", false, "commit without recording the audit batch")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("column")
	_ = cmd.MarkFlagRequired("reasoner")

	return cmd
}

func (o *RunOptions) validate() error {
	if o.Accept != AcceptAll && o.Accept != AcceptNone {
		return fmt.Errorf("invalid --accept %q: must be all or none", o.Accept)
	}
	if o.NoSemantic && !o.Syntactic {
		return fmt.Errorf("--no-semantic needs --syntactic: at least one retrieval mode stays on")
	}
	if o.Out != "" {
		if _, err := outputWriter(o.Out); err != nil {
			return err
		}
	}
	return nil
}

// configure applies the flags to a freshly ingested session.
func (o *RunOptions) configure(s *repair.Session) error {
	s.SetReasoner(o.Reasoner)
	s.SetSearchIndexes(o.Indexes)
	s.SetGuidance(o.Guidance)

	if o.Syntactic {
		if _, err := s.ToggleRetrieval(repair.RetrievalSyntactic); err != nil {
			return err
		}
	}
	if o.NoSemantic {
		if _, err := s.ToggleRetrieval(repair.RetrievalSemantic); err != nil {
			return err
		}
	}
	mode, err := repair.ParseRerankMode(o.Rerank)
	if err != nil {
		return err
	}
	if mode != repair.RerankNone {
		s.ToggleRerank(mode)
	}

	if err := s.SetTargetColumn(o.Column); err != nil {
		return err
	}
	if o.Pattern != "" {
		err = s.SetFilter(o.Pattern)
	} else {
		err = s.ApplyPreset(repair.FilterPreset(o.Preset))
	}
	if err != nil {
		return err
	}
	return s.SetPivotColumns(o.Pivots)
}

func runRepair(cmd *cobra.Command, opts *RunOptions) error {
	p := &Printer{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := opts.validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	ctx := cmd.Context()
	cfg := opts.cfg
	client := opts.client()

	var sink repair.AuditSink
	if opts.Accept == AcceptAll && !opts.NoAudit {
		sinks, err := audit.Open(ctx, cfg.Audit, client)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open audit sinks", err)
		}
		defer sinks.Close()
		sink = sinks
	}

	dataset.MaxFileSize = cfg.Upload.MaxFileSize
	session := repair.NewSession(client, sink, repair.Options{ScratchColumn: cfg.Session.ScratchColumn})

	file, err := os.Open(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open input", err)
	}
	err = session.Ingest(ctx, filepath.Base(opts.File), file)
	file.Close()
	if err != nil {
		p.Error(err)
		return WrapExitError(ExitCommandError, "failed to ingest "+opts.File, err)
	}

	if err := opts.configure(session); err != nil {
		p.Error(err)
		return WrapExitError(ExitCommandError, "invalid repair configuration", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Remote.RepairTimeout)
	report, err := session.Run(runCtx)
	cancel()
	if err != nil {
		p.Error(err)
		return WrapExitError(ExitFailure, "repair failed", err)
	}

	result := &RunResult{
		File:      opts.File,
		LogName:   dataset.LogName(opts.File),
		Column:    opts.Column,
		Report:    report,
		Proposals: proposals(session.Snapshot(), opts.Column),
		Config:    session.Configuration(),
	}

	var auditErr error
	if opts.Accept == AcceptAll {
		if _, err := session.MarkAll(); err != nil {
			return WrapExitError(ExitFailure, "failed to mark proposals", err)
		}
		applied, err := session.Apply(ctx)
		if applied == nil && err != nil {
			p.Error(err)
			return WrapExitError(ExitFailure, "apply failed", err)
		}
		result.Applied = applied
		auditErr = err
		if auditErr != nil {
			slog.Warn("repairs committed but the audit batch was not recorded",
				"log_name", applied.LogName, "pending", applied.Pending, "error", auditErr)
		}
	}

	if opts.Out != "" {
		if err := writeDataset(session, opts.Out); err != nil {
			return WrapExitError(ExitFailure, "failed to write output", err)
		}
		result.Output = opts.Out
	}

	if err := p.Success(result, formatRun(result)); err != nil {
		return err
	}
	if auditErr != nil {
		return WrapExitError(ExitFailure, "audit delivery failed", auditErr)
	}
	return nil
}

// proposals lists the active rows next to their proposed values.
func proposals(snap repair.Snapshot, column string) []Proposal {
	out := make([]Proposal, 0, snap.Active.Len())
	for _, i := range snap.Active.Sorted() {
		if i >= len(snap.Rows) {
			continue
		}
		row := snap.Rows[i]
		out = append(out, Proposal{Row: i, Current: row[column], Proposed: row[snap.ScratchColumn]})
	}
	return out
}

func formatRun(r *RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d rows have a proposed repair\n", r.File, r.Report.Proposed, r.Report.Rows)
	if w := r.Report.Warning; w != nil {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ROW\t%s\tPROPOSED\n", strings.ToUpper(r.Column))
	for _, p := range r.Proposals {
		proposed := p.Proposed.String()
		if p.Proposed.IsNull() {
			proposed = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.Row, p.Current, proposed)
	}
	tw.Flush()

	if a := r.Applied; a != nil {
		fmt.Fprintf(&b, "applied %d repairs", a.Applied)
		if a.Audited {
			fmt.Fprintf(&b, ", recorded in %s", a.LogName)
		} else if a.Pending > 0 {
			fmt.Fprintf(&b, ", %d audit records not delivered", a.Pending)
		}
		b.WriteByte('\n')
	}
	if r.Output != "" {
		fmt.Fprintf(&b, "wrote %s\n", r.Output)
	}
	return strings.TrimRight(b.String(), "\n")
}

type writeFunc func(f *os.File, columns []string, rows []dataset.Row) error

func outputWriter(path string) (writeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return func(f *os.File, c []string, r []dataset.Row) error { return dataset.WriteCSV(f, c, r) }, nil
	case ".jsonl":
		return func(f *os.File, c []string, r []dataset.Row) error { return dataset.WriteJSONL(f, c, r) }, nil
	}
	return nil, fmt.Errorf("unsupported output %q: use .csv or .jsonl", path)
}

func writeDataset(s *repair.Session, path string) error {
	write, err := outputWriter(path)
	if err != nil {
		return err
	}
	ds, err := s.Dataset()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, ds.Columns, ds.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
