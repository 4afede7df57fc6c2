package repair

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

// BuildRequest projects the active rows and the configuration into a repair
// request. Rows are emitted in ascending index order, which is the order the
// results are expected back in.
func BuildRequest(ds *dataset.Dataset, active IndexSet, cfg Configuration) (*Request, error) {
	if len(cfg.SearchIndexIDs) == 0 {
		return nil, &InvalidRequestError{Field: "searchIndexIds", Reason: "select at least one search index"}
	}
	if cfg.TargetColumn == "" {
		return nil, &InvalidRequestError{Field: "targetColumn", Reason: "select a target column"}
	}
	if cfg.ReasonerID == "" {
		return nil, &InvalidRequestError{Field: "reasonerId", Reason: "select a reasoner"}
	}
	if ds == nil {
		return nil, ErrNoSession
	}
	if !ds.HasColumn(cfg.TargetColumn) {
		return nil, &InvalidRequestError{Field: "targetColumn", Reason: fmt.Sprintf("unknown column %q", cfg.TargetColumn)}
	}
	for _, p := range cfg.PivotColumns {
		if !ds.HasColumn(p) {
			return nil, &InvalidRequestError{Field: "pivotColumns", Reason: fmt.Sprintf("unknown column %q", p)}
		}
	}
	if active.Len() == 0 {
		return nil, &InvalidRequestError{Field: "activeRows", Reason: "the filter selects no rows"}
	}

	indices := active.Sorted()
	req := &Request{
		TargetName:   cfg.TargetColumn,
		TargetData:   make([]dataset.Value, 0, len(indices)),
		PivotNames:   append([]string{}, cfg.PivotColumns...),
		PivotData:    make([][]dataset.Value, 0, len(indices)),
		ReasonerName: cfg.ReasonerID,
		IndexNames:   append([]string{}, cfg.SearchIndexIDs...),
	}

	for _, i := range indices {
		if i < 0 || i >= len(ds.Rows) {
			return nil, &InvalidRequestError{Field: "activeRows", Reason: fmt.Sprintf("row %d out of range", i)}
		}
		row := ds.Rows[i]
		req.TargetData = append(req.TargetData, row[cfg.TargetColumn])

		tuple := make([]dataset.Value, len(cfg.PivotColumns))
		for j, p := range cfg.PivotColumns {
			tuple[j] = row[p]
		}
		req.PivotData = append(req.PivotData, tuple)
	}

	if mode := cfg.Retrieval.Mode(); mode != ModeNone {
		s := string(mode)
		req.IndexType = &s
	}
	if cfg.Rerank != RerankNone {
		s := string(cfg.Rerank)
		req.RerankerType = &s
	}
	if strings.TrimSpace(cfg.Guidance) != "" {
		g := cfg.Guidance
		req.EntityDescription = &g
	}

	return req, nil
}
