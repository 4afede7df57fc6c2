// Package remote is the HTTP client for the repair backend: the model and
// index catalogs, the repair endpoint and the history-log upsert endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/repairdesk/internal/repair"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 512

// Client talks to the repair backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type modelsResponse struct {
	Models []string `json:"models"`
}

type indexesResponse struct {
	Indexes []string `json:"indexes"`
}

type repairResponse struct {
	Results []repair.Result `json:"results"`
}

type upsertRequest struct {
	IndexName string               `json:"index_name"`
	Rows      []repair.AuditRecord `json:"rows"`
}

// UpsertResponse is the backend's acknowledgement of a history upsert.
type UpsertResponse struct {
	Status   string `json:"status"`
	Upserted int    `json:"upserted"`
}

// ListModels returns the reasoner identifiers in backend order.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var out modelsResponse
	if err := c.do(ctx, repair.OpListModels, http.MethodGet, "/model/", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// ListIndexes returns the search index identifiers in backend order.
func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	var out indexesResponse
	if err := c.do(ctx, repair.OpListIndexes, http.MethodGet, "/index/", nil, &out); err != nil {
		return nil, err
	}
	return out.Indexes, nil
}

// Repair submits req and returns one result per active row. A response
// without results is ErrNoRepairs.
func (c *Client) Repair(ctx context.Context, req *repair.Request) ([]repair.Result, error) {
	var out repairResponse
	if err := c.do(ctx, repair.OpRepair, http.MethodPost, "/repair/", req, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, repair.ErrNoRepairs
	}
	return out.Results, nil
}

// UpsertRows appends records to the history log named logName.
func (c *Client) UpsertRows(ctx context.Context, logName string, records []repair.AuditRecord) (*UpsertResponse, error) {
	body := upsertRequest{IndexName: logName, Rows: records}
	var out UpsertResponse
	if err := c.do(ctx, repair.OpUpsertRows, http.MethodPost, "/index/upsert_rows", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one JSON call. Every failure comes back as *repair.RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &repair.RemoteError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &repair.RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &repair.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &repair.RemoteError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(excerpt)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &repair.RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
