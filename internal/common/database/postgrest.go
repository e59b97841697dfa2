// internal/common/database/postgrest.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"library-assistant/internal/common/config"
	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/models"
)

// PostgRESTClient talks to a Supabase-hosted database through its REST
// surface. One filtered GET per Select; no connection state beyond the
// shared http.Client.
type PostgRESTClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPostgREST creates a client for the given Supabase project.
func NewPostgREST(cfg config.SupabaseConfig) *PostgRESTClient {
	return &PostgRESTClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.Key,
		client: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
	}
}

// Select fetches rows matching spec from table. Conditions are OR-combined;
// an All spec fetches up to limit rows.
func (c *PostgRESTClient) Select(ctx context.Context, table string, spec models.FilterSpec, limit int) ([]models.Record, error) {
	params := url.Values{}
	params.Set("select", "*")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	switch {
	case spec.All || len(spec.Conditions) == 0:
		// bounded select-all, nothing to add
	case len(spec.Conditions) == 1:
		cond := spec.Conditions[0]
		params.Set(cond.Column, encodeOperand(cond))
	default:
		parts := make([]string, len(spec.Conditions))
		for i, cond := range spec.Conditions {
			parts[i] = cond.Column + "." + encodeOperand(cond)
		}
		params.Set("or", "("+strings.Join(parts, ",")+")")
	}

	return c.get(ctx, table, params)
}

// Probe checks whether table exists, fetching at most one row.
func (c *PostgRESTClient) Probe(ctx context.Context, table string) error {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("limit", "1")
	_, err := c.get(ctx, table, params)
	return err
}

func (c *PostgRESTClient) Close() error { return nil }

func (c *PostgRESTClient) get(ctx context.Context, table string, params url.Values) ([]models.Record, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(table), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(table, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewQueryTimeoutError(table)
		}
		return nil, apperrors.NewQueryExecutionFailedError(table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(table, err)
	}

	if resp.StatusCode != http.StatusOK {
		if isMissingTable(resp.StatusCode, body) {
			return nil, apperrors.NewTableNotFoundError(table)
		}
		return nil, apperrors.NewQueryExecutionFailedError(table,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var records []models.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(table, fmt.Errorf("decode: %w", err))
	}
	return records, nil
}

// encodeOperand renders a condition into PostgREST operator syntax, e.g.
// "eq.12345", "ilike.*potter*", "is.null".
func encodeOperand(cond models.Condition) string {
	switch cond.Op {
	case models.OpILike:
		return "ilike.*" + cond.Value + "*"
	case models.OpIsNull:
		return "is.null"
	case models.OpGt:
		return "gt." + cond.Value
	default:
		return "eq." + cond.Value
	}
}

// isMissingTable recognizes PostgREST's missing-relation responses.
// PGRST205 is "could not find the table in the schema cache".
func isMissingTable(status int, body []byte) bool {
	if status == http.StatusNotFound {
		return true
	}
	var apiErr struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		return apiErr.Code == "PGRST205" || apiErr.Code == "42P01"
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// WithTimeout clamps the HTTP client timeout, mainly for tests.
func (c *PostgRESTClient) WithTimeout(d time.Duration) *PostgRESTClient {
	c.client.Timeout = d
	return c
}
