// Package remote implements records.Store against the hosted backend API
// served by `mednote serve`.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mednote/mednote/internal/domain/records"
)

// Client is a thin Record Store client. The access credential identifies
// the principal; ownership is enforced by the server.
type Client struct {
	base   *url.URL
	token  string
	tenant string
	http   *http.Client
}

type Option func(*Client)

// WithTenant sends X-Tenant-ID so the server resolves the practice schema.
func WithTenant(tenant string) Option {
	return func(c *Client) { c.tenant = tenant }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New fails when the endpoint or credential is missing; callers treat that
// as fatal at startup.
func New(endpoint, token string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("backend endpoint is required")
	}
	if token == "" {
		return nil, errors.New("backend access credential is required")
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend endpoint %q", endpoint)
	}
	c := &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiError struct {
	Message string `json:"message"`
}

// statusError maps a response status onto the records error taxonomy.
func statusError(code int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)
	msg := ae.Message
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", records.ErrNotFound, msg)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", records.ErrUnauthenticated, msg)
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", records.ErrInvalid, msg)
	}
	return fmt.Errorf("%w: status %d: %s", records.ErrUnavailable, code, msg)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := *c.base
	u.Path += "/api/v1" + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenant != "" {
		req.Header.Set("X-Tenant-ID", c.tenant)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", records.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", records.ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", records.ErrUnavailable, err)
	}
	return nil
}

func idPath(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}

// -- Patients --

func (c *Client) ListPatients(ctx context.Context) ([]records.PatientRow, error) {
	rows := []records.PatientRow{}
	err := c.do(ctx, http.MethodGet, "/patients", nil, nil, &rows)
	return rows, err
}

func (c *Client) GetPatient(ctx context.Context, id string) (records.PatientRow, error) {
	var row records.PatientRow
	err := c.do(ctx, http.MethodGet, idPath("/patients", id), nil, nil, &row)
	return row, err
}

func (c *Client) InsertPatient(ctx context.Context, in records.PatientRow) (records.PatientRow, error) {
	var row records.PatientRow
	err := c.do(ctx, http.MethodPost, "/patients", nil, in, &row)
	return row, err
}

func (c *Client) UpdatePatient(ctx context.Context, id string, patch records.PatientPatch) (records.PatientRow, error) {
	var row records.PatientRow
	err := c.do(ctx, http.MethodPatch, idPath("/patients", id), nil, patch, &row)
	return row, err
}

func (c *Client) DeletePatient(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, idPath("/patients", id), nil, nil, nil)
}

// -- Notes --

func (c *Client) ListNotes(ctx context.Context, filter records.NoteFilter) ([]records.NoteRow, error) {
	var q url.Values
	if filter.PatientID != "" {
		q = url.Values{"patient_id": {filter.PatientID}}
	}
	rows := []records.NoteRow{}
	err := c.do(ctx, http.MethodGet, "/notes", q, nil, &rows)
	return rows, err
}

func (c *Client) GetNote(ctx context.Context, id string) (records.NoteRow, error) {
	var row records.NoteRow
	err := c.do(ctx, http.MethodGet, idPath("/notes", id), nil, nil, &row)
	return row, err
}

func (c *Client) InsertNote(ctx context.Context, in records.NoteRow) (records.NoteRow, error) {
	var row records.NoteRow
	err := c.do(ctx, http.MethodPost, "/notes", nil, in, &row)
	return row, err
}

func (c *Client) UpdateNote(ctx context.Context, id string, patch records.NotePatch) (records.NoteRow, error) {
	var row records.NoteRow
	err := c.do(ctx, http.MethodPatch, idPath("/notes", id), nil, patch, &row)
	return row, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, idPath("/notes", id), nil, nil, nil)
}

var _ records.Store = (*Client)(nil)
