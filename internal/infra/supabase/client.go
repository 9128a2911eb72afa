// Package supabase provides the record store and file storage backed by
// Supabase (PostgREST + Storage). Every call goes through the circuit
// breaker and the retry policy.
package supabase

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

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase REST and Storage APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	bucket         string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey, bucket string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		bucket:         bucket,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST answer. Code and Message come from
// the JSON error body when there is one.
type statusError struct {
	Method  string
	Path    string
	Status  int
	Body    string
	Code    string
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// apiError is the error body shared by PostgREST and Storage.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func newStatusError(method, path string, status int, body []byte) *statusError {
	serr := &statusError{Method: method, Path: path, Status: status, Body: string(body)}
	var ae apiError
	if json.Unmarshal(body, &ae) == nil {
		serr.Code = ae.Code
		serr.Message = ae.Message
		if ae.Details != "" {
			serr.Message += ": " + ae.Details
		}
	}
	return serr
}

// domainError maps the Postgres SQLSTATE or PostgREST code of the answer
// to a domain error, falling back to the HTTP status. nil means no mapping.
func (e *statusError) domainError(table string) error {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}

	switch e.Code {
	case "PGRST116": // no rows for a single-object request
		return &domain.ErrNotFound{Resource: table, ID: e.filterID()}
	case "23505": // unique_violation
		return &domain.ErrConflict{Message: fmt.Sprintf("%s: %s", table, msg)}
	case "23503", "23514", "22P02", "22007", "22008": // foreign key, check, invalid text, datetime
		return &domain.ErrValidation{Field: table, Message: msg}
	}

	switch e.Status {
	case http.StatusBadRequest:
		return &domain.ErrValidation{Field: table, Message: msg}
	case http.StatusNotFound:
		return &domain.ErrNotFound{Resource: table, ID: e.filterID()}
	case http.StatusConflict:
		return &domain.ErrConflict{Message: fmt.Sprintf("%s: %s", table, msg)}
	}
	return nil
}

// filterID returns the id=eq. filter value of the request, if any.
func (e *statusError) filterID() string {
	u, err := url.Parse(e.Path)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Query().Get("id"), "eq.")
}

// do executes an authenticated PostgREST request. 4xx answers are not
// retried; 5xx and transport errors are.
func (c *Client) do(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		raw = b
	}

	var out []byte
	err := resilience.Guard(ctx, c.cb, c.cfg, func() error {
		body, err := c.send(ctx, method, c.baseURL+"/rest/v1/"+path, raw, "application/json", prefer)
		if err != nil {
			return err
		}
		out = body
		return nil
	})
	return out, err
}

func (c *Client) send(ctx context.Context, method, fullURL string, raw []byte, contentType, prefer string) ([]byte, error) {
	var reader io.Reader
	if raw != nil {
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey)
	req.Header.Set("Content-Type", contentType)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		serr := newStatusError(method, fullURL, resp.StatusCode, body)
		if resp.StatusCode < 500 {
			return nil, resilience.Permanent(serr)
		}
		return nil, serr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("url", fullURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return body, nil
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doGet(ctx, "profiles?select=id&limit=1")
	return err
}

// wrap tags a store failure with the table it came from. Answers that
// blame the request become validation, not-found or conflict errors.
func wrap(table string, err error) error {
	if err == nil {
		return nil
	}
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		return err
	}
	var serr *statusError
	if errors.As(err, &serr) {
		if mapped := serr.domainError(table); mapped != nil {
			return mapped
		}
	}
	return &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
}

// eq renders a PostgREST equality filter with an escaped value.
func eq(column, value string) string {
	return column + "=eq." + url.QueryEscape(value)
}

// inList renders a PostgREST in.() filter.
func inList(column string, values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, `"`+strings.ReplaceAll(v, `"`, "")+`"`)
	}
	return column + "=in." + url.QueryEscape("("+strings.Join(quoted, ",")+")")
}

func decodeRows[T any](table string, body []byte) ([]T, error) {
	rows := []T{}
	if len(body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	return rows, nil
}
