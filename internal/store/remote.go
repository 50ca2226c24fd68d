package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aman-CERP/amanrdf/internal/document"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/schema"
	"github.com/Aman-CERP/amanrdf/pkg/version"
)

// RemoteOptions tunes a RemoteStore.
type RemoteOptions struct {
	// Timeout bounds one HTTP request. Zero means 30s.
	Timeout time.Duration
	// RequestsPerSecond limits outgoing requests; zero means unlimited.
	RequestsPerSecond float64
	Burst             int
	// MaxFailures consecutive transport failures open the circuit breaker.
	MaxFailures  int
	ResetTimeout time.Duration
	// OnStateChange observes circuit breaker transitions.
	OnStateChange func(name string, from, to amerrors.State)
	// HTTPClient overrides the default client; Timeout is then ignored.
	HTTPClient *http.Client
	// Retry is used by Health only. Bulk writes are never retried.
	Retry *amerrors.RetryConfig
}

// RemoteStore talks to an `amanrdf serve` instance over HTTP. It is safe
// for concurrent use by all workers.
type RemoteStore struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
	breaker *amerrors.CircuitBreaker
	retry   amerrors.RetryConfig
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore returns a client for the service at address
// (e.g. http://127.0.0.1:7701).
func NewRemoteStore(address string, opts RemoteOptions) (*RemoteStore, error) {
	u, err := url.Parse(address)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, amerrors.ConfigError(fmt.Sprintf("backend.address %q is not an http(s) URL", address), err)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	var cbOpts []amerrors.CircuitBreakerOption
	if opts.MaxFailures > 0 {
		cbOpts = append(cbOpts, amerrors.WithMaxFailures(opts.MaxFailures))
	}
	if opts.ResetTimeout > 0 {
		cbOpts = append(cbOpts, amerrors.WithResetTimeout(opts.ResetTimeout))
	}
	if opts.OnStateChange != nil {
		cbOpts = append(cbOpts, amerrors.WithStateChange(opts.OnStateChange))
	}

	retry := amerrors.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	return &RemoteStore{
		base:    strings.TrimRight(u.String(), "/"),
		client:  client,
		limiter: limiter,
		breaker: amerrors.NewCircuitBreaker("remote backend", cbOpts...),
		retry:   retry,
	}, nil
}

// do sends one request through the rate limiter and circuit breaker.
// Only transport-level failures count against the breaker.
func (r *RemoteStore) do(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if !r.breaker.Allow() {
		return 0, amerrors.BackendError("remote backend is unavailable", amerrors.ErrCircuitOpen).
			WithSuggestion("the backend failed repeatedly; check that `amanrdf serve` is running")
	}

	status, err := r.roundTrip(ctx, method, path, query, in, out)
	if err != nil && amerrors.IsRetryable(err) {
		r.breaker.RecordFailure()
	} else {
		r.breaker.RecordSuccess()
	}
	return status, err
}

func (r *RemoteStore) roundTrip(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, amerrors.InternalError("cannot encode request", err)
		}
		body = bytes.NewReader(raw)
	}

	target := r.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, amerrors.InternalError("cannot build request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, amerrors.New(amerrors.ErrCodeBackendTimeout, method+" "+path+" timed out", err)
		}
		return 0, amerrors.BackendError("cannot reach "+r.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && method != http.MethodHead {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, amerrors.BackendError("malformed response from "+path, err)
			}
		}
		return resp.StatusCode, nil
	}
	return resp.StatusCode, responseError(resp)
}

// responseError rebuilds the server's error from its body, falling back
// to the status code.
func responseError(resp *http.Response) error {
	var er ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(raw) > 0 && json.Unmarshal(raw, &er) == nil && er.Code != "" {
		return amerrors.New(er.Code, er.Message, nil).WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	msg := fmt.Sprintf("backend returned %s", resp.Status)
	switch {
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return amerrors.New(amerrors.ErrCodeBackendTimeout, msg, nil)
	case resp.StatusCode >= 500:
		return amerrors.BackendError(msg, nil)
	default:
		return amerrors.New(amerrors.ErrCodeBackendRejected, msg, nil)
	}
}

func indexPath(index string, suffix string) string {
	return "/indices/" + url.PathEscape(index) + suffix
}

// BulkIndex posts docs in a single request.
func (r *RemoteStore) BulkIndex(ctx context.Context, index string, docs []document.Doc) error {
	if len(docs) == 0 {
		return nil
	}
	var out BulkResponse
	_, err := r.do(ctx, http.MethodPost, indexPath(index, "/_bulk"), nil, BulkRequest{Documents: docs}, &out)
	return err
}

// Count asks the service for the document count of index.
func (r *RemoteStore) Count(ctx context.Context, index string) (uint64, error) {
	var out CountResponse
	if _, err := r.do(ctx, http.MethodGet, indexPath(index, "/_count"), nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Exists sends HEAD /indices/:index.
func (r *RemoteStore) Exists(ctx context.Context, index string) (bool, error) {
	status, err := r.do(ctx, http.MethodHead, indexPath(index, ""), nil, nil, nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateIndex sends PUT /indices/:index with the schema.
func (r *RemoteStore) CreateIndex(ctx context.Context, sc schema.Schema) error {
	if err := sc.Validate(); err != nil {
		return amerrors.ValidationError("invalid schema", err)
	}
	_, err := r.do(ctx, http.MethodPut, indexPath(sc.Index, ""), nil, sc, nil)
	return err
}

// DeleteIndex sends DELETE /indices/:index.
func (r *RemoteStore) DeleteIndex(ctx context.Context, index string) error {
	status, err := r.do(ctx, http.MethodDelete, indexPath(index, ""), nil, nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// Indices sends GET /indices.
func (r *RemoteStore) Indices(ctx context.Context) ([]schema.Schema, error) {
	var out IndicesResponse
	if _, err := r.do(ctx, http.MethodGet, "/indices", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Indices, nil
}

// Lookup sends GET /indices/:index/_lookup.
func (r *RemoteStore) Lookup(ctx context.Context, index, field, value string, limit int) ([]document.Doc, error) {
	q := url.Values{}
	q.Set("field", field)
	q.Set("value", value)
	q.Set("limit", strconv.Itoa(lookupLimit(limit)))

	var out LookupResponse
	if _, err := r.do(ctx, http.MethodGet, indexPath(index, "/_lookup"), q, nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// Search sends GET /indices/:index/_search.
func (r *RemoteStore) Search(ctx context.Context, index, query string, limit int) ([]Hit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(lookupLimit(limit)))

	var out SearchResponse
	if _, err := r.do(ctx, http.MethodGet, indexPath(index, "/_search"), q, nil, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

// Health probes GET /health, retrying transient failures with backoff.
func (r *RemoteStore) Health(ctx context.Context) error {
	return amerrors.Retry(ctx, r.retry, func() error {
		_, err := r.do(ctx, http.MethodGet, "/health", nil, nil, nil)
		return err
	})
}

// Location returns the service address.
func (r *RemoteStore) Location() string {
	return r.base
}

// BreakerState exposes the circuit breaker state for status output.
func (r *RemoteStore) BreakerState() amerrors.State {
	return r.breaker.State()
}

// Close drops idle connections.
func (r *RemoteStore) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
