// Package transport performs single authenticated request/response exchanges
// against the reporting API. It owns no lifecycle logic: one Send is one
// exchange, with no implicit retries.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// errBodyCap caps how many bytes are slurped from a non-2xx response when
// constructing an APIError.
const errBodyCap = 8192

// Doer is the request/response exchange the insights client consumes.
type Doer interface {
	// Send performs one exchange. method is GET or POST. path is either a
	// path relative to the versioned API root or an absolute URL (as
	// handed out by pagination cursors).
	Send(ctx context.Context, method, path string, params url.Values) ([]byte, error)
}

// Config holds transport configuration.
type Config struct {
	BaseURL     string        // API origin, e.g. "https://graph.adlytics.com"
	Version     string        // version path segment, e.g. "v19.0"
	AccessToken string        // attached to every request
	HTTPClient  *http.Client  // underlying HTTP client
	Limiter     *rate.Limiter // client-side pacing; nil disables pacing
}

// Transport implements Doer against the production API.
type Transport struct {
	baseURL string // normalized, no trailing slash
	version string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	stats   *CallStats
}

// New creates a Transport. BaseURL, Version, AccessToken and HTTPClient are
// required.
func New(cfg Config) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid BaseURL %q", cfg.BaseURL)
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("Version required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("AccessToken required")
	}
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("HTTPClient required")
	}

	return &Transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: cfg.Version,
		token:   cfg.AccessToken,
		http:    cfg.HTTPClient,
		limiter: cfg.Limiter,
		stats:   NewCallStats(),
	}, nil
}

// Send performs one authenticated exchange and returns the raw response body.
// Non-2xx responses are returned as *APIError with a bounded body snippet.
func (t *Transport) Send(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := t.buildRequest(ctx, method, path, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		t.stats.TrackFailure(latency, err.Error())
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyCap))
		_, _ = io.Copy(io.Discard, resp.Body)
		apiErr := parseAPIError(resp.StatusCode, slurp)
		t.stats.TrackFailure(latency, apiErr.Error())
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.stats.TrackFailure(latency, err.Error())
		return nil, fmt.Errorf("read response: %w", err)
	}

	t.stats.TrackSuccess(latency)
	return body, nil
}

// Stats returns a snapshot of call statistics over the last hour.
func (t *Transport) Stats() Snapshot {
	return t.stats.Snapshot()
}

// buildRequest assembles the URL and body for one exchange. GET carries the
// parameters in the query string, POST as a form body; the access token is
// attached either way.
func (t *Transport) buildRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	values := url.Values{}
	for k, vs := range params {
		values[k] = vs
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = t.baseURL + "/" + t.version
		if path != "" {
			target += "/" + strings.TrimLeft(path, "/")
		}
	}

	switch method {
	case http.MethodGet:
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse URL %q: %w", target, err)
		}
		q := u.Query()
		for k, vs := range values {
			q[k] = vs
		}
		// Cursor URLs already carry the token; plain paths need it added.
		if q.Get("access_token") == "" {
			q.Set("access_token", t.token)
		}
		u.RawQuery = q.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil

	case http.MethodPost:
		values.Set("access_token", t.token)
		body := strings.NewReader(values.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil

	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int    // HTTP status code
	Code    int    // application error code, when present
	Type    string // application error type, when present
	Message string // application error message, when present
	Body    []byte // bounded response body
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (code %d, %s): %s", e.Status, e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, string(e.Body))
}

// parseAPIError extracts the application error envelope when the body
// carries one.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: body}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
	}
	return apiErr
}
