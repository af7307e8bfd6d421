package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adlytics/insights-client/transport"
)

const (
	defaultBaseURL     = "https://graph.adlytics.com"
	defaultAPIVersion  = "v19.0"
	defaultHTTPTimeout = 30 * time.Second

	// defaultRequestsPerSecond paces outgoing calls; the API enforces its
	// own limits, pacing keeps us out of the penalty window.
	defaultRequestsPerSecond = 10
)

// Config holds client configuration. AccessToken and AccountID are required;
// the remaining fields fall back to library defaults.
type Config struct {
	AccessToken string // API access token, attached to every request
	AccountID   string // ad account ID, default target for reports
	BaseURL     string // API base URL (default: production endpoint)
	APIVersion  string // API version path segment (e.g. "v19.0")

	Logger *zap.Logger // optional; nil logs nothing

	HTTPTimeout       time.Duration // per-request timeout for the HTTP client
	RequestsPerSecond float64       // client-side pacing, 0 = default
}

// Validate checks the required config fields.
func (c Config) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("AccessToken required")
	}
	if c.AccountID == "" {
		return fmt.Errorf("AccountID required")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTPTimeout must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("RequestsPerSecond must not be negative")
	}
	return nil
}

// Client retrieves insights reports. It is immutable after New and safe for
// concurrent use: every RequestInsights call is an independent call-chain
// with no shared mutable state.
type Client struct {
	cfg Config
	tr  transport.Doer
	log *zap.SugaredLogger

	// Clock hooks, swapped out in tests. sleep honors ctx cancellation.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client with the production transport.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}

	tr, err := transport.New(transport.Config{
		BaseURL:     cfg.BaseURL,
		Version:     cfg.APIVersion,
		AccessToken: cfg.AccessToken,
		HTTPClient:  transport.NewHTTPClient(cfg.HTTPTimeout),
		Limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	return newClient(cfg, tr), nil
}

// newClient wires a client around an arbitrary transport (tests inject fakes
// here).
func newClient(cfg Config, tr transport.Doer) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:   cfg,
		tr:    tr,
		log:   logger.Sugar(),
		now:   time.Now,
		sleep: sleepContext,
	}
}

// RequestInsights retrieves one report.
//
// With a single target the report is first attempted synchronously; any
// failure falls back to an asynchronous report job which is polled to
// completion, retried on job failure, and paginated. With multiple targets
// the call is served through batch fan-out (ModeSync only) and the per-group
// results are returned in Result.Groups.
func (c *Client) RequestInsights(ctx context.Context, req Request) (*Result, error) {
	if len(req.Targets) == 0 {
		req.Targets = []string{"act_" + c.cfg.AccountID}
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.callID == "" {
		req.callID = uuid.NewString()
	}

	if len(req.Targets) > 1 {
		groups, err := c.runBatched(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Result{Groups: groups}, nil
	}
	return c.requestSingle(ctx, req)
}

// requestSingle is the single-target path: sync attempt, async fallback,
// poll, retry, paginate.
func (c *Client) requestSingle(ctx context.Context, req Request) (*Result, error) {
	log := c.log.With("call_id", req.callID, "target", req.Targets[0])

	params, err := req.values()
	if err != nil {
		return nil, err
	}

	if req.Mode != ModeAsync {
		raw, err := c.tr.Send(ctx, http.MethodGet, insightsPath(req.Targets[0]), params)
		if err == nil {
			page, derr := decodeReportPage(raw)
			if derr == nil {
				return c.collectPages(ctx, req, page)
			}
			err = derr
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		// Any sync failure means "too large for sync": fall back to an
		// async job with the same parameters.
		log.Debugw("synchronous request failed, falling back to async job", "error", err)
	}

	// Async submission. A failure here is fatal, not retried.
	raw, err := c.tr.Send(ctx, http.MethodPost, insightsPath(req.Targets[0]), params)
	if err != nil {
		return nil, fmt.Errorf("submit report job: %w", err)
	}
	sub, err := decodeJobSubmission(raw)
	if err != nil {
		return nil, err
	}
	if sub.jobID() == "" {
		return nil, &DecodeError{What: "job submission", Snippet: snippet(raw), Cause: errors.New("missing job ID")}
	}

	first, err := c.pollUntilTerminal(ctx, log, sub.jobID())
	if err != nil {
		var jf *jobFailedError
		if errors.As(err, &jf) {
			// The coordinator replays the original request; its result
			// is already paginated, so it is returned as-is.
			return c.handleJobFailure(ctx, req, jf)
		}
		return nil, err
	}

	page, err := decodeReportPage(first)
	if err != nil {
		return nil, err
	}
	return c.collectPages(ctx, req, page)
}

// Stats reports transport call statistics when the underlying transport
// collects them.
func (c *Client) Stats() transport.Snapshot {
	if s, ok := c.tr.(interface{ Stats() transport.Snapshot }); ok {
		return s.Stats()
	}
	return transport.Snapshot{}
}

// sleepContext waits for d or returns early when ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
