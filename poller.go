package insights

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Polling parameters for async report jobs.
const (
	// initialPollInterval applies before the first progress delta is known.
	initialPollInterval = 400 * time.Millisecond

	// maxPollInterval caps the adaptive wait between status checks.
	maxPollInterval = 300 * time.Second

	// pollDeadline is the wall-clock ceiling for one polling episode,
	// measured from job submission. Checked every iteration.
	pollDeadline = 2700 * time.Second
)

// Status strings reported by the job endpoint.
const (
	statusNotStarted = "Job Not Started"
	statusStarted    = "Job Started"
	statusRunning    = "Job Running"
	statusCompleted  = "Job Completed"
	statusFailed     = "Job Failed"
)

// jobState classifies a reported status string.
type jobState int

const (
	jobPending jobState = iota // not started or still running
	jobCompleted
	jobFailed
	jobUnknown // unrecognized status, terminal
)

func classifyJobStatus(status string) jobState {
	switch status {
	case statusNotStarted, statusStarted, statusRunning:
		return jobPending
	case statusCompleted:
		return jobCompleted
	case statusFailed:
		return jobFailed
	default:
		return jobUnknown
	}
}

// pollState is the per-episode polling state. It lives for exactly one
// polling episode and is never shared.
type pollState struct {
	interval time.Duration // current wait between status checks
	lastPct  float64       // last observed completion percentage
	start    time.Time     // job submission time
}

// nextPollInterval applies the multiplicative adjustment for one progress
// delta (percentage points gained since the previous check).
//
// Bucket boundaries, total order: >25 halves the wait, (15,25] multiplies by
// 0.75, (10,15] keeps it, (5,10] doubles it, <=5 multiplies by 5. The result
// is clamped to maxPollInterval and never negative.
func nextPollInterval(cur time.Duration, delta float64) time.Duration {
	var next time.Duration
	switch {
	case delta > 25:
		next = cur / 2
	case delta > 15:
		next = cur * 3 / 4
	case delta > 10:
		next = cur
	case delta > 5:
		next = cur * 2
	default:
		next = cur * 5
	}
	if next > maxPollInterval {
		next = maxPollInterval
	}
	if next < 0 {
		next = 0
	}
	return next
}

// pollUntilTerminal polls one report job until it reaches a terminal state
// and returns the raw first page of the finished report.
//
// Terminal outcomes: Completed fetches and returns the report body; Failed
// returns a jobFailedError for the retry coordinator; an unrecognized status
// fails with ErrUnexpectedJobState. A job still pending after pollDeadline
// fails with ErrTimeout. Context cancellation is honored at every iteration
// and suspension point.
func (c *Client) pollUntilTerminal(ctx context.Context, log *zap.SugaredLogger, jobID string) ([]byte, error) {
	st := pollState{
		interval: initialPollInterval,
		start:    c.now(),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := c.tr.Send(ctx, http.MethodGet, jobID, url.Values{})
		if err != nil {
			return nil, fmt.Errorf("query job %s status: %w", jobID, err)
		}
		status, err := decodeJobStatus(raw)
		if err != nil {
			return nil, err
		}

		switch classifyJobStatus(status.AsyncStatus) {
		case jobCompleted:
			log.Debugw("report job completed", "job_id", jobID,
				"elapsed", c.now().Sub(st.start))
			return c.tr.Send(ctx, http.MethodGet, insightsPath(jobID), url.Values{})
		case jobFailed:
			log.Errorw("report job failed", "job_id", jobID, "payload", snippet(raw))
			return nil, &jobFailedError{jobID: jobID, payload: raw}
		case jobUnknown:
			return nil, fmt.Errorf("%w: job %s reported %q", ErrUnexpectedJobState, jobID, status.AsyncStatus)
		}

		delta := status.PercentDone - st.lastPct
		st.lastPct = status.PercentDone
		st.interval = nextPollInterval(st.interval, delta)

		log.Debugw("report job pending", "job_id", jobID,
			"status", status.AsyncStatus,
			"percent", status.PercentDone,
			"wait", st.interval)

		// Deadline check every iteration, before the sleep, so a slow
		// final status check cannot overshoot silently.
		if elapsed := c.now().Sub(st.start); elapsed > pollDeadline {
			return nil, fmt.Errorf("%w: job %s still %q after %s",
				ErrTimeout, jobID, status.AsyncStatus, elapsed)
		}

		if err := c.sleep(ctx, st.interval); err != nil {
			return nil, err
		}
	}
}
