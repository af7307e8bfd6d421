package insights

import (
	"context"
	"fmt"
	"time"
)

const (
	// maxJobRetries bounds how often a failed job replays the original
	// request. The cap also bounds the re-entry depth into RequestInsights.
	maxJobRetries = 3

	// retryCooldown is the fixed wait before a replay, giving the remote
	// system time to recover from a systemic job failure.
	retryCooldown = 60 * time.Second
)

// handleJobFailure decides whether a failed report job is replayed.
//
// The attempt counter lives on the captured request, not on poller state; a
// replay re-enters RequestInsights with an incremented copy in the original
// caller's context. The replay returns a fully materialized Result, so the
// outer frame passes it through without paginating again.
func (c *Client) handleJobFailure(ctx context.Context, req Request, jf *jobFailedError) (*Result, error) {
	log := c.log.With("call_id", req.callID, "target", req.Targets[0])

	next := req
	next.attempt++
	if next.attempt > maxJobRetries {
		log.Errorw("report job retries exhausted",
			"job_id", jf.jobID,
			"attempts", req.attempt,
			"payload", snippet(jf.payload))
		return nil, fmt.Errorf("%w: job %s failed after %d retries",
			ErrRetriesExhausted, jf.jobID, maxJobRetries)
	}

	log.Infow("retrying failed report job",
		"job_id", jf.jobID,
		"attempt", next.attempt,
		"cooldown", retryCooldown)

	if err := c.sleep(ctx, retryCooldown); err != nil {
		return nil, err
	}
	return c.RequestInsights(ctx, next)
}
