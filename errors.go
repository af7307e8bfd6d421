package insights

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the client. Match with errors.Is; the returned
// error always wraps one of these with call-specific detail.
var (
	// ErrInvalidUsage marks a call that is malformed before any network
	// interaction, e.g. a batched query combined with async mode.
	ErrInvalidUsage = errors.New("invalid usage")

	// ErrTimeout marks an async report job that did not reach a terminal
	// state within the 45-minute polling ceiling.
	ErrTimeout = errors.New("report job timed out")

	// ErrRetriesExhausted marks a report job that failed on the original
	// submission and on every allowed retry.
	ErrRetriesExhausted = errors.New("report job retries exhausted")

	// ErrUnexpectedJobState marks a job status string the client does not
	// recognize. This is terminal and never retried.
	ErrUnexpectedJobState = errors.New("unexpected report job state")
)

// DecodeError reports a response body that could not be parsed into the
// expected shape. Decode failures are fatal and propagated as-is.
type DecodeError struct {
	What    string // which payload was being decoded
	Snippet string // bounded excerpt of the offending body
	Cause   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v (body: %s)", e.What, e.Cause, e.Snippet)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// jobFailedError is the internal terminal-failure condition handed from the
// poller to the retry coordinator. It never escapes the package: after the
// retry cap it is wrapped into ErrRetriesExhausted.
type jobFailedError struct {
	jobID   string
	payload []byte // last decoded status payload, kept for logging
}

func (e *jobFailedError) Error() string {
	return fmt.Sprintf("report job %s failed", e.jobID)
}

// snippet bounds b for inclusion in error messages and logs.
func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
