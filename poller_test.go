package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPollInterval(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		cur   time.Duration
		delta float64
		want  time.Duration
	}{
		{"fast progress halves", 100 * time.Second, 30, 50 * time.Second},
		{"boundary 25 is not fast", 100 * time.Second, 25, 75 * time.Second},
		{"good progress shrinks", 100 * time.Second, 20, 75 * time.Second},
		{"moderate progress holds", 100 * time.Second, 12, 100 * time.Second},
		{"boundary 10 doubles", 100 * time.Second, 10, 200 * time.Second},
		{"slow progress doubles", 100 * time.Second, 7, 200 * time.Second},
		{"stalled multiplies by five", 10 * time.Second, 3, 50 * time.Second},
		{"boundary 5 counts as stalled", 10 * time.Second, 5, 50 * time.Second},
		{"no progress", 10 * time.Second, 0, 50 * time.Second},
		{"clamped to ceiling", 100 * time.Second, 0, 300 * time.Second},
		{"zero stays zero", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, nextPollInterval(tc.cur, tc.delta))
		})
	}
}

// jobStatusScript returns a handler that walks through the given status
// payloads for GET <jobID> and serves the report body on completion.
func jobStatusScript(jobID string, statuses []string, report string) func(method, path string, params url.Values) ([]byte, error) {
	i := 0
	return func(method, path string, params url.Values) ([]byte, error) {
		switch {
		case method == http.MethodGet && path == jobID:
			s := statuses[i]
			if i < len(statuses)-1 {
				i++
			}
			return []byte(s), nil
		case method == http.MethodGet && path == jobID+"/insights":
			return []byte(report), nil
		}
		return nil, fmt.Errorf("unexpected call: %s %s", method, path)
	}
}

func statusJSON(status string, pct float64) string {
	return fmt.Sprintf(`{"id":"900","async_status":%q,"async_percent_completion":%g}`, status, pct)
}

func TestPollAdaptiveWaits(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: jobStatusScript("900", []string{
		statusJSON(statusNotStarted, 0), // delta 0   -> 0.4s*5 = 2s
		statusJSON(statusStarted, 30),   // delta 30  -> 2s/2  = 1s
		statusJSON(statusRunning, 42),   // delta 12  -> 1s*1  = 1s
		statusJSON(statusRunning, 50),   // delta 8   -> 1s*2  = 2s
		statusJSON(statusCompleted, 100),
	}, `{"data":[]}`)}
	c, clk := newTestClient(ft)

	_, err := c.pollUntilTerminal(context.Background(), c.log, "900")
	require.NoError(t, err)

	want := []time.Duration{
		2 * time.Second,
		1 * time.Second,
		1 * time.Second,
		2 * time.Second,
	}
	assert.Equal(t, want, clk.sleeps())

	// The finished report is fetched from the job's insights sub-path.
	calls := ft.recorded()
	require.NotEmpty(t, calls)
	assert.Equal(t, "900/insights", calls[len(calls)-1].path)
}

func TestPollDeadlineExceeded(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: jobStatusScript("900", []string{
		statusJSON(statusRunning, 0), // never progresses, never terminal
	}, "")}
	c, clk := newTestClient(ft)

	start := clk.Now()
	_, err := c.pollUntilTerminal(context.Background(), c.log, "900")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Greater(t, clk.Now().Sub(start), pollDeadline)
}

func TestPollJobFailedReturnsInternalCondition(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: jobStatusScript("900", []string{
		statusJSON(statusRunning, 10),
		statusJSON(statusFailed, 10),
	}, "")}
	c, _ := newTestClient(ft)

	_, err := c.pollUntilTerminal(context.Background(), c.log, "900")
	var jf *jobFailedError
	require.ErrorAs(t, err, &jf)
	assert.Equal(t, "900", jf.jobID)
	assert.Contains(t, string(jf.payload), statusFailed)
}

func TestPollUnrecognizedStatusIsTerminal(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: jobStatusScript("900", []string{
		statusJSON("Job Meditating", 50),
	}, "")}
	c, clk := newTestClient(ft)

	_, err := c.pollUntilTerminal(context.Background(), c.log, "900")
	require.ErrorIs(t, err, ErrUnexpectedJobState)
	assert.Contains(t, err.Error(), "Job Meditating")
	assert.Empty(t, clk.sleeps())
}

func TestPollHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: jobStatusScript("900", []string{
		statusJSON(statusRunning, 0),
	}, "")}
	c, _ := newTestClient(ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.pollUntilTerminal(ctx, c.log, "900")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ft.recorded())
}

func TestPollStatusTransportErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	ft := &fakeTransport{handle: func(method, path string, params url.Values) ([]byte, error) {
		return nil, boom
	}}
	c, _ := newTestClient(ft)

	_, err := c.pollUntilTerminal(context.Background(), c.log, "900")
	require.ErrorIs(t, err, boom)
}
