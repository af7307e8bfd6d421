package insights

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// sentCall records one exchange issued through the fake transport.
type sentCall struct {
	method string
	path   string
	params url.Values
}

// fakeTransport scripts transport behavior per test via the handle func and
// records every call. Safe for concurrent use (batch groups run in parallel).
type fakeTransport struct {
	mu     sync.Mutex
	calls  []sentCall
	handle func(method, path string, params url.Values) ([]byte, error)
}

func (f *fakeTransport) Send(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{method: method, path: path, params: cloneValues(params)})
	f.mu.Unlock()
	return f.handle(method, path, params)
}

func (f *fakeTransport) recorded() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTransport) callsTo(method, path string) int {
	n := 0
	for _, c := range f.recorded() {
		if c.method == method && c.path == path {
			n++
		}
	}
	return n
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// fakeClock makes polling and cooldowns run on simulated time: Sleep advances
// the clock instead of blocking.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

func (c *fakeClock) sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.slept))
	copy(out, c.slept)
	return out
}

// newTestClient wires a client around the fake transport and a fake clock.
func newTestClient(ft *fakeTransport) (*Client, *fakeClock) {
	c := newClient(Config{AccessToken: "token", AccountID: "123"}, ft)
	clk := newFakeClock()
	c.now = clk.Now
	c.sleep = clk.Sleep
	return c, clk
}
