package transport

import (
	"sort"
	"sync"
	"time"
)

// apiCall records one exchange against the API.
type apiCall struct {
	timestamp time.Time
	success   bool
	latency   time.Duration
	errMsg    string
}

// CallStats tracks exchanges over a rolling one-hour window.
type CallStats struct {
	mu    sync.Mutex
	calls []apiCall
}

// Snapshot is an aggregated view of recent API calls.
type Snapshot struct {
	TotalCalls   int
	SuccessRate  float64
	LastCall     time.Time
	LatencyP50   time.Duration
	LatencyP95   time.Duration
	LatencyP99   time.Duration
	RecentErrors []string // up to 5 most recent error messages
}

// NewCallStats creates an empty tracker.
func NewCallStats() *CallStats {
	return &CallStats{}
}

// TrackSuccess records a successful exchange.
func (s *CallStats) TrackSuccess(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, apiCall{
		timestamp: time.Now().UTC(),
		success:   true,
		latency:   latency,
	})
	s.pruneOldCalls()
}

// TrackFailure records a failed exchange.
func (s *CallStats) TrackFailure(latency time.Duration, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, apiCall{
		timestamp: time.Now().UTC(),
		success:   false,
		latency:   latency,
		errMsg:    errMsg,
	})
	s.pruneOldCalls()
}

// pruneOldCalls removes calls older than 1 hour. Caller holds the lock.
func (s *CallStats) pruneOldCalls() {
	oneHourAgo := time.Now().UTC().Add(-1 * time.Hour)
	for i, call := range s.calls {
		if call.timestamp.After(oneHourAgo) {
			s.calls = s.calls[i:]
			return
		}
	}
	s.calls = nil
}

// Snapshot aggregates the tracked calls.
func (s *CallStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneOldCalls()
	if len(s.calls) == 0 {
		return Snapshot{}
	}

	var successCount int
	var lastCall time.Time
	latencies := make([]time.Duration, 0, len(s.calls))
	var recentErrors []string

	for _, call := range s.calls {
		if call.success {
			successCount++
		} else {
			recentErrors = append(recentErrors, call.errMsg)
		}
		latencies = append(latencies, call.latency)
		if call.timestamp.After(lastCall) {
			lastCall = call.timestamp
		}
	}
	if len(recentErrors) > 5 {
		recentErrors = recentErrors[len(recentErrors)-5:]
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	return Snapshot{
		TotalCalls:   len(s.calls),
		SuccessRate:  float64(successCount) / float64(len(s.calls)),
		LastCall:     lastCall,
		LatencyP50:   percentile(latencies, 0.50),
		LatencyP95:   percentile(latencies, 0.95),
		LatencyP99:   percentile(latencies, 0.99),
		RecentErrors: recentErrors,
	}
}

// percentile returns the p-th percentile of a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}
