// Package insights provides the Go client library for the Adlytics reporting API.
//
// The library retrieves analytical reports ("insights") from a rate-limited,
// asynchronous remote API and owns the full report-job lifecycle:
//  1. Mode Selection - small result sets are served synchronously; any sync
//     failure falls back to submitting an asynchronous report job
//  2. Adaptive Polling - job status is polled with a multiplicative wait
//     interval driven by completion progress, under a 45-minute ceiling
//  3. Job Retry - a failed job replays the original request after a fixed
//     cooldown, at most three times
//  4. Pagination - a completed report is collected page by page until the
//     cursor is exhausted
//  5. Batch Fan-out - multi-target synchronous queries are partitioned into
//     groups of 50 and issued as combined batch requests
//
// Architecture: callers describe WHAT to fetch (Request), the library handles
// ALL lifecycle complexity. One logical call-chain per RequestInsights call;
// no state is shared across concurrent calls.
package insights
