package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/adlytics/insights-client/tabular"
)

const (
	// batchGroupSize matches the API's limit on operations per batch call.
	batchGroupSize = 50

	// maxConcurrentGroups bounds how many batch calls are in flight at
	// once. Groups are independent; order of the results is preserved.
	maxConcurrentGroups = 4
)

// batchOp is one operation of a combined batch request.
type batchOp struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
}

// runBatched is the multi-target synchronous path: targets are partitioned
// into groups of batchGroupSize, each group becomes one batch call. A group
// failure is recorded on its GroupResult and never aborts sibling groups.
func (c *Client) runBatched(ctx context.Context, req Request) ([]GroupResult, error) {
	shared, err := req.values()
	if err != nil {
		return nil, err
	}

	groups := chunkTargets(req.Targets, batchGroupSize)
	results := make([]GroupResult, len(groups))

	c.log.Debugw("batched insights request",
		"call_id", req.callID,
		"targets", len(req.Targets),
		"groups", len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentGroups)
	for i, targets := range groups {
		results[i].Targets = targets
		g.Go(func() error {
			reports, err := c.runGroup(gctx, targets, shared, req.Simplify)
			results[i].Reports = reports
			results[i].Err = err
			return nil // group failures stay on the GroupResult
		})
	}
	_ = g.Wait()

	return results, nil
}

// runGroup issues one batch call for up to batchGroupSize targets and decodes
// the per-target sub-responses.
func (c *Client) runGroup(ctx context.Context, targets []string, shared url.Values, simplify bool) ([]TargetReport, error) {
	ops := make([]batchOp, len(targets))
	encoded := shared.Encode()
	for i, target := range targets {
		rel := insightsPath(target)
		if encoded != "" {
			rel += "?" + encoded
		}
		ops[i] = batchOp{Method: http.MethodGet, RelativeURL: rel}
	}

	payload, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("marshal batch operations: %w", err)
	}

	raw, err := c.tr.Send(ctx, http.MethodPost, "", url.Values{"batch": {string(payload)}})
	if err != nil {
		return nil, fmt.Errorf("batched insights request: %w", err)
	}

	entries, err := decodeBatchEntries(raw)
	if err != nil {
		return nil, err
	}
	if len(entries) != len(targets) {
		return nil, fmt.Errorf("batch response has %d entries for %d targets", len(entries), len(targets))
	}

	reports := make([]TargetReport, len(targets))
	for i, entry := range entries {
		reports[i].Target = targets[i]
		if entry.Code != http.StatusOK {
			reports[i].Err = fmt.Errorf("target %s: batch entry returned status %d", targets[i], entry.Code)
			continue
		}
		page, err := decodeReportPage([]byte(entry.Body))
		if err != nil {
			reports[i].Err = err
			continue
		}
		reports[i].Rows = page.Data
		if simplify {
			tbl, err := tabular.Flatten(page.Data)
			if err != nil {
				reports[i].Err = err
				continue
			}
			reports[i].Table = tbl
		}
	}
	return reports, nil
}

// chunkTargets partitions targets into groups of at most size, preserving
// order. The last group may be smaller.
func chunkTargets(targets []string, size int) [][]string {
	if size <= 0 {
		return [][]string{targets}
	}
	groups := make([][]string, 0, (len(targets)+size-1)/size)
	for start := 0; start < len(targets); start += size {
		end := start + size
		if end > len(targets) {
			end = len(targets)
		}
		groups = append(groups, targets[start:end])
	}
	return groups
}
