package insights

import (
	"context"
	"fmt"
	"net/http"

	"github.com/adlytics/insights-client/tabular"
)

// maxReportPages guards against a misbehaving upstream that keeps handing
// out cursors. The API does not formally guarantee finite pagination.
const maxReportPages = 10000

// collectPages walks a completed report from its first page: while the page
// carries a next-page cursor, the cursor URL is fetched and its rows are
// appended, in submission order. Flattening happens at the end when the
// request asked for it.
func (c *Client) collectPages(ctx context.Context, req Request, first reportPage) (*Result, error) {
	pages := []Page{{Rows: first.Data}}

	next := first.Paging.Next
	for next != "" {
		if len(pages) >= maxReportPages {
			return nil, fmt.Errorf("report pagination exceeded %d pages, giving up", maxReportPages)
		}
		raw, err := c.tr.Send(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch report page %d: %w", len(pages)+1, err)
		}
		page, err := decodeReportPage(raw)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Rows: page.Data})
		next = page.Paging.Next
	}

	res := &Result{Pages: pages}
	if req.Simplify {
		tbl, err := tabular.Flatten(res.Rows())
		if err != nil {
			return nil, err
		}
		res.Table = tbl
	}
	return res, nil
}
