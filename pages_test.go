package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cursorURL = "https://graph.adlytics.com/v19.0/900/insights?after=abc"

func twoPageScript() func(method, path string, params url.Values) ([]byte, error) {
	return func(method, path string, params url.Values) ([]byte, error) {
		if method == http.MethodGet && path == cursorURL {
			return []byte(`{"data":[{"row":3}]}`), nil
		}
		return nil, fmt.Errorf("unexpected call: %s %s", method, path)
	}
}

func firstPage(t *testing.T) reportPage {
	t.Helper()
	page, err := decodeReportPage([]byte(fmt.Sprintf(
		`{"data":[{"row":1},{"row":2}],"paging":{"next":%q}}`, cursorURL)))
	require.NoError(t, err)
	return page
}

func TestCollectPagesFollowsCursor(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: twoPageScript()}
	c, _ := newTestClient(ft)

	res, err := c.collectPages(context.Background(), Request{}, firstPage(t))
	require.NoError(t, err)

	require.Len(t, res.Pages, 2)
	assert.Len(t, res.Pages[0].Rows, 2)
	assert.Len(t, res.Pages[1].Rows, 1)
	assert.JSONEq(t, `{"row":1}`, string(res.Pages[0].Rows[0]))
	assert.JSONEq(t, `{"row":3}`, string(res.Pages[1].Rows[0]))

	calls := ft.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, cursorURL, calls[0].path)
}

func TestCollectPagesIdempotent(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: twoPageScript()}
	c, _ := newTestClient(ft)

	res1, err := c.collectPages(context.Background(), Request{}, firstPage(t))
	require.NoError(t, err)
	res2, err := c.collectPages(context.Background(), Request{}, firstPage(t))
	require.NoError(t, err)

	assert.Equal(t, res1, res2)
}

func TestCollectPagesCapsRunawayPagination(t *testing.T) {
	t.Parallel()

	// Upstream that keeps handing out cursors forever.
	ft := &fakeTransport{handle: func(method, path string, params url.Values) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"data":[{"row":0}],"paging":{"next":%q}}`, cursorURL)), nil
	}}
	c, _ := newTestClient(ft)

	_, err := c.collectPages(context.Background(), Request{}, firstPage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination exceeded")
}

func TestCollectPagesDecodeErrorIsFatal(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{handle: func(method, path string, params url.Values) ([]byte, error) {
		return []byte(`{"data": not json`), nil
	}}
	c, _ := newTestClient(ft)

	_, err := c.collectPages(context.Background(), Request{}, firstPage(t))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "report page", decodeErr.What)
}

func TestResultRowsConcatenatesPages(t *testing.T) {
	t.Parallel()

	res := &Result{Pages: []Page{
		{Rows: []json.RawMessage{json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":2}`)}},
		{Rows: []json.RawMessage{json.RawMessage(`{"a":3}`)}},
	}}
	rows := res.Rows()
	require.Len(t, rows, 3)
	assert.JSONEq(t, `{"a":3}`, string(rows[2]))
}
