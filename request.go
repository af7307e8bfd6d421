package insights

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Mode selects how the report is requested.
type Mode string

const (
	// ModeSync asks for the report in the request/response cycle. It is the
	// default; on any failure the client falls back to ModeAsync.
	ModeSync Mode = "sync"

	// ModeAsync always submits an asynchronous report job.
	ModeAsync Mode = "async"
)

// Filter restricts a report to rows matching one field condition.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Request describes one insights retrieval. A Request value is immutable from
// the client's point of view: the replay path works on copies, carrying the
// attempt counter forward, and never mutates the caller's value.
type Request struct {
	// Targets are the object IDs to report on. Empty defaults to the
	// configured account. More than one target requires ModeSync and is
	// served through batch fan-out.
	Targets []string

	// Fields selects the report columns.
	Fields []string

	// Filtering restricts the report rows.
	Filtering []Filter

	// DateStart/DateStop bound the report period (YYYY-MM-DD).
	DateStart string
	DateStop  string

	// Level sets the aggregation level (e.g. "ad", "campaign").
	Level string

	// Params carries arbitrary extra query parameters. They are applied
	// last and may override the generated ones.
	Params map[string]string

	// Mode selects sync or async retrieval. Empty means ModeSync.
	Mode Mode

	// Simplify flattens the accumulated pages into a single table with
	// column-union semantics.
	Simplify bool

	// attempt counts job-failure replays of this request. It is the only
	// field the retry coordinator changes, always on a copy.
	attempt int

	// callID correlates log lines across one logical call-chain, including
	// replays. Minted on first entry.
	callID string
}

func (r Request) validate() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("%w: at least one target required", ErrInvalidUsage)
	}
	for _, t := range r.Targets {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty target ID", ErrInvalidUsage)
		}
	}
	switch r.Mode {
	case "", ModeSync, ModeAsync:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidUsage, r.Mode)
	}
	if r.Mode == ModeAsync && len(r.Targets) > 1 {
		return fmt.Errorf("%w: batched queries incompatible with async mode", ErrInvalidUsage)
	}
	return nil
}

// values builds the query parameters shared by the sync, async and batched
// paths. Extra Params win over generated values.
func (r Request) values() (url.Values, error) {
	v := url.Values{}
	if len(r.Fields) > 0 {
		v.Set("fields", strings.Join(r.Fields, ","))
	}
	if len(r.Filtering) > 0 {
		b, err := json.Marshal(r.Filtering)
		if err != nil {
			return nil, fmt.Errorf("marshal filtering: %w", err)
		}
		v.Set("filtering", string(b))
	}
	if r.DateStart != "" || r.DateStop != "" {
		tr := map[string]string{}
		if r.DateStart != "" {
			tr["since"] = r.DateStart
		}
		if r.DateStop != "" {
			tr["until"] = r.DateStop
		}
		b, err := json.Marshal(tr)
		if err != nil {
			return nil, fmt.Errorf("marshal time_range: %w", err)
		}
		v.Set("time_range", string(b))
	}
	if r.Level != "" {
		v.Set("level", r.Level)
	}
	for k, val := range r.Params {
		v.Set(k, val)
	}
	return v, nil
}

// insightsPath returns the per-target insights endpoint path.
func insightsPath(target string) string {
	return target + "/insights"
}
