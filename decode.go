package insights

import "encoding/json"

// reportPage mirrors one page of a report response: opaque rows plus an
// optional cursor to the next page.
type reportPage struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next    string `json:"next"`
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

func decodeReportPage(raw []byte) (reportPage, error) {
	var p reportPage
	if err := json.Unmarshal(raw, &p); err != nil {
		return reportPage{}, &DecodeError{What: "report page", Snippet: snippet(raw), Cause: err}
	}
	return p, nil
}

// jobStatusPayload mirrors the status endpoint of an async report job.
type jobStatusPayload struct {
	ID          string  `json:"id"`
	AsyncStatus string  `json:"async_status"`
	PercentDone float64 `json:"async_percent_completion"`
}

func decodeJobStatus(raw []byte) (jobStatusPayload, error) {
	var s jobStatusPayload
	if err := json.Unmarshal(raw, &s); err != nil {
		return jobStatusPayload{}, &DecodeError{What: "job status", Snippet: snippet(raw), Cause: err}
	}
	return s, nil
}

// jobSubmission mirrors the async submission response. Some API versions
// return report_run_id, older ones plain id.
type jobSubmission struct {
	ReportRunID string `json:"report_run_id"`
	ID          string `json:"id"`
}

func (s jobSubmission) jobID() string {
	if s.ReportRunID != "" {
		return s.ReportRunID
	}
	return s.ID
}

func decodeJobSubmission(raw []byte) (jobSubmission, error) {
	var s jobSubmission
	if err := json.Unmarshal(raw, &s); err != nil {
		return jobSubmission{}, &DecodeError{What: "job submission", Snippet: snippet(raw), Cause: err}
	}
	return s, nil
}

// batchEntry mirrors one per-target sub-response of a batched request. Body
// is a JSON document serialized as a string by the batch endpoint.
type batchEntry struct {
	Code int    `json:"code"`
	Body string `json:"body"`
}

func decodeBatchEntries(raw []byte) ([]batchEntry, error) {
	var entries []batchEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &DecodeError{What: "batch response", Snippet: snippet(raw), Cause: err}
	}
	return entries, nil
}
