package importer

// Status is the outcome of importing one attachment.
type Status string

const (
	StatusImported          Status = "imported"
	StatusSkippedDuplicate  Status = "skipped_duplicate"
	StatusUploadFailed      Status = "upload_failed"
	StatusPartiallyImported Status = "partially_imported"
	StatusError             Status = "error"
)

// Outcome describes what happened to one attachment, or to a whole message
// when its structure could not be fetched (Filename is then empty).
type Outcome struct {
	MessageID  string `json:"message_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Status     Status `json:"status"`
	Department string `json:"department,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report is the result of an import run. Details are in discovery order and
// Imported counts only StatusImported outcomes.
type Report struct {
	Imported int       `json:"imported"`
	Query    string    `json:"query"`
	Details  []Outcome `json:"details"`
}

// Count returns how many outcomes have status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, d := range r.Details {
		if d.Status == s {
			n++
		}
	}
	return n
}

// QueryResult is the result of one diagnostic search.
type QueryResult struct {
	Query      string   `json:"query"`
	Count      int      `json:"count"`
	MessageIDs []string `json:"message_ids,omitempty"`
	Error      string   `json:"error,omitempty"`
}
