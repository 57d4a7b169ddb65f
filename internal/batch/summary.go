package batch

// ItemStatus is the final state of one selected AIP within a run.
type ItemStatus string

const (
	StatusAlreadyClaimed ItemStatus = "already_claimed"
	StatusCreationFailed ItemStatus = "creation_failed"
	StatusCreated        ItemStatus = "created"
	StatusUploaded       ItemStatus = "uploaded"
	StatusUploadFailed   ItemStatus = "upload_failed"
)

// ItemResult records what happened to one AIP.
type ItemResult struct {
	AIPUUID string     `json:"aip_uuid"`
	Status  ItemStatus `json:"status"`
	DIPPath string     `json:"dip_path,omitempty"`
	// Detail is the upload outcome or failure cause.
	Detail string `json:"detail,omitempty"`
}

// Summary counts the results of a run.
type Summary struct {
	CorrelationID string       `json:"correlation_id"`
	Listed        int          `json:"listed"`
	Selected      int          `json:"selected"`
	Skipped       int          `json:"skipped"`
	Items         []ItemResult `json:"items"`
}

// Count returns how many items ended in status.
func (s Summary) Count(status ItemStatus) int {
	n := 0
	for _, item := range s.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Counts returns item totals keyed by status, omitting zero entries.
func (s Summary) Counts() map[ItemStatus]int {
	counts := make(map[ItemStatus]int)
	for _, item := range s.Items {
		counts[item.Status]++
	}
	return counts
}

// Failed reports whether any claimed item did not finish cleanly.
func (s Summary) Failed() bool {
	return s.Count(StatusCreationFailed) > 0 || s.Count(StatusUploadFailed) > 0
}
