package constants

// RequestStatus is the canonical status for rows in extraction_tracker.
type RequestStatus string

// Stable values (store these exact strings in DB). A request only moves
// forward: pending -> processing -> completed | failed.
const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
)

// Terminal reports whether s is a terminal status.
func Terminal(s RequestStatus) bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidStatus reports whether s is one of the four defined statuses.
func ValidStatus(s RequestStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
