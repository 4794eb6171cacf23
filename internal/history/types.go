package history

// Status is the terminal outcome a history entry records.
type Status string

const (
	StatusOK     Status = "ok"
	StatusError  Status = "error"
	StatusCancel Status = "cancel"
)

// Entry is one persisted transfer record.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	MIMEType  string `json:"mimeType"`
	Status    Status `json:"status"`
	// RetryHref is the exact request path that can replay the transfer.
	// Absent when no replay is possible, e.g. a hard cancel before any bytes.
	RetryHref string `json:"retryHref,omitempty"`
	CreatedAt int64  `json:"createdAt"` // epoch milliseconds
}

// CreateInput is the payload for appending an entry.
type CreateInput struct {
	Name      string
	SizeBytes int64
	MIMEType  string
	Status    Status
	RetryHref string
}

// MaxEntries caps the persisted collection; insertion evicts the oldest
// beyond the cap.
const MaxEntries = 50
