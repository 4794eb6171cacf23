package transfer

import (
	"fmt"
	"net/url"
	"strconv"
)

// State is a download task's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// IsTerminal reports whether the state ends the task's lifecycle.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Request describes one download to perform.
type Request struct {
	SourceURL  string
	EncodingID string
	Container  string
	HasAudio   bool
	AudioMP3   bool // bypasses the encoding choice entirely
}

// Path renders the server request path for this download. The same path is
// recorded as the history entry's replay reference.
func (r Request) Path() string {
	q := url.Values{}
	q.Set("url", r.SourceURL)
	if r.AudioMP3 {
		q.Set("audio", "mp3")
	} else {
		if r.EncodingID != "" {
			q.Set("encodingId", r.EncodingID)
		}
		if r.Container != "" {
			q.Set("container", r.Container)
		}
		q.Set("hasAudio", strconv.FormatBool(r.HasAudio))
	}
	return "/api/download?" + q.Encode()
}

// Task is the lifecycle object for one transfer. It is created per download
// and discarded once the terminal state is recorded.
type Task struct {
	ID            string
	State         State
	TotalBytes    int64 // -1 until/unless the content length is known
	ReceivedBytes int64
	Filename      string
	MIMEType      string

	lastPercent int
}

// Percent returns the task's progress percentage, clamped to [0,100] and
// monotonically non-decreasing within one streaming session. Unknown totals
// report -1 (indeterminate), never an estimate.
func (t *Task) Percent() int {
	if t.TotalBytes <= 0 {
		return -1
	}
	pct := int(float64(t.ReceivedBytes) / float64(t.TotalBytes) * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct < t.lastPercent {
		pct = t.lastPercent
	}
	t.lastPercent = pct
	return pct
}

// Result summarizes a completed transfer.
type Result struct {
	Filename  string
	MIMEType  string
	SizeBytes int64
	SavedPath string
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%d bytes, %s)", r.Filename, r.SizeBytes, r.MIMEType)
}
