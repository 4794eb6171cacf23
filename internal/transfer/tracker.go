// Package transfer consumes a download response incrementally, tracks
// progress, triggers the local save, and records exactly one history entry
// per terminal transition. Cancellation is cooperative and observed at every
// read boundary; partial bytes are never saved.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fetchbox/fetchbox/internal/history"
)

// ErrTransferActive is returned when a download is requested while another
// one is still streaming on the same tracker.
var ErrTransferActive = errors.New("a transfer is already in progress")

// readChunkSize is the increment consumed per read.
const readChunkSize = 32 * 1024

// Recorder persists terminal history entries.
type Recorder interface {
	Append(ctx context.Context, input history.CreateInput) (*history.Entry, error)
}

// Reporter receives progress callbacks while streaming.
type Reporter interface {
	Started(taskID, name string)
	Progress(taskID string, received, total int64, percent int)
	Finished(taskID string, state State, errMsg string)
}

// SaveFunc persists the fully assembled payload and returns its location.
type SaveFunc func(filename, mimeType string, data []byte) (string, error)

// DirSaver returns a SaveFunc writing into dir.
func DirSaver(dir string) SaveFunc {
	return func(filename, mimeType string, data []byte) (string, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create save directory: %w", err)
		}
		path := filepath.Join(dir, sanitizeFilename(filename))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("save download: %w", err)
		}
		return path, nil
	}
}

// sanitizeFilename strips path separators and characters that are invalid
// on at least one supported platform.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	name = replacer.Replace(name)
	if name == "" || name == "." || name == ".." {
		name = "download"
	}
	return name
}

// Tracker drives download tasks against a running server.
type Tracker struct {
	baseURL  string
	client   *http.Client
	recorder Recorder
	reporter Reporter
	save     SaveFunc
	logger   zerolog.Logger

	mu     sync.Mutex
	active bool
}

// NewTracker creates a tracker. recorder may not be nil; reporter may be.
func NewTracker(baseURL string, recorder Recorder, save SaveFunc, logger zerolog.Logger) *Tracker {
	return &Tracker{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{},
		recorder: recorder,
		save:     save,
		logger:   logger.With().Str("component", "transfer").Logger(),
	}
}

// SetReporter attaches a progress reporter.
func (tr *Tracker) SetReporter(r Reporter) {
	tr.reporter = r
}

// SetHTTPClient overrides the HTTP client, mainly for tests.
func (tr *Tracker) SetHTTPClient(c *http.Client) {
	tr.client = c
}

// Download runs one transfer to a terminal state. It returns a Result on
// completion; on cancellation or failure the error describes the terminal
// state and a matching history entry has already been recorded.
func (tr *Tracker) Download(ctx context.Context, req Request) (*Result, error) {
	tr.mu.Lock()
	if tr.active {
		tr.mu.Unlock()
		return nil, ErrTransferActive
	}
	tr.active = true
	tr.mu.Unlock()
	defer func() {
		tr.mu.Lock()
		tr.active = false
		tr.mu.Unlock()
	}()

	task := &Task{
		ID:         uuid.NewString(),
		State:      StateRequesting,
		TotalBytes: -1,
		Filename:   "download",
	}
	retryHref := req.Path()

	if tr.reporter != nil {
		tr.reporter.Started(task.ID, req.SourceURL)
	}

	result, err := tr.run(ctx, task, req, retryHref)

	if task.State.IsTerminal() {
		tr.record(task, terminalStatus(task.State), retryHref)
	}
	if tr.reporter != nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		tr.reporter.Finished(task.ID, task.State, msg)
	}
	return result, err
}

// terminalStatus maps a terminal task state onto its history status.
func terminalStatus(s State) history.Status {
	switch s {
	case StateCancelled:
		return history.StatusCancel
	case StateFailed:
		return history.StatusError
	default:
		return history.StatusOK
	}
}

// run executes the state machine body. It sets task.State to the terminal
// state before returning; recording happens in Download so exactly one
// entry is appended per terminal transition.
func (tr *Tracker) run(ctx context.Context, task *Task, req Request, path string) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, tr.baseURL+path, nil)
	if err != nil {
		task.State = StateFailed
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := tr.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			task.State = StateCancelled
			return nil, ctx.Err()
		}
		task.State = StateFailed
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		task.State = StateFailed
		return nil, tr.readErrorResponse(resp)
	}

	// Response accepted: enter Streaming.
	task.State = StateStreaming
	if resp.ContentLength > 0 {
		task.TotalBytes = resp.ContentLength
	}
	task.Filename = dispositionFilename(resp.Header.Get("Content-Disposition"))
	task.MIMEType = resp.Header.Get("Content-Type")
	if task.MIMEType == "" {
		task.MIMEType = "application/octet-stream"
	}

	var assembled bytes.Buffer
	chunk := make([]byte, readChunkSize)
	for {
		// Cancellation is observed here, at the read boundary.
		if ctx.Err() != nil {
			task.State = StateCancelled
			return nil, ctx.Err()
		}

		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			assembled.Write(chunk[:n])
			task.ReceivedBytes += int64(n)
			if tr.reporter != nil {
				tr.reporter.Progress(task.ID, task.ReceivedBytes, task.TotalBytes, task.Percent())
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				task.State = StateCancelled
				return nil, ctx.Err()
			}
			task.State = StateFailed
			return nil, fmt.Errorf("read stream: %w", readErr)
		}
	}

	savedPath := ""
	if tr.save != nil {
		savedPath, err = tr.save(task.Filename, task.MIMEType, assembled.Bytes())
		if err != nil {
			task.State = StateFailed
			return nil, err
		}
	}

	task.State = StateCompleted
	tr.logger.Info().Str("file", task.Filename).Int64("bytes", task.ReceivedBytes).Msg("transfer completed")
	return &Result{
		Filename:  task.Filename,
		MIMEType:  task.MIMEType,
		SizeBytes: task.ReceivedBytes,
		SavedPath: savedPath,
	}, nil
}

// record appends the history entry for a terminal transition. Cancelled
// transfers keep whatever metadata was known at cancellation time; a hard
// cancel before any bytes records no replay reference.
func (tr *Tracker) record(task *Task, status history.Status, retryHref string) {
	if tr.recorder == nil {
		return
	}
	input := history.CreateInput{
		Name:      task.Filename,
		SizeBytes: task.ReceivedBytes,
		MIMEType:  task.MIMEType,
		Status:    status,
		RetryHref: retryHref,
	}
	if status == history.StatusCancel && task.ReceivedBytes == 0 {
		input.RetryHref = ""
	}
	if _, err := tr.recorder.Append(context.Background(), input); err != nil {
		tr.logger.Warn().Err(err).Msg("failed to record history entry")
	}
}

// readErrorResponse turns a non-success response into an error carrying the
// server's message when one is present.
func (tr *Tracker) readErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return fmt.Errorf("server returned %s: %s", resp.Status, msg)
}

// dispositionFilename extracts the suggested filename from a
// Content-Disposition header, falling back to a generic name when the
// header is absent or malformed.
func dispositionFilename(header string) string {
	if header == "" {
		return "download"
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "download"
	}
	if name := params["filename"]; name != "" {
		return sanitizeFilename(name)
	}
	return "download"
}
