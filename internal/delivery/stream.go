// Package delivery exposes finished pipeline artifacts over HTTP with
// correct framing metadata and guaranteed temp-file cleanup.
package delivery

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fetchbox/fetchbox/internal/pipeline"
	"github.com/fetchbox/fetchbox/internal/progress"
)

// mimeByExt maps the final container to a content type. Anything unlisted
// is served as an opaque byte stream.
var mimeByExt = map[string]string{
	"mp4":  "video/mp4",
	"m4a":  "audio/mp4",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
}

// MIMEType returns the content type for a container extension.
func MIMEType(ext string) string {
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Filename returns the attachment filename for a container extension.
func Filename(ext string) string {
	if ext == "mp3" {
		return "audio.mp3"
	}
	return "download." + ext
}

// Streamer delivers artifacts to HTTP clients. Handing an Outcome to Stream
// transfers exclusive cleanup responsibility for the temp file; no other
// component deletes it afterwards.
type Streamer struct {
	logger   zerolog.Logger
	progress *progress.Manager
}

// NewStreamer creates a streamer.
func NewStreamer(logger zerolog.Logger) *Streamer {
	return &Streamer{logger: logger.With().Str("component", "delivery").Logger()}
}

// SetProgress attaches a progress manager so outbound streams broadcast
// live delivery state to websocket clients.
func (s *Streamer) SetProgress(m *progress.Manager) {
	s.progress = m
}

// Stream sends the artifact with attachment framing and an exact content
// length (the file is fully materialized, never chunked-unknown). The temp
// file is removed once the copy ends: on completion, client disconnect, or
// write error alike. Errors before the first byte produce a JSON error
// response; once headers are out the connection simply terminates.
func (s *Streamer) Stream(c echo.Context, out *pipeline.Outcome) error {
	file, err := os.Open(out.ArtifactPath)
	if err != nil {
		os.Remove(out.ArtifactPath)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "failed to open the finished file",
		})
	}
	defer func() {
		file.Close()
		if err := os.Remove(out.ArtifactPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", out.ArtifactPath).Msg("failed to remove artifact")
		}
	}()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", Filename(out.Ext)))
	resp.Header().Set(echo.HeaderContentType, MIMEType(out.Ext))
	resp.Header().Set(echo.HeaderContentLength, strconv.FormatInt(out.ArtifactSize, 10))
	resp.WriteHeader(http.StatusOK)

	var dst io.Writer = resp
	transferID := uuid.NewString()
	if s.progress != nil {
		s.progress.Start(transferID, Filename(out.Ext))
		dst = &progressWriter{
			dst:         resp,
			manager:     s.progress,
			id:          transferID,
			total:       out.ArtifactSize,
			lastPercent: -1,
		}
	}

	if _, err := io.Copy(dst, file); err != nil {
		// Headers are already out; nothing to signal besides closing.
		s.logger.Debug().Err(err).Str("path", out.ArtifactPath).Msg("stream interrupted")
		if s.progress != nil {
			s.progress.Finish(transferID, progress.StatusFailed, err.Error())
		}
		return nil
	}
	if s.progress != nil {
		s.progress.Finish(transferID, progress.StatusCompleted, "")
	}
	return nil
}

// progressWriter broadcasts delivery progress as bytes go out. Updates are
// throttled to whole-percent steps to keep websocket traffic bounded.
type progressWriter struct {
	dst     io.Writer
	manager *progress.Manager
	id      string
	total   int64

	written     int64
	lastPercent int
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.written += int64(n)

	percent := progress.Indeterminate
	if w.total > 0 {
		percent = int(float64(w.written) / float64(w.total) * 100)
		if percent > 100 {
			percent = 100
		}
	}
	if percent == progress.Indeterminate || percent > w.lastPercent {
		w.lastPercent = percent
		w.manager.Update(w.id, w.written, w.total, percent)
	}
	return n, err
}
