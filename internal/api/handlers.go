package api

import (
	"errors"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fetchbox/fetchbox/internal/config"
	"github.com/fetchbox/fetchbox/internal/format"
	"github.com/fetchbox/fetchbox/internal/pipeline"
)

// infoResponse is the catalog payload for a metadata lookup.
type infoResponse struct {
	Title           string            `json:"title"`
	DurationSeconds float64           `json:"durationSeconds,omitempty"`
	Thumbnail       string            `json:"thumbnail,omitempty"`
	Formats         []format.Encoding `json:"formats"`
}

// getInfo handles GET /api/info?url=.
func (s *Server) getInfo(c echo.Context) error {
	sourceURL := c.QueryParam("url")
	if err := validateSourceURL(sourceURL); err != nil {
		// Rejected before any process is spawned.
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	catalog, err := s.runner.Probe(c.Request().Context(), sourceURL)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(http.StatusOK, infoResponse{
		Title:           catalog.Title,
		DurationSeconds: catalog.Duration.Seconds(),
		Thumbnail:       catalog.Thumbnail,
		Formats:         catalog.Formats,
	})
}

// getDownload handles GET /api/download. Two shapes are accepted:
// url+audio=mp3 for the audio-only pipeline, and
// url+encodingId+container+hasAudio for a negotiated download.
func (s *Server) getDownload(c echo.Context) error {
	sourceURL := c.QueryParam("url")
	if err := validateSourceURL(sourceURL); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	ctx := c.Request().Context()

	if strings.EqualFold(c.QueryParam("audio"), "mp3") {
		outcome, err := s.runner.FetchAudioMP3(ctx, sourceURL)
		if err != nil {
			return s.pipelineError(c, err)
		}
		return s.streamer.Stream(c, outcome)
	}

	req := format.Request{
		EncodingID: c.QueryParam("encodingId"),
		Container:  strings.ToLower(c.QueryParam("container")),
		WantsAudio: strings.EqualFold(c.QueryParam("hasAudio"), "true"),
	}
	expr := format.Negotiate(req)

	outcome, err := s.runner.Fetch(ctx, expr, req.Container, sourceURL)
	if err != nil {
		return s.pipelineError(c, err)
	}
	return s.streamer.Stream(c, outcome)
}

// validateSourceURL rejects missing URLs and batch/playlist markers.
func validateSourceURL(sourceURL string) error {
	if sourceURL == "" || strings.Contains(sourceURL, "list=") {
		return errors.New("only individual video URLs accepted")
	}
	return nil
}

// pipelineError maps pipeline failures to the client-facing error envelope.
// The primary message always renders on its own; diagnostics ride along as
// optional fields.
func (s *Server) pipelineError(c echo.Context, err error) error {
	var startErr *pipeline.StartError
	var runErr *pipeline.RunError
	var parseErr *pipeline.ParseError

	switch {
	case errors.As(err, &startErr):
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":   "could not start the " + string(startErr.Stage) + " tool",
			"details": startErr.Err.Error(),
		})
	case errors.As(err, &runErr):
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":  "the " + string(runErr.Stage) + " tool failed",
			"code":   runErr.Code,
			"stderr": runErr.Stderr,
		})
	case errors.As(err, &parseErr):
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":   "failed to process the source metadata",
			"details": strings.TrimSpace(parseErr.Stderr + "\n" + parseErr.Stdout),
		})
	case errors.Is(err, format.ErrNoUsableEncodings):
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "no usable video or audio encodings found for this source",
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":   "download failed",
			"details": err.Error(),
		})
	}
}

// getHealth handles GET /api/health?verbose=.
func (s *Server) getHealth(c echo.Context) error {
	verbose := c.QueryParam("verbose")
	if verbose != "1" && !strings.EqualFold(verbose, "true") {
		return c.JSON(http.StatusOK, map[string]any{"ok": true})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":        true,
		"version":   config.Version,
		"port":      s.cfg.Server.Port,
		"pid":       os.Getpid(),
		"platform":  runtime.GOOS,
		"tools":     s.resolver.Verify(),
		"wsClients": s.hub.ClientCount(),
		"cors": map[string]any{
			"allowedOrigins": s.cfg.Server.AllowedOrigins,
			"note":           "null origins and any loopback port are also accepted",
		},
	})
}
