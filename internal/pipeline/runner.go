// Package pipeline orchestrates the external extraction and transcoding
// processes: metadata probes, negotiated downloads, and the audio-only
// extract-and-transcode pipe pair.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fetchbox/fetchbox/internal/format"
	"github.com/fetchbox/fetchbox/internal/toolbox"
)

// Outcome is the result of a successful pipeline run. The temp artifact is
// owned by the caller from the moment an Outcome is returned; on any failure
// the runner deletes the artifact itself before returning.
type Outcome struct {
	ArtifactPath string
	ArtifactSize int64
	Ext          string
	Stderr       string
}

// Config controls the runner.
type Config struct {
	// Dir is the staging directory for temp artifacts. Empty means os.TempDir.
	Dir string
	// MaxConcurrent caps simultaneous Fetch/FetchAudioMP3 runs. 0 = no cap.
	MaxConcurrent int
	// AudioBitrate is the MP3 bitrate for audio-only transcodes.
	AudioBitrate string
	// ProbeTimeout bounds metadata lookups. Downloads are bounded only by
	// the request context.
	ProbeTimeout time.Duration
}

// Runner supervises extraction and transcoding processes.
type Runner struct {
	cfg      Config
	resolver *toolbox.Resolver
	logger   zerolog.Logger
	slots    chan struct{}
}

// NewRunner creates a runner.
func NewRunner(cfg Config, resolver *toolbox.Resolver, logger zerolog.Logger) *Runner {
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = "320k"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 60 * time.Second
	}
	r := &Runner{
		cfg:      cfg,
		resolver: resolver,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
	if cfg.MaxConcurrent > 0 {
		r.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return r
}

// ArtifactPrefix is the temp-file name prefix shared with the janitor.
const ArtifactPrefix = "fetchbox-"

// stagingDir returns where temp artifacts live.
func (r *Runner) stagingDir() string {
	if r.cfg.Dir != "" {
		return r.cfg.Dir
	}
	return os.TempDir()
}

// artifactPath builds a collision-safe temp path for a new artifact.
func (r *Runner) artifactPath(ext string) string {
	name := fmt.Sprintf("%s%d-%s.%s", ArtifactPrefix, time.Now().UnixNano(), uuid.NewString()[:8], ext)
	return filepath.Join(r.stagingDir(), name)
}

// acquire takes a concurrency slot, honoring context cancellation.
func (r *Runner) acquire(ctx context.Context) (release func(), err error) {
	if r.slots == nil {
		return func() {}, nil
	}
	select {
	case r.slots <- struct{}{}:
		return func() { <-r.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Probe invokes the extractor in metadata-only mode and returns the
// filtered encoding catalog.
func (r *Runner) Probe(ctx context.Context, sourceURL string) (*format.Catalog, error) {
	extractor, err := r.resolver.Resolve(toolbox.Extractor)
	if err != nil {
		return nil, &StartError{Stage: StageExtractor, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, extractor, "-J", "--no-warnings", "--no-progress", sourceURL)
	var stdout bytes.Buffer
	stderr := newBoundedBuffer(maxStderrBytes)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	r.logger.Debug().Str("url", sourceURL).Msg("probing source")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &RunError{Stage: StageExtractor, Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, &StartError{Stage: StageExtractor, Err: err}
	}

	catalog, err := format.ParseCatalog(extractJSON(stdout.Bytes()))
	if err != nil {
		if errors.Is(err, format.ErrNoUsableEncodings) {
			return nil, err
		}
		return nil, &ParseError{Err: err, Stdout: stdout.String(), Stderr: stderr.String()}
	}
	return catalog, nil
}

// extractJSON trims any noise the extractor printed around the metadata
// document, keeping the outermost brace-delimited slice.
func extractJSON(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	first := bytes.IndexByte(trimmed, '{')
	last := bytes.LastIndexByte(trimmed, '}')
	if first == -1 || last == -1 || last <= first {
		return trimmed
	}
	return trimmed[first : last+1]
}

// Fetch invokes the extractor with a negotiated expression, writing to a
// temp artifact. Container merging is delegated to the transcoder via the
// extractor's own merge support.
func (r *Runner) Fetch(ctx context.Context, expr format.Expression, requestedExt, sourceURL string) (*Outcome, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	extractor, err := r.resolver.Resolve(toolbox.Extractor)
	if err != nil {
		return nil, &StartError{Stage: StageExtractor, Err: err}
	}
	transcoder, err := r.resolver.Resolve(toolbox.Transcoder)
	if err != nil {
		return nil, &StartError{Stage: StageTranscoder, Err: err}
	}

	finalExt := expr.FinalExt(requestedExt)
	outPath := r.artifactPath(finalExt)

	args := []string{"-f", expr.Selector(), "-o", outPath, "--no-progress", "--ffmpeg-location", transcoder}
	if expr.NeedsMerge() {
		args = append(args, "--merge-output-format", expr.Container())
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, extractor, args...)
	stderr := newBoundedBuffer(maxStderrBytes)
	cmd.Stderr = stderr

	r.logger.Info().Str("url", sourceURL).Str("selector", expr.Selector()).Str("out", outPath).Msg("starting download")

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Error().Int("code", exitErr.ExitCode()).Str("url", sourceURL).Msg("extractor failed")
			return nil, &RunError{Stage: StageExtractor, Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, &StartError{Stage: StageExtractor, Err: err}
	}

	info, err := os.Stat(outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	return &Outcome{
		ArtifactPath: outPath,
		ArtifactSize: info.Size(),
		Ext:          finalExt,
		Stderr:       stderr.String(),
	}, nil
}

// FetchAudioMP3 pipes the extractor's best-audio stream into the transcoder
// and produces an MP3 artifact. Both exit statuses are supervised
// independently; either one failing fails the request, so partial output is
// never served.
func (r *Runner) FetchAudioMP3(ctx context.Context, sourceURL string) (*Outcome, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	extractor, err := r.resolver.Resolve(toolbox.Extractor)
	if err != nil {
		return nil, &StartError{Stage: StageExtractor, Err: err}
	}
	transcoder, err := r.resolver.Resolve(toolbox.Transcoder)
	if err != nil {
		return nil, &StartError{Stage: StageTranscoder, Err: err}
	}

	outPath := r.artifactPath("mp3")

	extract := exec.CommandContext(ctx, extractor, "-f", format.BestAudio, "-o", "-", "--no-progress", sourceURL)
	transcode := exec.CommandContext(ctx, transcoder,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", r.cfg.AudioBitrate,
		"-y", outPath,
	)

	extractErr := newBoundedBuffer(maxStderrBytes)
	transcodeErr := newBoundedBuffer(maxStderrBytes)
	extract.Stderr = extractErr
	transcode.Stderr = transcodeErr

	// The OS pipe provides the backpressure: a slow transcoder throttles the
	// extractor, and no media byte is buffered in this process.
	audioStream, err := extract.StdoutPipe()
	if err != nil {
		return nil, &StartError{Stage: StageExtractor, Err: err}
	}
	transcode.Stdin = audioStream

	if err := extract.Start(); err != nil {
		return nil, &StartError{Stage: StageExtractor, Err: err}
	}
	if err := transcode.Start(); err != nil {
		extract.Process.Kill()
		extract.Wait()
		return nil, &StartError{Stage: StageTranscoder, Err: err}
	}

	r.logger.Info().Str("url", sourceURL).Str("out", outPath).Msg("starting audio-only pipeline")

	extractExit := supervise(extract)
	transcodeExit := supervise(transcode)

	// Join both waits: the pair moves bothRunning -> oneExited -> bothExited
	// and only the joined result decides success.
	extractRes := <-extractExit
	transcodeRes := <-transcodeExit

	if failure := r.joinPipeline(extractRes, transcodeRes, extractErr.String(), transcodeErr.String()); failure != nil {
		os.Remove(outPath)
		return nil, failure
	}

	info, err := os.Stat(outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	combined := strings.TrimSpace(extractErr.String() + "\n" + transcodeErr.String())
	return &Outcome{
		ArtifactPath: outPath,
		ArtifactSize: info.Size(),
		Ext:          "mp3",
		Stderr:       combined,
	}, nil
}

type exitResult struct {
	code int
	err  error
}

// supervise waits for a started process on its own goroutine and reports
// the exit over a channel.
func supervise(cmd *exec.Cmd) <-chan exitResult {
	ch := make(chan exitResult, 1)
	go func() {
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ch <- exitResult{code: exitErr.ExitCode()}
			return
		}
		ch <- exitResult{err: err}
	}()
	return ch
}

// joinPipeline reduces the two stage exits to a single failure, or nil when
// both succeeded. The transcoder's status wins when both failed since its
// diagnostics describe the final artifact.
func (r *Runner) joinPipeline(extract, transcode exitResult, extractStderr, transcodeStderr string) error {
	if transcode.code != 0 {
		return &RunError{Stage: StageTranscoder, Code: transcode.code, Stderr: transcodeStderr}
	}
	if extract.code != 0 {
		return &RunError{Stage: StageExtractor, Code: extract.code, Stderr: extractStderr}
	}
	if transcode.err != nil {
		return fmt.Errorf("wait transcoder: %w", transcode.err)
	}
	if extract.err != nil {
		return fmt.Errorf("wait extractor: %w", extract.err)
	}
	return nil
}
