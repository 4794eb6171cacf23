// Package toolbox locates the external extraction and transcoding tools and
// guarantees the returned paths are invokable. Packaged application bundles
// may ship binaries read-only or with the executable bit stripped, so
// resolution repairs permissions in place or falls back to a writable copy.
package toolbox

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Kind identifies one of the external tools.
type Kind string

const (
	// Extractor is the tool that queries a source for encodings or downloads one.
	Extractor Kind = "extractor"
	// Transcoder is the tool that re-encodes or remuxes a media stream.
	Transcoder Kind = "transcoder"
)

var (
	// ErrToolNotFound means no candidate directory contained the tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolNotExecutable means permission repair and the temp copy both failed.
	ErrToolNotExecutable = errors.New("tool not executable")
)

// ResolveError describes a failed resolution.
type ResolveError struct {
	Kind     Kind
	Name     string
	Searched []string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s (%s): %v", e.Kind, e.Name, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// ToolStatus describes one tool for diagnostics.
type ToolStatus struct {
	Kind       Kind   `json:"kind"`
	Path       string `json:"path"`
	Exists     bool   `json:"exists"`
	Executable bool   `json:"executable"`
	Error      string `json:"error,omitempty"`
}

// Config controls resolution.
type Config struct {
	// Dir, when non-empty, is searched before the packaged locations.
	Dir string
	// ExtractorName and TranscoderName default to yt-dlp and ffmpeg.
	ExtractorName  string
	TranscoderName string
}

// Resolver locates tool executables for the running platform.
type Resolver struct {
	cfg    Config
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[Kind]string
}

// NewResolver creates a resolver.
func NewResolver(cfg Config, logger zerolog.Logger) *Resolver {
	if cfg.ExtractorName == "" {
		cfg.ExtractorName = "yt-dlp"
	}
	if cfg.TranscoderName == "" {
		cfg.TranscoderName = "ffmpeg"
	}
	return &Resolver{
		cfg:    cfg,
		logger: logger.With().Str("component", "toolbox").Logger(),
		cache:  make(map[Kind]string),
	}
}

// platformDir returns the per-OS subdirectory used by packaged resources.
func platformDir() string {
	switch runtime.GOOS {
	case "windows":
		return "win"
	case "darwin":
		return "mac"
	default:
		return "linux"
	}
}

func (r *Resolver) toolName(kind Kind) string {
	name := r.cfg.ExtractorName
	if kind == Transcoder {
		name = r.cfg.TranscoderName
	}
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}
	return name
}

// candidateDirs returns the ordered list of directories to search.
func (r *Resolver) candidateDirs() []string {
	var dirs []string
	if r.cfg.Dir != "" {
		dirs = append(dirs, r.cfg.Dir)
	}

	plat := platformDir()
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs,
			filepath.Join(cwd, "resources", "bin", plat),
			filepath.Join(cwd, "..", "resources", "bin", plat),
		)
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		dirs = append(dirs,
			filepath.Join(exeDir, "resources", "bin", plat),
			filepath.Join(exeDir, "..", "resources", "bin", plat),
			exeDir,
		)
	}
	return dirs
}

// Resolve returns an invokable path for the given tool.
func (r *Resolver) Resolve(kind Kind) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if path, ok := r.cache[kind]; ok {
		return path, nil
	}

	path, err := r.resolveLocked(kind)
	if err != nil {
		return "", err
	}
	r.cache[kind] = path
	return path, nil
}

// Invalidate drops cached resolutions so the next Resolve searches again.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[Kind]string)
}

func (r *Resolver) resolveLocked(kind Kind) (string, error) {
	name := r.toolName(kind)
	dirs := r.candidateDirs()

	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		path, err := ensureExecutable(candidate)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", candidate).Msg("tool found but could not be made executable")
			return "", &ResolveError{Kind: kind, Name: name, Searched: dirs, Err: ErrToolNotExecutable}
		}
		if path != candidate {
			r.logger.Info().Str("from", candidate).Str("to", path).Msg("using writable tool copy")
		}
		return path, nil
	}

	// Last resort: PATH lookup for development environments.
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", &ResolveError{Kind: kind, Name: name, Searched: dirs, Err: ErrToolNotFound}
}

// ensureExecutable returns a path guaranteed to carry the executable bit.
// Repair order: chmod in place, then a chmod'ed copy in the temp directory.
func ensureExecutable(path string) (string, error) {
	if isExecutable(path) {
		return path, nil
	}

	if err := os.Chmod(path, 0o755); err == nil && isExecutable(path) {
		return path, nil
	}

	copyPath, err := copyToTemp(path)
	if err != nil {
		return "", err
	}
	if err := os.Chmod(copyPath, 0o755); err != nil {
		os.Remove(copyPath)
		return "", err
	}
	if !isExecutable(copyPath) {
		os.Remove(copyPath)
		return "", ErrToolNotExecutable
	}
	return copyPath, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// copyToTemp rewrites the binary into the temp directory. Reading and
// rewriting sidesteps read-only flags on packaged resource files.
func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open tool: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "fetchbox-tool-*-"+filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create tool copy: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("copy tool: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close tool copy: %w", err)
	}
	return dst.Name(), nil
}

// Verify resolves both tools and reports their status for diagnostics.
func (r *Resolver) Verify() []ToolStatus {
	statuses := make([]ToolStatus, 0, 2)
	for _, kind := range []Kind{Extractor, Transcoder} {
		status := ToolStatus{Kind: kind}
		path, err := r.Resolve(kind)
		if err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			continue
		}
		status.Path = path
		_, statErr := os.Stat(path)
		status.Exists = statErr == nil
		status.Executable = isExecutable(path)
		statuses = append(statuses, status)
	}
	return statuses
}
