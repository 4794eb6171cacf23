package delivery

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/fetchbox/fetchbox/internal/pipeline"
	"github.com/fetchbox/fetchbox/internal/testutil"
)

func TestMIMEType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"mp4", "video/mp4"},
		{"m4a", "audio/mp4"},
		{"webm", "video/webm"},
		{"mkv", "video/x-matroska"},
		{"mp3", "audio/mpeg"},
		{"wav", "audio/wav"},
		{"ogg", "audio/ogg"},
		{"xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := MIMEType(tt.ext); got != tt.want {
			t.Errorf("MIMEType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("mp3"); got != "audio.mp3" {
		t.Errorf("Filename(mp3) = %q, want %q", got, "audio.mp3")
	}
	if got := Filename("mp4"); got != "download.mp4" {
		t.Errorf("Filename(mp4) = %q, want %q", got, "download.mp4")
	}
	if got := Filename("webm"); got != "download.webm" {
		t.Errorf("Filename(webm) = %q, want %q", got, "download.webm")
	}
}

func TestStreamer_Stream(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("finished media artifact")
	path := filepath.Join(dir, "fetchbox-test.mp4")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/download", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	s := NewStreamer(testutil.NopLogger())
	out := &pipeline.Outcome{
		ArtifactPath: path,
		ArtifactSize: int64(len(payload)),
		Ext:          "mp4",
	}

	if err := s.Stream(c, out); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want %q", got, "video/mp4")
	}
	if got := rec.Header().Get(echo.HeaderContentLength); got != strconv.Itoa(len(payload)) {
		t.Errorf("Content-Length = %q, want %d", got, len(payload))
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != `attachment; filename="download.mp4"` {
		t.Errorf("Content-Disposition = %q, want attachment framing", got)
	}
	if rec.Body.String() != string(payload) {
		t.Errorf("body = %q, want the artifact bytes", rec.Body.String())
	}

	// The artifact must be gone once the stream ends.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("artifact still exists after stream: stat err = %v", err)
	}
}

func TestStreamer_StreamMissingArtifact(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/download", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	s := NewStreamer(testutil.NopLogger())
	out := &pipeline.Outcome{ArtifactPath: filepath.Join(t.TempDir(), "gone.mp4"), Ext: "mp4"}

	if err := s.Stream(c, out); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
