package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fetchbox/fetchbox/internal/testutil"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func TestJanitor_SweepRemovesOnlyStaleArtifacts(t *testing.T) {
	dir := t.TempDir()

	stale := writeAged(t, dir, "fetchbox-1-abc.mp4", 48*time.Hour)
	fresh := writeAged(t, dir, "fetchbox-2-def.mp3", time.Minute)
	foreign := writeAged(t, dir, "unrelated.txt", 48*time.Hour)

	j := New(dir, 24*time.Hour, testutil.NopLogger())
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale artifact survived the sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh artifact was removed")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("unrelated file was removed")
	}
}

func TestJanitor_SweepIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "fetchbox-subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stamp := time.Now().Add(-48 * time.Hour)
	os.Chtimes(sub, stamp, stamp)

	j := New(dir, 24*time.Hour, testutil.NopLogger())
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if _, err := os.Stat(sub); err != nil {
		t.Error("directory was removed, want it left alone")
	}
}

func TestJanitor_SweepHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "fetchbox-1-abc.mp4", 48*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := New(dir, 24*time.Hour, testutil.NopLogger())
	if err := j.Sweep(ctx); err != context.Canceled {
		t.Errorf("Sweep() error = %v, want context.Canceled", err)
	}
}
