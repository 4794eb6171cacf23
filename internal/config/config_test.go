package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// An empty directory so no stray config.yaml is picked up.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		t.Error("Server.AllowedOrigins is empty, want dev origins")
	}
	if cfg.Tools.Extractor != "yt-dlp" {
		t.Errorf("Tools.Extractor = %q, want %q", cfg.Tools.Extractor, "yt-dlp")
	}
	if cfg.Tools.Transcoder != "ffmpeg" {
		t.Errorf("Tools.Transcoder = %q, want %q", cfg.Tools.Transcoder, "ffmpeg")
	}
	if cfg.Downloads.MaxConcurrent != 3 {
		t.Errorf("Downloads.MaxConcurrent = %d, want 3", cfg.Downloads.MaxConcurrent)
	}
	if cfg.Downloads.ArtifactTTLHours != 24 {
		t.Errorf("Downloads.ArtifactTTLHours = %d, want 24", cfg.Downloads.ArtifactTTLHours)
	}
	if cfg.Downloads.AudioBitrate != "320k" {
		t.Errorf("Downloads.AudioBitrate = %q, want %q", cfg.Downloads.AudioBitrate, "320k")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FETCHBOX_SERVER_PORT", "5123")
	t.Setenv("FETCHBOX_DOWNLOADS_MAX_CONCURRENT", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 5123 {
		t.Errorf("Server.Port = %d, want env override 5123", cfg.Server.Port)
	}
	if cfg.Downloads.MaxConcurrent != 7 {
		t.Errorf("Downloads.MaxConcurrent = %d, want env override 7", cfg.Downloads.MaxConcurrent)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 6100\ntools:\n  extractor: custom-dlp\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 6100 {
		t.Errorf("Server.Port = %d, want 6100 from file", cfg.Server.Port)
	}
	if cfg.Tools.Extractor != "custom-dlp" {
		t.Errorf("Tools.Extractor = %q, want %q", cfg.Tools.Extractor, "custom-dlp")
	}
	// Unset keys keep their defaults.
	if cfg.Tools.Transcoder != "ffmpeg" {
		t.Errorf("Tools.Transcoder = %q, want default %q", cfg.Tools.Transcoder, "ffmpeg")
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 4000}
	if got := cfg.Address(); got != "127.0.0.1:4000" {
		t.Errorf("Address() = %q, want %q", got, "127.0.0.1:4000")
	}
}

func TestFindAvailablePort(t *testing.T) {
	// Occupy a port, then ask for it: the next one up must come back.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	port, err := FindAvailablePort(busy, 10)
	if err != nil {
		t.Fatalf("FindAvailablePort() error = %v", err)
	}
	if port == busy {
		t.Errorf("FindAvailablePort() = %d, want a port other than the busy one", port)
	}
	if port < busy || port >= busy+10 {
		t.Errorf("FindAvailablePort() = %d, want within [%d,%d)", port, busy, busy+10)
	}
}
