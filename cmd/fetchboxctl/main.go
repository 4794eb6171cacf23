// fetchboxctl drives downloads against a running fetchbox server from the
// command line. It shares the server's history database so completed,
// failed, and cancelled transfers all land in the same capped record the
// web UI shows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fetchbox/fetchbox/internal/config"
	"github.com/fetchbox/fetchbox/internal/database"
	"github.com/fetchbox/fetchbox/internal/history"
	"github.com/fetchbox/fetchbox/internal/logger"
	"github.com/fetchbox/fetchbox/internal/transfer"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	server := flag.String("server", "", "Server base URL (default http://127.0.0.1:<configured port>)")
	sourceURL := flag.String("url", "", "Source media URL (required)")
	encodingID := flag.String("encoding", "", "Encoding id from a prior info lookup (default best)")
	container := flag.String("container", "", "Requested container, e.g. mp4 or webm")
	hasAudio := flag.Bool("has-audio", false, "Chosen encoding already carries audio")
	audioMP3 := flag.Bool("mp3", false, "Download audio only, transcoded to MP3")
	outDir := flag.String("out", ".", "Directory to save the download into")
	flag.Parse()

	if *sourceURL == "" {
		fmt.Fprintln(os.Stderr, "error: -url is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	baseURL := *server
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer log.Close()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open history database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to migrate history database: %v\n", err)
		os.Exit(1)
	}

	recorder := history.NewService(db.Conn(), log.Logger)
	tracker := transfer.NewTracker(baseURL, recorder, transfer.DirSaver(*outDir), log.Logger)
	tracker.SetReporter(&consoleReporter{})

	// Ctrl-C cancels the in-flight transfer; the tracker records the cancel.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := tracker.Download(ctx, transfer.Request{
		SourceURL:  *sourceURL,
		EncodingID: *encodingID,
		Container:  *container,
		HasAudio:   *hasAudio,
		AudioMP3:   *audioMP3,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "\ndownload failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nsaved %s to %s\n", result, result.SavedPath)
}

// consoleReporter renders progress on a single rewritten line.
type consoleReporter struct{}

func (r *consoleReporter) Started(taskID, name string) {
	fmt.Printf("requesting %s\n", name)
}

func (r *consoleReporter) Progress(taskID string, received, total int64, percent int) {
	if percent < 0 {
		fmt.Printf("\rreceived %d bytes", received)
		return
	}
	fmt.Printf("\rreceived %d / %d bytes (%d%%)", received, total, percent)
}

func (r *consoleReporter) Finished(taskID string, state transfer.State, errMsg string) {
	if errMsg != "" {
		fmt.Printf("\r%s: %s\n", state, errMsg)
		return
	}
	fmt.Printf("\r%s\n", state)
}
