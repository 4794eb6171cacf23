package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fetchbox/fetchbox/internal/api"
	"github.com/fetchbox/fetchbox/internal/config"
	"github.com/fetchbox/fetchbox/internal/database"
	"github.com/fetchbox/fetchbox/internal/janitor"
	"github.com/fetchbox/fetchbox/internal/logger"
	"github.com/fetchbox/fetchbox/internal/scheduler"
	"github.com/fetchbox/fetchbox/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Override the configured server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting fetchbox")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// The configured port may be held by a stale instance; probe upward so the
	// server still comes up, and report the real port via /api/health.
	configuredPort := cfg.Server.Port
	actualPort, err := config.FindAvailablePort(cfg.Server.Port, 10)
	if err != nil {
		log.Fatal().Err(err).Int("configuredPort", configuredPort).Msg("failed to find available port")
	}
	if actualPort != configuredPort {
		log.Warn().
			Int("configuredPort", configuredPort).
			Int("actualPort", actualPort).
			Msg("configured port in use, using alternative port")
		cfg.Server.Port = actualPort
	}

	hub := websocket.NewHub()
	go hub.Run()

	server := api.NewServer(db.Conn(), hub, cfg, log.WithComponent("api").Logger)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	ttl := time.Duration(cfg.Downloads.ArtifactTTLHours) * time.Hour
	sweep := janitor.New(cfg.Downloads.Dir, ttl, log.Logger)
	err = sched.RegisterTask(scheduler.TaskConfig{
		ID:         "artifact-sweep",
		Name:       "Stale artifact sweep",
		Cron:       "0 * * * *",
		Func:       sweep.Sweep,
		RunOnStart: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register janitor task")
	}
	sched.Start()

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
