package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"notesbot/internal/bot"
	"notesbot/internal/config"
	"notesbot/internal/pipeline"
	"notesbot/internal/scheduler"
	"notesbot/internal/source"
	"notesbot/internal/storage"
)

const fetchRetries = 2

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	client := &http.Client{Timeout: 30 * time.Second}
	adapters := newAdapters(client, cfg)

	pipe := pipeline.New(store, adapters, log)

	b, err := bot.New(cfg.TelegramBotToken, store, pipe, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(store, pipe, b, log)
	sched.SetTickInterval(cfg.Scheduler.ParseTick())
	sched.SetConcurrency(cfg.Scheduler.Concurrency)
	sched.SetFailureThreshold(cfg.Scheduler.FailureThreshold)
	sched.SetLookback(cfg.Scheduler.ParseLookback())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot")

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

// newAdapters builds the platform registry. Every adapter retries transient
// failures a couple of times before the failure reaches the scheduler.
func newAdapters(client source.HTTPClient, cfg *config.Config) source.Registry {
	wrap := func(a source.Adapter) source.Adapter {
		return source.WithRetry(a, fetchRetries)
	}
	return source.NewRegistry(
		wrap(source.NewTelegramChannel(client)),
		wrap(source.NewTwitter(client, cfg.Sources.NitterURL)),
		wrap(source.NewReddit(client)),
		wrap(source.NewYouTube(client)),
		wrap(source.NewVK(client, cfg.Sources.VKToken)),
		wrap(source.NewWeb(client)),
		wrap(source.NewRSS(client)),
	)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
