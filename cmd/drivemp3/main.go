package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pixiee/drivemp3/internal/bot"
	"github.com/pixiee/drivemp3/internal/config"
	"github.com/pixiee/drivemp3/internal/drive"
	"github.com/pixiee/drivemp3/internal/logging"
	"github.com/pixiee/drivemp3/internal/pipeline"
	"github.com/pixiee/drivemp3/internal/transcode"
)

func main() {
	cfg := config.MustLoad()

	log := logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: cfg.LogJSON,
	})
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("bot stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	fetcher, err := drive.NewAPIFetcher(ctx, cfg.GoogleCredentialsFile, cfg.WorkDir, log)
	if err != nil {
		return fmt.Errorf("create drive fetcher: %w", err)
	}

	transcoder := transcode.New(log)
	if !transcoder.Available() {
		log.Warn("ffmpeg, ffprobe or lame not found in PATH; conversions will fail")
	}

	b, err := bot.New(bot.Config{
		Token:             cfg.TelegramBotToken,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		Debug:             cfg.Debug,
	}, log)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Config{
		Fetcher:     fetcher,
		Transcoder:  transcoder,
		Gateway:     b,
		Logger:      log,
		BitrateKbps: cfg.BitrateKbps,
	})

	log.Info("bot is running",
		slog.String("work_dir", cfg.WorkDir),
		slog.Int("bitrate_kbps", cfg.BitrateKbps),
		slog.Int64("max_concurrent_jobs", cfg.MaxConcurrentJobs),
	)
	return b.Run(ctx, p)
}
