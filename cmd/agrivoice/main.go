package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"agrivoice/config"
	"agrivoice/internal/application"
	"agrivoice/internal/infra/agrivoice"
	"agrivoice/internal/infra/audio"
	"agrivoice/internal/infra/httpapi"
	"agrivoice/internal/infra/openai"
	"agrivoice/internal/infra/prefs"
	"agrivoice/internal/infra/pushover"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	timeout, err := time.ParseDuration(cfg.API.Timeout)
	if err != nil {
		logger.Warn("invalid api timeout, using default", "error", err, "value", cfg.API.Timeout)
		timeout = 60 * time.Second
	}

	backend := agrivoice.NewClient(cfg.API.BaseURL, timeout)

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := backend.Health(healthCtx); err != nil {
		logger.Warn("backend not reachable, continuing", "base_url", cfg.API.BaseURL, "error", err)
	}
	healthCancel()

	var notifier application.Notifier
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	} else {
		notifier = &application.NoopNotifier{}
	}

	board := httpapi.NewBoard(logger)

	ctrl := application.NewController(application.Dependencies{
		Capture:     createCaptureSource(cfg.Capture, logger),
		Transcriber: createTranscriber(cfg, backend),
		Store:       backend,
		Presenter:   board,
		Notifier:    notifier,
		Preferences: prefs.NewFileStore(cfg.Preferences.Path),
	}, cfg.Farmer.Mobile, logger)
	defer ctrl.Close()

	server := httpapi.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, ctrl, board, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("starting control API", "error", err)
		os.Exit(1)
	}
	ctrl.Reset()

	logger.Info("starting agrivoice",
		"capture_source", cfg.Capture.Source,
		"variant", cfg.API.Variant,
		"language", ctrl.Language(),
	)

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		logger.Error("stopping control API", "error", err)
	}
}

func createCaptureSource(cfg config.CaptureConfig, logger *slog.Logger) application.CaptureSource {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FileDir, cfg.SampleRate)
	case "microphone":
		return audio.NewMicrophoneSource(cfg.SampleRate, cfg.MaxSeconds, logger)
	default:
		logger.Warn("unknown capture source, using microphone", "source", cfg.Source)
		return audio.NewMicrophoneSource(cfg.SampleRate, cfg.MaxSeconds, logger)
	}
}

func createTranscriber(cfg *config.Config, backend *agrivoice.Client) application.Transcriber {
	switch cfg.API.Variant {
	case "two_step":
		return application.NewTwoStepTranscriber(backend, backend)
	case "whisper":
		whisper := openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		return application.NewTwoStepTranscriber(whisper, backend)
	default:
		return backend
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	if cfg.Dir != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "agrivoice.log"),
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
