package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"

	"github.com/bdougie/firewatch/internal/alert"
	"github.com/bdougie/firewatch/internal/analyzer"
	"github.com/bdougie/firewatch/internal/config"
	"github.com/bdougie/firewatch/internal/display"
	"github.com/bdougie/firewatch/internal/framestore"
	"github.com/bdougie/firewatch/internal/mailer"
	"github.com/bdougie/firewatch/internal/metrics"
	"github.com/bdougie/firewatch/internal/monitor"
	"github.com/bdougie/firewatch/internal/pipeline"
	"github.com/bdougie/firewatch/internal/source"
	"github.com/bdougie/firewatch/internal/storage"
	"github.com/bdougie/firewatch/internal/tasks"
)

// loadConfig layers command line flags over the file and environment config
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("video") {
		cfg.Video.Source = c.String("video")
	}
	if c.IsSet("backend") {
		cfg.Video.Backend = c.String("backend")
	}
	if c.IsSet("interval") {
		cfg.SampleIntervalSeconds = c.Int("interval")
	}
	if c.IsSet("locality") {
		cfg.Locality = c.String("locality")
	}
	if c.Bool("headless") {
		cfg.Display.Enabled = false
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Configure logger
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      parseLevel(cfg.LogLevel),
			TimeFormat: "15:04:05",
		}),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer srv.Close()
	}

	recorder, closeHistory, err := openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	vision, err := analyzer.NewOllamaService(ctx, analyzer.OllamaConfig{
		BaseURL: cfg.Vision.BaseURL,
		Port:    cfg.Vision.Port,
		Model:   cfg.Vision.Model,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vision service: %w", err)
	}

	transport := mailer.New(mailer.Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Sender,
		Password: cfg.Email.Credential,
		Timeout:  cfg.Email.Timeout,
	})
	dispatcher := alert.NewDispatcher(transport, cfg.Email.Sender, cfg.Email.Recipient, logger)

	store, err := framestore.New(cfg.FrameArtifactPath, cfg.JPEGQuality)
	if err != nil {
		return err
	}

	spawner := tasks.NewSpawner(ctx, cfg.Analysis.MaxConcurrent, logger)
	runner := pipeline.NewRunner(
		store,
		analyzer.NewWorker(vision, cfg.Locality, logger),
		dispatcher,
		logger,
		pipeline.WithSpawner(spawner),
		pipeline.WithRecorder(recorder),
		pipeline.WithTimeout(cfg.Analysis.Timeout),
		pipeline.WithSourceName(source.Name(cfg.Video.Source)),
	)

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}

	var view monitor.Display = display.Headless{}
	if cfg.Display.Enabled {
		view = display.NewWindow(cfg.Display.Title)
	}

	opts := []monitor.Option{monitor.WithDisplay(view)}
	if fps := frameRate(src); fps > 0 {
		opts = append(opts, monitor.WithFrameRate(fps))
		logger.Debug("pacing playback", "fps", fps)
	}
	loop := monitor.NewLoop(store, runner, cfg.SampleInterval(), cfg.DisplaySize(), logger, opts...)

	logger.Info("monitoring started",
		"source", source.Name(cfg.Video.Source),
		"backend", cfg.Video.Backend,
		"interval", cfg.SampleInterval(),
		"locality", cfg.Locality)

	runErr := loop.Run(ctx, src)

	drainTasks(spawner, cfg.ShutdownGrace, logger)

	if err := recorder.Flush(); err != nil {
		logger.Warn("failed to flush history", "error", err)
	}
	return runErr
}

// drainTasks waits up to grace for running analyses. With no grace they are
// abandoned. It reports whether every analysis finished.
func drainTasks(spawner *tasks.Spawner, grace time.Duration, logger *slog.Logger) bool {
	if grace <= 0 {
		return spawner.Running() == 0
	}

	logger.Info("waiting for running analyses", "count", spawner.Running(), "grace", grace)
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := spawner.Wait(ctx); err != nil {
		logger.Warn("analyses still running at exit", "count", spawner.Running())
		return false
	}
	return true
}

// frameRate reports the playback rate of recorded sources, 0 when the source
// paces itself
func frameRate(src monitor.Source) float64 {
	if r, ok := src.(interface{ FrameRate() float64 }); ok {
		return r.FrameRate()
	}
	return 0
}

func openSource(ctx context.Context, cfg *config.Config) (monitor.Source, error) {
	if cfg.Video.Backend == source.BackendFFmpeg {
		src, err := source.OpenFFmpeg(ctx, cfg.Video.Source)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	src, err := source.OpenCapture(cfg.Video.Source)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// openHistory builds the configured recorders. The returned func closes them.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Recorder, func(), error) {
	var recorders storage.Multi
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.History.DSN != "" {
		pg, err := storage.NewPostgresRecorder(ctx, cfg.History.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history database: %w", err)
		}
		recorders = append(recorders, pg)
		closers = append(closers, pg.Close)
		logger.Info("recording history to postgres")
	}
	if cfg.History.JournalPath != "" {
		journal, err := storage.NewJournal(cfg.History.JournalPath)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		recorders = append(recorders, journal)
		logger.Info("recording history to journal", "path", cfg.History.JournalPath)
	}

	switch len(recorders) {
	case 0:
		return storage.Nop{}, closeAll, nil
	case 1:
		return recorders[0], closeAll, nil
	default:
		return recorders, closeAll, nil
	}
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
