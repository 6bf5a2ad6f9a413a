package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/urfave/cli/v2"

	"github.com/bdougie/firewatch/internal/config"
	"github.com/bdougie/firewatch/internal/models"
	"github.com/bdougie/firewatch/internal/storage"
	"github.com/bdougie/firewatch/internal/tasks"
)

// parse runs the flag set over args and returns the resulting config
func parse(args ...string) (*config.Config, error) {
	var cfg *config.Config
	var loadErr error
	app := &cli.App{
		Name:  "firewatch",
		Flags: flags(),
		Action: func(c *cli.Context) error {
			cfg, loadErr = loadConfig(c)
			return nil
		},
	}
	if err := app.Run(append([]string{"firewatch"}, args...)); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

func TestLoadConfig(t *testing.T) {
	convey.Convey("Given mail settings in the environment", t, func() {
		t.Setenv("FIREWATCH_EMAIL__SENDER", "cam@example.com")
		t.Setenv("FIREWATCH_EMAIL__RECIPIENT", "ops@example.com")
		t.Setenv("FIREWATCH_EMAIL__CREDENTIAL", "app-password")

		convey.Convey("Defaults apply without flags", func() {
			cfg, err := parse()
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.SampleIntervalSeconds, convey.ShouldEqual, 5)
			convey.So(cfg.Display.Enabled, convey.ShouldBeTrue)
			convey.So(cfg.Video.Backend, convey.ShouldEqual, "gocv")
		})

		convey.Convey("Flags override the config", func() {
			cfg, err := parse("--video", "rtsp://cam/stream", "--backend", "ffmpeg",
				"--interval", "10", "--headless", "--locality", "Pune", "--log-level", "debug")
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Video.Source, convey.ShouldEqual, "rtsp://cam/stream")
			convey.So(cfg.Video.Backend, convey.ShouldEqual, "ffmpeg")
			convey.So(cfg.SampleIntervalSeconds, convey.ShouldEqual, 10)
			convey.So(cfg.Display.Enabled, convey.ShouldBeFalse)
			convey.So(cfg.Locality, convey.ShouldEqual, "Pune")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
		})

		convey.Convey("Invalid overrides are rejected", func() {
			_, err := parse("--interval", "0")
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)

			_, err = parse("--backend", "vlc")
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestParseLevel(t *testing.T) {
	convey.Convey("Log levels parse case-insensitively and default to info", t, func() {
		convey.So(parseLevel("DEBUG"), convey.ShouldEqual, slog.LevelDebug)
		convey.So(parseLevel("warning"), convey.ShouldEqual, slog.LevelWarn)
		convey.So(parseLevel("error"), convey.ShouldEqual, slog.LevelError)
		convey.So(parseLevel(""), convey.ShouldEqual, slog.LevelInfo)
		convey.So(parseLevel("loud"), convey.ShouldEqual, slog.LevelInfo)
	})
}

func TestOpenHistory(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		ctx := context.Background()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		cfg := config.New()

		convey.Convey("No history settings means records are discarded", func() {
			rec, closeHistory, err := openHistory(ctx, cfg, logger)
			convey.So(err, convey.ShouldBeNil)
			defer closeHistory()
			convey.So(rec, convey.ShouldHaveSameTypeAs, storage.Nop{})
		})

		convey.Convey("A journal path opens a journal", func() {
			cfg.History.JournalPath = filepath.Join(t.TempDir(), "analysis_results.json")
			rec, closeHistory, err := openHistory(ctx, cfg, logger)
			convey.So(err, convey.ShouldBeNil)
			defer closeHistory()
			convey.So(rec, convey.ShouldHaveSameTypeAs, &storage.Journal{})
		})
	})
}

func TestDrainTasks(t *testing.T) {
	convey.Convey("Given an analysis launched just before shutdown", t, func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		spawner := tasks.NewSpawner(context.Background(), 0, logger)
		finished := make(chan struct{})
		spawner.Spawn("analysis", func(context.Context) {
			time.Sleep(20 * time.Millisecond)
			close(finished)
		})

		convey.Convey("A grace period waits for it to finish", func() {
			convey.So(drainTasks(spawner, time.Second, logger), convey.ShouldBeTrue)
			_, open := <-finished
			convey.So(open, convey.ShouldBeFalse)
		})

		convey.Convey("Without a grace period it is abandoned", func() {
			convey.So(drainTasks(spawner, 0, logger), convey.ShouldBeFalse)
			<-finished
		})
	})
}

type recording struct{ fps float64 }

func (recording) NextFrame(context.Context) (models.Frame, error) { return models.Frame{}, io.EOF }
func (recording) Release() error                                 { return nil }
func (r recording) FrameRate() float64                           { return r.fps }

func TestFrameRate(t *testing.T) {
	convey.Convey("Recorded sources report their rate for pacing", t, func() {
		convey.So(frameRate(recording{fps: 29.97}), convey.ShouldEqual, 29.97)
		convey.So(frameRate(recording{}), convey.ShouldEqual, 0)
	})
}
