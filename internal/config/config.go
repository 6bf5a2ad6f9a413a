// Package config defines the monitor configuration and how it is loaded.
package config

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// SampleIntervalSeconds is the minimum time between two analysis triggers.
	SampleIntervalSeconds int `koanf:"sample_interval_seconds"`

	// FrameArtifactPath is where the current sample is written.
	FrameArtifactPath string `koanf:"frame_artifact_path"`

	// JPEGQuality of the sample artifact, 1-100.
	JPEGQuality int `koanf:"jpeg_quality"`

	// Locality names where emergency contacts should come from.
	Locality string `koanf:"locality"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// ShutdownGrace is how long to wait for running analyses at exit.
	// Zero abandons them.
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`

	Display  DisplayConfig  `koanf:"display"`
	Video    VideoConfig    `koanf:"video"`
	Email    EmailConfig    `koanf:"email"`
	Vision   VisionConfig   `koanf:"vision"`
	Analysis AnalysisConfig `koanf:"analysis"`
	History  HistoryConfig  `koanf:"history"`
}

// DisplayConfig controls the preview window.
type DisplayConfig struct {
	Enabled bool   `koanf:"enabled"`
	Width   int    `koanf:"width"`
	Height  int    `koanf:"height"`
	Title   string `koanf:"title"`
}

// VideoConfig selects the video source.
type VideoConfig struct {
	// Source is a file path, stream URL, or camera index.
	Source string `koanf:"source"`
	// Backend is "gocv" or "ffmpeg".
	Backend string `koanf:"backend"`
}

// EmailConfig holds alert mail settings.
type EmailConfig struct {
	Sender     string        `koanf:"sender"`
	Recipient  string        `koanf:"recipient"`
	Credential string        `koanf:"credential"`
	SMTPHost   string        `koanf:"smtp_host"`
	SMTPPort   int           `koanf:"smtp_port"`
	Timeout    time.Duration `koanf:"timeout"`
}

// VisionConfig points at the Ollama server.
type VisionConfig struct {
	BaseURL string `koanf:"base_url"`
	Port    int    `koanf:"port"`
	Model   string `koanf:"model"`
}

// AnalysisConfig bounds background analysis.
type AnalysisConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	// MaxConcurrent caps live analyses; 0 means unbounded.
	MaxConcurrent int `koanf:"max_concurrent"`
}

// HistoryConfig selects where analysis history goes. Both may be empty.
type HistoryConfig struct {
	DSN         string `koanf:"dsn"`
	JournalPath string `koanf:"journal_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		SampleIntervalSeconds: 5,
		FrameArtifactPath:     "latest_frame.jpg",
		JPEGQuality:           90,
		Locality:              "Mumbai, Maharashtra",
		LogLevel:              "info",
		Display: DisplayConfig{
			Enabled: true,
			Width:   1020,
			Height:  500,
			Title:   "Fire/Smoke Monitoring",
		},
		Video: VideoConfig{
			Source:  "fire.mp4",
			Backend: "gocv",
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 465,
			Timeout:  30 * time.Second,
		},
		Vision: VisionConfig{
			BaseURL: "http://localhost",
			Port:    11434,
			Model:   "llama3.2-vision:11b",
		},
		Analysis: AnalysisConfig{
			Timeout: 90 * time.Second,
		},
	}
}

// SampleInterval returns the interval as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalSeconds) * time.Second
}

// DisplaySize returns the resolution frames are normalized to.
func (c *Config) DisplaySize() image.Point {
	return image.Pt(c.Display.Width, c.Display.Height)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.SampleIntervalSeconds < 1:
		return fmt.Errorf("%w: sample_interval_seconds must be at least 1", ErrInvalidConfig)
	case c.FrameArtifactPath == "":
		return fmt.Errorf("%w: frame_artifact_path must not be empty", ErrInvalidConfig)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("%w: jpeg_quality must be between 1 and 100", ErrInvalidConfig)
	case c.Display.Width <= 0 || c.Display.Height <= 0:
		return fmt.Errorf("%w: display resolution must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.Video.Source) == "":
		return fmt.Errorf("%w: video.source must not be empty", ErrInvalidConfig)
	case c.Video.Backend != "gocv" && c.Video.Backend != "ffmpeg":
		return fmt.Errorf("%w: video.backend must be gocv or ffmpeg, got %q", ErrInvalidConfig, c.Video.Backend)
	case c.Email.Sender == "" || c.Email.Recipient == "" || c.Email.Credential == "":
		return fmt.Errorf("%w: email.sender, email.recipient and email.credential are required", ErrInvalidConfig)
	case c.Email.SMTPHost == "" || c.Email.SMTPPort <= 0:
		return fmt.Errorf("%w: email.smtp_host and email.smtp_port are required", ErrInvalidConfig)
	case c.Vision.Model == "":
		return fmt.Errorf("%w: vision.model must not be empty", ErrInvalidConfig)
	case c.Analysis.MaxConcurrent < 0:
		return fmt.Errorf("%w: analysis.max_concurrent must not be negative", ErrInvalidConfig)
	}
	return nil
}
