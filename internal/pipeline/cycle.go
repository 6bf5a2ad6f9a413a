// Package pipeline runs one analysis cycle per sampled frame: load the
// artifact, ask the vision service, alert on detection, record the outcome,
// and remove the artifact.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bdougie/firewatch/internal/analyzer"
	"github.com/bdougie/firewatch/internal/framestore"
	"github.com/bdougie/firewatch/internal/metrics"
	"github.com/bdougie/firewatch/internal/models"
	"github.com/bdougie/firewatch/internal/storage"
)

const (
	defaultTimeout = 90 * time.Second
	similarLimit   = 3
)

// Artifact is the shared on-disk sample
type Artifact interface {
	Path() string
	Load() ([]byte, error)
	Remove() error
}

// Analyzer turns frame bytes into a verdict
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (models.Detection, error)
}

// Dispatcher sends an alert
type Dispatcher interface {
	Dispatch(ctx context.Context, req models.AlertRequest) error
}

// Spawner launches background work without waiting
type Spawner interface {
	Spawn(name string, fn func(ctx context.Context)) bool
}

// Runner executes analysis cycles
type Runner struct {
	artifact   Artifact
	analyzer   Analyzer
	dispatcher Dispatcher
	spawner    Spawner
	recorder   storage.Recorder
	source     string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewRunner wires a cycle runner. Launch needs a spawner set via WithSpawner.
func NewRunner(artifact Artifact, analyzer Analyzer, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		artifact:   artifact,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		recorder:   storage.Nop{},
		timeout:    defaultTimeout,
		logger:     logger.With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Launch starts a cycle for event in the background and returns at once
func (r *Runner) Launch(event models.SampleEvent) bool {
	if r.spawner == nil {
		go r.Run(context.Background(), event)
		return true
	}
	return r.spawner.Spawn("analysis-"+event.ID, func(ctx context.Context) {
		r.Run(ctx, event)
	})
}

// Run executes one cycle. Every failure is contained here: it is logged,
// counted and reflected in the returned record, never propagated.
func (r *Runner) Run(ctx context.Context, event models.SampleEvent) models.AnalysisRecord {
	metrics.CycleStarted()
	defer metrics.CycleFinished()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger := r.logger.With("sample", event.ID, "seq", event.Seq)
	record := models.AnalysisRecord{
		SampleID:  event.ID,
		Source:    r.source,
		Frame:     r.artifact.Path(),
		FrameSeq:  event.Seq,
		SampledAt: event.SampledAt,
	}

	// The artifact never outlives a completed cycle
	defer func() {
		if err := r.artifact.Remove(); err != nil {
			logger.Warn("failed to remove frame artifact", "error", err)
		}
	}()

	data, err := r.artifact.Load()
	if errors.Is(err, framestore.ErrMissingArtifact) {
		metrics.RecordFailure(metrics.CategoryMissingArtifact)
		logger.Warn("no image available for analysis, skipping",
			"category", metrics.CategoryMissingArtifact)
		record.Err = err.Error()
		return record
	}
	if err != nil {
		metrics.RecordFailure(metrics.CategoryArtifactRead)
		logger.Error("image could not be read, skipping",
			"category", metrics.CategoryArtifactRead,
			"error", err)
		record.Err = err.Error()
		return record
	}

	detection, err := r.analyzer.Analyze(ctx, data)
	if err != nil {
		category := metrics.CategoryServiceError
		if errors.Is(err, analyzer.ErrMalformedResponse) {
			category = metrics.CategoryMalformedResponse
		}
		metrics.RecordFailure(category)
		logger.Error("analysis skipped", "category", category, "error", err)
		record.Err = err.Error()
		detection = models.Detection{}
	} else {
		metrics.RecordDetection(detection.Detected)
	}

	record.Detected = detection.Detected
	record.Raw = detection.Raw

	if detection.Detected {
		record.Subject = detection.Subject
		record.Body = detection.Body
		logger.Warn("fire or smoke detected", "subject", detection.Subject)

		err := r.dispatcher.Dispatch(ctx, models.AlertRequest{
			Subject:   detection.Subject,
			Body:      detection.Body,
			FramePath: r.artifact.Path(),
		})
		record.Dispatched = err == nil
		if err != nil {
			record.Err = err.Error()
		}
	} else if err == nil {
		logger.Info("no fire detected")
	}

	r.record(ctx, logger, data, &record)
	return record
}

// record writes the outcome to history and, for detections, logs past
// detections of a similar looking scene.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, data []byte, record *models.AnalysisRecord) {
	if _, nop := r.recorder.(storage.Nop); nop {
		return
	}

	if sig, err := storage.FrameSignature(data); err == nil {
		record.Signature = sig
	} else {
		logger.Debug("no frame signature", "error", err)
	}

	if record.Detected && record.Signature != nil {
		if finder, ok := r.recorder.(storage.SimilarFinder); ok {
			similar, err := finder.SimilarDetections(ctx, record.Signature, similarLimit)
			if err != nil {
				logger.Warn("similar detection lookup failed", "error", err)
			}
			for _, s := range similar {
				logger.Info("similar scene alerted before",
					"previous_sample", s.SampleID,
					"previous_subject", s.Subject,
					"at", s.SampledAt,
					"similarity", s.Similarity)
			}
		}
	}

	if err := r.recorder.Record(ctx, *record); err != nil {
		metrics.RecordFailure(metrics.CategoryHistory)
		logger.Warn("failed to record analysis",
			"category", metrics.CategoryHistory,
			"error", err)
	}
}
