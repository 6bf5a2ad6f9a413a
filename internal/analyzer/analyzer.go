// Package analyzer submits sampled frames to a vision model and turns its
// answer into a detection verdict.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdougie/firewatch/internal/metrics"
	"github.com/bdougie/firewatch/internal/models"
)

var (
	// ErrServiceUnavailable wraps any failure reaching the vision service
	ErrServiceUnavailable = errors.New("vision service error")
	// ErrMalformedResponse is returned when the answer cannot be parsed
	ErrMalformedResponse = errors.New("malformed vision response")
)

// VisionService is the external model that looks at an image
type VisionService interface {
	Submit(ctx context.Context, image []byte, instruction string) (string, error)
}

// Worker analyzes frames for fire or smoke
type Worker struct {
	service     VisionService
	instruction string
	logger      *slog.Logger
}

// NewWorker creates a worker whose instruction asks for emergency contacts in locality
func NewWorker(service VisionService, locality string, logger *slog.Logger) *Worker {
	return &Worker{
		service:     service,
		instruction: BuildInstruction(locality),
		logger:      logger.With("component", "analyzer"),
	}
}

// Instruction returns the text sent along with every frame
func (w *Worker) Instruction() string {
	return w.instruction
}

// Analyze submits image to the vision service and parses the verdict.
// Errors wrap ErrServiceUnavailable or ErrMalformedResponse; callers treat
// both as no detection.
func (w *Worker) Analyze(ctx context.Context, image []byte) (models.Detection, error) {
	if len(image) == 0 {
		return models.Detection{}, fmt.Errorf("%w: empty image", ErrMalformedResponse)
	}

	start := time.Now()
	response, err := w.service.Submit(ctx, image, w.instruction)
	metrics.RecordAnalysisLatency(time.Since(start).Seconds())
	if err != nil {
		return models.Detection{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	w.logger.Debug("vision response", "raw", response)

	return ParseResponse(response)
}

// ParseResponse turns a raw model answer into a Detection.
// The sentinel anywhere in the answer means nothing was detected. Otherwise
// the first line is the subject and the rest is the body.
func ParseResponse(response string) (models.Detection, error) {
	result := strings.TrimSpace(response)
	if result == "" {
		return models.Detection{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	if strings.Contains(result, NoFireSentinel) {
		return models.Detection{Raw: result}, nil
	}

	lines := strings.Split(strings.ReplaceAll(result, "\r\n", "\n"), "\n")

	subject := strings.TrimSpace(lines[0])
	if subject == "" {
		subject = defaultSubject
	}

	body := ""
	if len(lines) > 1 {
		body = strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}
	if body == "" {
		body = defaultBody
	}

	return models.Detection{
		Detected: true,
		Subject:  subject,
		Body:     body,
		Raw:      result,
	}, nil
}
