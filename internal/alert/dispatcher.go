// Package alert sends fire alerts with the offending frame attached.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bdougie/firewatch/internal/metrics"
	"github.com/bdougie/firewatch/internal/models"
)

// AttachmentName is the filename the frame is attached under
const AttachmentName = "fire_alert.jpg"

var (
	// ErrTransport wraps connection, authentication and send failures
	ErrTransport = errors.New("mail transport error")
	// ErrAttachment means the frame exists but could not be read
	ErrAttachment = errors.New("alert attachment unreadable")
)

// Message is everything the transport needs to send one alert
type Message struct {
	From           string
	To             string
	Subject        string
	Body           string
	Attachment     []byte
	AttachmentName string
}

// Transport delivers a message with a binary attachment
type Transport interface {
	SendWithAttachment(ctx context.Context, msg Message) error
}

// Dispatcher turns alert requests into emails.
// Delivery is at most once: failures are logged and dropped.
type Dispatcher struct {
	transport Transport
	from      string
	to        string
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher sending from sender to recipient
func NewDispatcher(transport Transport, sender, recipient string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		from:      sender,
		to:        recipient,
		logger:    logger.With("component", "alert"),
	}
}

// Dispatch sends req with the frame at req.FramePath attached.
// A missing frame is a skip and returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.AlertRequest) error {
	attachment, err := os.ReadFile(req.FramePath)
	if errors.Is(err, os.ErrNotExist) {
		metrics.RecordFailure(metrics.CategoryMissingArtifact)
		d.logger.Warn("email alert skipped: no image file found",
			"category", metrics.CategoryMissingArtifact,
			"path", req.FramePath)
		return nil
	}
	if err != nil {
		metrics.RecordFailure(metrics.CategoryArtifactRead)
		d.logger.Error("email alert skipped: image unreadable",
			"category", metrics.CategoryArtifactRead,
			"path", req.FramePath,
			"error", err)
		return fmt.Errorf("%w: %v", ErrAttachment, err)
	}

	msg := Message{
		From:           d.from,
		To:             d.to,
		Subject:        SanitizeSubject(req.Subject),
		Body:           req.Body,
		Attachment:     attachment,
		AttachmentName: AttachmentName,
	}

	if err := d.transport.SendWithAttachment(ctx, msg); err != nil {
		metrics.RecordFailure(metrics.CategoryTransportError)
		d.logger.Error("failed to send email",
			"category", metrics.CategoryTransportError,
			"subject", msg.Subject,
			"error", err)
		if errors.Is(err, ErrTransport) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	metrics.RecordAlertSent()
	d.logger.Info("email alert sent", "subject", msg.Subject, "to", d.to)
	return nil
}

// SanitizeSubject strips line breaks so the subject is a single header line
func SanitizeSubject(subject string) string {
	subject = strings.ReplaceAll(subject, "\n", " ")
	subject = strings.ReplaceAll(subject, "\r", "")
	return strings.TrimSpace(subject)
}
