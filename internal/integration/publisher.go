// Package integration publishes camera lifecycle events to external
// systems over NATS.
package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/models"
)

// NATS subjects for camera events
const (
	SubjectCaptureCompleted  = "camera.capture.completed"
	SubjectTimelapseStarted  = "camera.timelapse.started"
	SubjectTimelapseProgress = "camera.timelapse.progress"
	SubjectTimelapseFinished = "camera.timelapse.finished"
)

// Publisher emits camera lifecycle events
type Publisher interface {
	CaptureCompleted(record *models.CaptureRecord) error
	TimelapseStarted(run *models.TimelapseRun) error
	TimelapseProgress(run *models.TimelapseRun) error
	TimelapseFinished(run *models.TimelapseRun) error
	Close() error
}

// NATSPublisher publishes events to a NATS server
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to NATS and returns a publisher
func NewNATSPublisher(url string, maxReconnects int, reconnectWait time.Duration) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc}, nil
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

func (p *NATSPublisher) publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// CaptureCompleted publishes a single-capture completion event
func (p *NATSPublisher) CaptureCompleted(record *models.CaptureRecord) error {
	return p.publish(SubjectCaptureCompleted, record)
}

// TimelapseStarted publishes a timelapse start event
func (p *NATSPublisher) TimelapseStarted(run *models.TimelapseRun) error {
	return p.publish(SubjectTimelapseStarted, run)
}

// TimelapseProgress publishes a per-frame progress event
func (p *NATSPublisher) TimelapseProgress(run *models.TimelapseRun) error {
	return p.publish(SubjectTimelapseProgress, run)
}

// TimelapseFinished publishes a terminal-state event
func (p *NATSPublisher) TimelapseFinished(run *models.TimelapseRun) error {
	return p.publish(SubjectTimelapseFinished, run)
}

// NoopPublisher discards all events. Used when NATS is not configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that discards events
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Close is a no-op
func (p *NoopPublisher) Close() error { return nil }

// CaptureCompleted discards the event
func (p *NoopPublisher) CaptureCompleted(*models.CaptureRecord) error { return nil }

// TimelapseStarted discards the event
func (p *NoopPublisher) TimelapseStarted(*models.TimelapseRun) error { return nil }

// TimelapseProgress discards the event
func (p *NoopPublisher) TimelapseProgress(*models.TimelapseRun) error { return nil }

// TimelapseFinished discards the event
func (p *NoopPublisher) TimelapseFinished(*models.TimelapseRun) error { return nil }
