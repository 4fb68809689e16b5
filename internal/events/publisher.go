// Package events publishes training status changes to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/polski-lektor/lektor-tts/internal/training"
)

// Publisher announces training status changes.
type Publisher interface {
	Publish(status training.Status) error
}

// NatsPublisher publishes every status as JSON on <prefix>.<model id>.
type NatsPublisher struct {
	natsConnection *nats.Conn
	prefix         string
	log            *slog.Logger
}

// NewNatsPublisher creates a publisher on an established connection.
func NewNatsPublisher(natsConnection *nats.Conn, prefix string, log *slog.Logger) *NatsPublisher {
	if log == nil {
		log = slog.Default()
	}

	return &NatsPublisher{
		natsConnection: natsConnection,
		prefix:         prefix,
		log:            log,
	}
}

// Subject returns the subject a status for modelID is published on.
func (p *NatsPublisher) Subject(modelID string) string {
	return p.prefix + "." + subjectToken(modelID)
}

// Publish sends status. Delivery is fire-and-forget.
func (p *NatsPublisher) Publish(status training.Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status for %s: %w", status.ID, err)
	}

	if err := p.natsConnection.Publish(p.Subject(status.ID), data); err != nil {
		return fmt.Errorf("failed to publish status for %s: %w", status.ID, err)
	}

	return nil
}

// Observe adapts the publisher to training.Observer, logging failures.
func (p *NatsPublisher) Observe(status training.Status) {
	if err := p.Publish(status); err != nil {
		p.log.Warn("Failed to publish training status", "model_id", status.ID, "error", err)
	}
}

// subjectToken replaces characters that are not allowed inside a single
// subject token.
func subjectToken(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, id)
}
