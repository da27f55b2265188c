package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebus/carebus-go/contracts"
	"github.com/google/uuid"
)

// Publisher publishes envelopes to the bus, stamping the standard metadata
// fields (correlation_id, timestamp, source_service) on every outgoing
// message that does not already carry them.
type Publisher struct {
	transport Transport
	source    string
	logger    *slog.Logger
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSourceService sets the source_service value stamped onto outgoing
// messages.
func WithSourceService(service string) PublisherOption {
	return func(p *Publisher) {
		p.source = service
	}
}

// NewPublisher creates a publisher over the given transport.
func NewPublisher(transport Transport, options ...PublisherOption) *Publisher {
	p := &Publisher{
		transport: transport,
		source:    "unknown-service",
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish serializes msg into the flat wire format and publishes it under
// subject. The correlation id actually sent is returned: the message's own
// id when present, a freshly generated one otherwise.
func (p *Publisher) Publish(ctx context.Context, subject string, msg contracts.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("message cannot be nil")
	}

	body, err := contracts.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode message for %s: %w", subject, err)
	}

	body, correlationID, err := p.stampMetadata(body, msg.GetCorrelationID())
	if err != nil {
		return "", fmt.Errorf("failed to stamp metadata for %s: %w", subject, err)
	}

	if err := p.transport.Publish(ctx, subject, body); err != nil {
		p.logger.Error("failed to publish message",
			"subject", subject,
			"eventType", msg.GetEventType(),
			"correlationId", correlationID,
			"error", err,
		)
		return "", fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("message published",
		"subject", subject,
		"eventType", msg.GetEventType(),
		"correlationId", correlationID,
	)

	return correlationID, nil
}

// stampMetadata fills in correlation_id, timestamp, and source_service on
// the serialized body when the message left them empty.
func (p *Publisher) stampMetadata(body []byte, correlationID string) ([]byte, string, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, "", err
	}

	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	fields["correlation_id"] = correlationID

	if raw, ok := fields["timestamp"]; !ok || raw == nil || raw == "" || raw == "0001-01-01T00:00:00Z" {
		fields["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if raw, ok := fields["source_service"]; !ok || raw == nil || raw == "" {
		fields["source_service"] = p.source
	}

	stamped, err := json.Marshal(fields)
	if err != nil {
		return nil, "", err
	}

	return stamped, correlationID, nil
}
