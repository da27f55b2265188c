package contracts

import (
	"time"
)

// Message is the base interface for everything carried on the bus.
type Message interface {
	GetEventType() string
	GetTimestamp() time.Time
	GetCorrelationID() string
	SetCorrelationID(correlationID string)
}

// Command represents a request for a downstream service to act. Exactly one
// response is expected per command, matched by correlation id.
type Command interface {
	Message
}

// Response answers a command, carrying the correlation id copied from it.
type Response interface {
	Message
}

// BaseMessage provides the common wire fields for all message types.
type BaseMessage struct {
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	SourceService string    `json:"source_service,omitempty"`
}

// NewBaseMessage creates a base message with the current UTC timestamp.
func NewBaseMessage(eventType string) BaseMessage {
	return BaseMessage{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// GetEventType returns the event type.
func (m BaseMessage) GetEventType() string {
	return m.EventType
}

// GetTimestamp returns the message's own claimed time.
func (m BaseMessage) GetTimestamp() time.Time {
	return m.Timestamp
}

// GetCorrelationID returns the correlation id.
func (m BaseMessage) GetCorrelationID() string {
	return m.CorrelationID
}

// SetCorrelationID sets the correlation id.
func (m *BaseMessage) SetCorrelationID(correlationID string) {
	m.CorrelationID = correlationID
}

// ErrorResponse is published by a downstream service when a command cannot
// be fulfilled. It satisfies Response, so the bridge resolves the waiting
// call with it instead of letting the call time out.
type ErrorResponse struct {
	BaseMessage
	Code    string `json:"error_code,omitempty"`
	Message string `json:"error_message"`
}

// NewErrorResponse creates an error response echoing the command's
// correlation id.
func NewErrorResponse(eventType, correlationID, message string) *ErrorResponse {
	resp := &ErrorResponse{
		BaseMessage: NewBaseMessage(eventType),
		Message:     message,
	}
	resp.CorrelationID = correlationID
	return resp
}
