package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the parsed view of one bus message: the metadata fields lifted
// out of the flat JSON body, plus the raw body itself. Data always holds the
// complete message bytes, so payload fields survive a decode/encode round
// trip even when the reader does not know their shape.
type Envelope struct {
	EventType     string
	CorrelationID string
	Timestamp     time.Time
	SourceService string
	Data          json.RawMessage
}

// envelopeHead is the metadata subset read out of an incoming body.
// Timestamp is kept as a string so a malformed value degrades to a zero
// time instead of failing the whole message.
type envelopeHead struct {
	EventType     string `json:"event_type"`
	CorrelationID string `json:"correlation_id"`
	Timestamp     string `json:"timestamp"`
	SourceService string `json:"source_service"`
}

// Marshal serializes a message into the flat wire format. The payload fields
// and the metadata fields end up in one JSON object; metadata present on the
// message wins over any identically named payload field.
func Marshal(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	// Messages embed BaseMessage, so the metadata keys are already part of
	// the marshaled object. Validate it is an object to catch misuse with
	// scalar payloads.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("message must serialize to a JSON object: %w", err)
	}

	return body, nil
}

// Unmarshal parses a raw bus message into an Envelope. Parsing is lenient:
// only a body that is not a JSON object is rejected. A missing event_type,
// correlation_id, or an unparsable timestamp leaves the corresponding field
// zero; callers apply their own fallbacks.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}

	var head envelopeHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	env := &Envelope{
		EventType:     head.EventType,
		CorrelationID: head.CorrelationID,
		SourceService: head.SourceService,
		Data:          append(json.RawMessage(nil), data...),
	}

	if head.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, head.Timestamp); err == nil {
			env.Timestamp = ts
		}
	}

	return env, nil
}

// DecodePayload unmarshals the envelope body into a typed message or payload
// struct.
func (e *Envelope) DecodePayload(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope has no body")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode payload into %T: %w", v, err)
	}
	return nil
}
