// Package contracts defines the wire contract shared by every bus
// participant: the flat JSON envelope, the message interfaces, and the
// appointment command/response family.
//
// Every message on the bus is a single flat JSON object. Metadata fields
// (event_type, correlation_id, timestamp, source_service) live at the top
// level next to the payload fields, so a consumer can read the metadata
// without knowing the concrete payload shape:
//
//	{
//	  "event_type": "appointment.create.command",
//	  "correlation_id": "abc123",
//	  "timestamp": "2025-01-01T10:00:00Z",
//	  "source_service": "api-gateway",
//	  "patient_id": "P1",
//	  "doctor_id": "D1"
//	}
//
// Envelope carries the parsed metadata plus the raw body; DecodePayload
// recovers the typed payload from the same bytes.
package contracts
