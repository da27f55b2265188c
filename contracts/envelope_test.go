package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalProducesFlatObject(t *testing.T) {
	t.Run("payload and metadata share one object", func(t *testing.T) {
		cmd := NewAppointmentCreateCommand("P1", "D1", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
		cmd.SetCorrelationID("abc123")

		body, err := Marshal(cmd)
		require.NoError(t, err)

		var fields map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &fields))

		assert.Equal(t, SubjectAppointmentCreateCommand, fields["event_type"])
		assert.Equal(t, "abc123", fields["correlation_id"])
		assert.Equal(t, "P1", fields["patient_id"])
		assert.Equal(t, "D1", fields["doctor_id"])
	})

	t.Run("nil message is rejected", func(t *testing.T) {
		_, err := Marshal(nil)
		assert.Error(t, err)
	})
}

func TestUnmarshal(t *testing.T) {
	t.Run("parses metadata and keeps raw body", func(t *testing.T) {
		body := []byte(`{"event_type":"appointment.created","correlation_id":"abc123","timestamp":"2025-01-01T10:00:00Z","source_service":"appointment-service","appointment_id":"A1"}`)

		env, err := Unmarshal(body)
		require.NoError(t, err)

		assert.Equal(t, "appointment.created", env.EventType)
		assert.Equal(t, "abc123", env.CorrelationID)
		assert.Equal(t, "appointment-service", env.SourceService)
		assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), env.Timestamp)
		assert.JSONEq(t, string(body), string(env.Data))
	})

	t.Run("missing metadata leaves zero values", func(t *testing.T) {
		env, err := Unmarshal([]byte(`{"some_field":"value"}`))
		require.NoError(t, err)

		assert.Empty(t, env.EventType)
		assert.Empty(t, env.CorrelationID)
		assert.True(t, env.Timestamp.IsZero())
	})

	t.Run("unparsable timestamp degrades to zero", func(t *testing.T) {
		env, err := Unmarshal([]byte(`{"event_type":"x","timestamp":"not-a-time"}`))
		require.NoError(t, err)
		assert.True(t, env.Timestamp.IsZero())
	})

	t.Run("non-object body fails", func(t *testing.T) {
		_, err := Unmarshal([]byte(`"just a string"`))
		assert.Error(t, err)
	})

	t.Run("empty body fails", func(t *testing.T) {
		_, err := Unmarshal(nil)
		assert.Error(t, err)
	})
}

func TestDecodePayload(t *testing.T) {
	t.Run("round trips a typed response", func(t *testing.T) {
		resp := &AppointmentCreatedResponse{}
		resp.BaseMessage = NewBaseMessage("appointment.created")
		resp.SetCorrelationID("abc123")
		resp.AppointmentID = "A1"
		resp.PatientID = "P1"

		body, err := Marshal(resp)
		require.NoError(t, err)

		env, err := Unmarshal(body)
		require.NoError(t, err)

		decoded := &AppointmentCreatedResponse{}
		require.NoError(t, env.DecodePayload(decoded))

		assert.Equal(t, "A1", decoded.AppointmentID)
		assert.Equal(t, "P1", decoded.PatientID)
		assert.Equal(t, "abc123", decoded.GetCorrelationID())
	})

	t.Run("mismatched shape fails", func(t *testing.T) {
		env, err := Unmarshal([]byte(`{"appointment_id":123}`))
		require.NoError(t, err)

		decoded := &AppointmentCreatedResponse{}
		assert.Error(t, env.DecodePayload(decoded))
	})
}

func TestErrorResponse(t *testing.T) {
	resp := NewErrorResponse("appointment.created", "abc123", "slot unavailable")

	assert.Equal(t, "abc123", resp.GetCorrelationID())
	assert.Equal(t, "slot unavailable", resp.Message)
	assert.False(t, resp.GetTimestamp().IsZero())
}
