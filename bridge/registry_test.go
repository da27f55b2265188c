package bridge

import (
	"testing"

	"github.com/carebus/carebus-go/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegister(t *testing.T) {
	valid := Registration{
		CommandType:     "report.generate.command",
		CommandSubject:  "report.generate.command",
		ResponseSubject: "report.generated.response",
		NewResponse:     func() contracts.Response { return &contracts.ErrorResponse{} },
	}

	t.Run("accepts a complete registration", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(valid))

		reg, err := r.Lookup("report.generate.command")
		require.NoError(t, err)
		assert.Equal(t, "report.generated.response", reg.ResponseSubject)
	})

	t.Run("rejects empty command type", func(t *testing.T) {
		r := NewRegistry()
		reg := valid
		reg.CommandType = ""
		assert.Error(t, r.Register(reg))
	})

	t.Run("rejects missing subjects", func(t *testing.T) {
		r := NewRegistry()
		reg := valid
		reg.ResponseSubject = ""
		assert.Error(t, r.Register(reg))
	})

	t.Run("rejects nil response factory", func(t *testing.T) {
		r := NewRegistry()
		reg := valid
		reg.NewResponse = nil
		assert.Error(t, r.Register(reg))
	})

	t.Run("rejects duplicate command type", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(valid))

		dup := valid
		dup.ResponseSubject = "report.generated.v2.response"
		assert.Error(t, r.Register(dup))
	})

	t.Run("rejects duplicate response subject", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(valid))

		dup := valid
		dup.CommandType = "report.regenerate.command"
		assert.Error(t, r.Register(dup))
	})
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("nope.command")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	commands := []string{
		contracts.SubjectAppointmentCreateCommand,
		contracts.SubjectAppointmentUpdateCommand,
		contracts.SubjectAppointmentCancelCommand,
		contracts.SubjectAppointmentGetCommand,
		contracts.SubjectAppointmentListCommand,
	}
	for _, commandType := range commands {
		reg, err := r.Lookup(commandType)
		require.NoError(t, err, commandType)
		assert.Equal(t, commandType, reg.CommandSubject)
		assert.NotNil(t, reg.NewResponse())
	}

	subjects := r.ResponseSubjects()
	assert.Len(t, subjects, 5)
	assert.Contains(t, subjects, contracts.SubjectAppointmentCreatedResponse)
	assert.Contains(t, subjects, contracts.SubjectAppointmentListResponse)

	// The returned map is a copy; mutating it must not poison the registry.
	delete(subjects, contracts.SubjectAppointmentCreatedResponse)
	assert.Len(t, r.ResponseSubjects(), 5)
}
