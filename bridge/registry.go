package bridge

import (
	"fmt"
	"sync"

	"github.com/carebus/carebus-go/contracts"
)

// Registration binds one command type to the subject it is published on,
// the subject its response arrives on, and a factory for the typed response.
type Registration struct {
	CommandType     string
	CommandSubject  string
	ResponseSubject string
	NewResponse     func() contracts.Response
}

// Registry is the command/response routing table. It is configuration, not
// protocol: the bridge consults it on every invocation and subscribes to
// each distinct response subject at startup.
type Registry struct {
	mu         sync.RWMutex
	byCommand  map[string]Registration
	byResponse map[string]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byCommand:  make(map[string]Registration),
		byResponse: make(map[string]Registration),
	}
}

// Register adds a command/response pair.
func (r *Registry) Register(reg Registration) error {
	if reg.CommandType == "" {
		return fmt.Errorf("command type cannot be empty")
	}
	if reg.CommandSubject == "" || reg.ResponseSubject == "" {
		return fmt.Errorf("command and response subjects are required for %s", reg.CommandType)
	}
	if reg.NewResponse == nil {
		return fmt.Errorf("response factory is required for %s", reg.CommandType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCommand[reg.CommandType]; exists {
		return fmt.Errorf("command type already registered: %s", reg.CommandType)
	}
	if _, exists := r.byResponse[reg.ResponseSubject]; exists {
		return fmt.Errorf("response subject already registered: %s", reg.ResponseSubject)
	}

	r.byCommand[reg.CommandType] = reg
	r.byResponse[reg.ResponseSubject] = reg
	return nil
}

// Lookup returns the registration for a command type.
func (r *Registry) Lookup(commandType string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.byCommand[commandType]
	if !exists {
		return Registration{}, fmt.Errorf("%w: %s", ErrUnknownCommand, commandType)
	}
	return reg, nil
}

// ResponseSubjects returns every distinct response subject with its
// registration.
func (r *Registry) ResponseSubjects() map[string]Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Registration, len(r.byResponse))
	for subject, reg := range r.byResponse {
		out[subject] = reg
	}
	return out
}

// DefaultRegistry returns the appointment command family shipped with the
// wire contract.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	pairs := []Registration{
		{
			CommandType:     contracts.SubjectAppointmentCreateCommand,
			CommandSubject:  contracts.SubjectAppointmentCreateCommand,
			ResponseSubject: contracts.SubjectAppointmentCreatedResponse,
			NewResponse:     func() contracts.Response { return &contracts.AppointmentCreatedResponse{} },
		},
		{
			CommandType:     contracts.SubjectAppointmentUpdateCommand,
			CommandSubject:  contracts.SubjectAppointmentUpdateCommand,
			ResponseSubject: contracts.SubjectAppointmentUpdatedResponse,
			NewResponse:     func() contracts.Response { return &contracts.AppointmentUpdatedResponse{} },
		},
		{
			CommandType:     contracts.SubjectAppointmentCancelCommand,
			CommandSubject:  contracts.SubjectAppointmentCancelCommand,
			ResponseSubject: contracts.SubjectAppointmentCancelledResponse,
			NewResponse:     func() contracts.Response { return &contracts.AppointmentCancelledResponse{} },
		},
		{
			CommandType:     contracts.SubjectAppointmentGetCommand,
			CommandSubject:  contracts.SubjectAppointmentGetCommand,
			ResponseSubject: contracts.SubjectAppointmentDataResponse,
			NewResponse:     func() contracts.Response { return &contracts.AppointmentDataResponse{} },
		},
		{
			CommandType:     contracts.SubjectAppointmentListCommand,
			CommandSubject:  contracts.SubjectAppointmentListCommand,
			ResponseSubject: contracts.SubjectAppointmentListResponse,
			NewResponse:     func() contracts.Response { return &contracts.AppointmentListResponse{} },
		},
	}

	for _, reg := range pairs {
		// Registrations are static and disjoint, Register cannot fail here.
		_ = r.Register(reg)
	}

	return r
}
