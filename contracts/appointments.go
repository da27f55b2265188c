package contracts

import (
	"time"
)

// Appointment is the shared projection of one appointment as it appears in
// response payloads.
type Appointment struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	AppointmentTime time.Time `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AppointmentCreateCommand asks the appointment service to schedule a new
// appointment.
type AppointmentCreateCommand struct {
	BaseMessage
	PatientID       string    `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	AppointmentTime time.Time `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
}

// NewAppointmentCreateCommand creates a create command with defaults applied.
func NewAppointmentCreateCommand(patientID, doctorID string, at time.Time) *AppointmentCreateCommand {
	return &AppointmentCreateCommand{
		BaseMessage:     NewBaseMessage(SubjectAppointmentCreateCommand),
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentTime: at,
		DurationMinutes: 30,
	}
}

// AppointmentUpdateCommand changes fields on an existing appointment. Zero
// fields are left untouched by the consumer.
type AppointmentUpdateCommand struct {
	BaseMessage
	AppointmentID   string     `json:"appointment_id"`
	AppointmentTime *time.Time `json:"appointment_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Status          string     `json:"status,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// NewAppointmentUpdateCommand creates an update command for one appointment.
func NewAppointmentUpdateCommand(appointmentID string) *AppointmentUpdateCommand {
	return &AppointmentUpdateCommand{
		BaseMessage:   NewBaseMessage(SubjectAppointmentUpdateCommand),
		AppointmentID: appointmentID,
	}
}

// AppointmentCancelCommand cancels an appointment.
type AppointmentCancelCommand struct {
	BaseMessage
	AppointmentID string `json:"appointment_id"`
}

// NewAppointmentCancelCommand creates a cancel command.
func NewAppointmentCancelCommand(appointmentID string) *AppointmentCancelCommand {
	return &AppointmentCancelCommand{
		BaseMessage:   NewBaseMessage(SubjectAppointmentCancelCommand),
		AppointmentID: appointmentID,
	}
}

// AppointmentGetCommand fetches a single appointment.
type AppointmentGetCommand struct {
	BaseMessage
	AppointmentID string `json:"appointment_id"`
}

// NewAppointmentGetCommand creates a get command.
func NewAppointmentGetCommand(appointmentID string) *AppointmentGetCommand {
	return &AppointmentGetCommand{
		BaseMessage:   NewBaseMessage(SubjectAppointmentGetCommand),
		AppointmentID: appointmentID,
	}
}

// AppointmentListCommand lists appointments, optionally filtered by patient
// or doctor.
type AppointmentListCommand struct {
	BaseMessage
	PatientID string `json:"patient_id,omitempty"`
	DoctorID  string `json:"doctor_id,omitempty"`
}

// NewAppointmentListCommand creates a list command.
func NewAppointmentListCommand() *AppointmentListCommand {
	return &AppointmentListCommand{
		BaseMessage: NewBaseMessage(SubjectAppointmentListCommand),
	}
}

// AppointmentResponse is the common shape of responses carrying one
// appointment.
type AppointmentResponse struct {
	BaseMessage
	AppointmentID   string    `json:"appointment_id"`
	PatientID       string    `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	AppointmentTime time.Time `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AppointmentCreatedResponse answers AppointmentCreateCommand.
type AppointmentCreatedResponse struct {
	AppointmentResponse
}

// AppointmentUpdatedResponse answers AppointmentUpdateCommand.
type AppointmentUpdatedResponse struct {
	AppointmentResponse
}

// AppointmentCancelledResponse answers AppointmentCancelCommand.
type AppointmentCancelledResponse struct {
	BaseMessage
	AppointmentID string `json:"appointment_id"`
}

// AppointmentDataResponse answers AppointmentGetCommand.
type AppointmentDataResponse struct {
	AppointmentResponse
}

// AppointmentListResponse answers AppointmentListCommand.
type AppointmentListResponse struct {
	BaseMessage
	Appointments []Appointment `json:"appointments"`
}
