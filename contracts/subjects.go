package contracts

// Bus subjects follow the <domain>.<action> convention. Commands carry a
// .command suffix and responses a .response suffix; the pairing between a
// command subject and its response subject is configuration owned by the
// bridge registry, not protocol.
const (
	// Command subjects consumed by the appointment service.
	SubjectAppointmentCreateCommand = "appointment.create.command"
	SubjectAppointmentUpdateCommand = "appointment.update.command"
	SubjectAppointmentCancelCommand = "appointment.cancel.command"
	SubjectAppointmentGetCommand    = "appointment.get.command"
	SubjectAppointmentListCommand   = "appointment.list.command"

	// Response subjects published back to the gateway.
	SubjectAppointmentCreatedResponse   = "appointment.created.response"
	SubjectAppointmentUpdatedResponse   = "appointment.updated.response"
	SubjectAppointmentCancelledResponse = "appointment.cancelled.response"
	SubjectAppointmentDataResponse      = "appointment.data.response"
	SubjectAppointmentListResponse      = "appointment.list.response"

	// Domain event subjects observed by the event store.
	SubjectAppointmentScheduled = "appointment.scheduled"
	SubjectAppointmentUpdated   = "appointment.updated"
	SubjectAppointmentCancelled = "appointment.cancelled"
	SubjectPatientCreated       = "patient.created"
	SubjectPatientUpdated       = "patient.updated"
	SubjectNotificationSent     = "notification.sent"
	SubjectDoctorAvailability   = "doctor.availability.updated"
)

// Subscription patterns. The star matches one subject token, the chevron
// matches the rest of the subject.
const (
	PatternAllAppointments  = "appointment.>"
	PatternAllPatients      = "patient.>"
	PatternAllNotifications = "notification.>"
	PatternAllDoctors       = "doctor.>"
	PatternAllEvents        = ">"
)
