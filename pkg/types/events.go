package types

// Event names published once per committed registry mutation
const (
	EventPatientRegistered       = "PatientRegistered"
	EventPatientUpdated          = "PatientUpdated"
	EventDoctorRegistered        = "DoctorRegistered"
	EventDoctorUpdated           = "DoctorUpdated"
	EventPermissionGranted       = "PermissionGranted"
	EventPermissionRevoked       = "PermissionRevoked"
	EventAppointmentCreated      = "AppointmentCreated"
	EventPatientFileUploaded     = "PatientFileUploaded"
	EventAppointmentFileAttached = "AppointmentFileAttached"
)

// RegistryEvent is the payload of a registry event. It names the identities
// and appointment involved, never profile contents.
type RegistryEvent struct {
	Caller        string  `json:"caller"`
	Patient       string  `json:"patient,omitempty"`
	Doctor        string  `json:"doctor,omitempty"`
	AppointmentID *uint64 `json:"appointment_id,omitempty"`
}
