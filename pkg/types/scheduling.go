package types

// Appointment represents a doctor-created record of a clinical encounter.
// The creating doctor owns it; the named patient may read it.
type Appointment struct {
	ID            uint64   `json:"id"`
	Doctor        string   `json:"doctor"`
	Patient       string   `json:"patient"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	Diagnosis     string   `json:"diagnosis"`
	Medication    string   `json:"medication"`
	TreatmentPlan string   `json:"treatment_plan"`
	Status        string   `json:"status"`
	Files         []string `json:"files"`
}

// AppointmentRequest carries the fields a doctor supplies when creating an
// appointment.
type AppointmentRequest struct {
	Patient       string `json:"patient"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Diagnosis     string `json:"diagnosis"`
	Medication    string `json:"medication"`
	TreatmentPlan string `json:"treatment_plan"`
	Status        string `json:"status"`
}

// AppointmentStatus values commonly used as labels. The status field itself
// is free-form.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusCompleted AppointmentStatus = "Completed"
)
