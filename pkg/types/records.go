package types

// PatientProfile holds the self-reported demographic and medical fields of a
// patient. All fields are overwritten together on edit.
type PatientProfile struct {
	IdentificationNumber  string `json:"identification_number"`
	Name                  string `json:"name"`
	Phone                 string `json:"phone"`
	Sex                   string `json:"sex"`
	DateOfBirth           string `json:"date_of_birth"`
	Height                string `json:"height"`
	Weight                string `json:"weight"`
	Address               string `json:"address"`
	BloodType             string `json:"blood_type"`
	Allergies             string `json:"allergies"`
	Medication            string `json:"medication"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
}

// PatientRecord is the stored patient row keyed by the patient's identity.
type PatientRecord struct {
	Identity string         `json:"identity"`
	Profile  PatientProfile `json:"profile"`
	Files    []string       `json:"files"`
}

// DoctorProfile holds the professional fields of a doctor.
type DoctorProfile struct {
	IdentificationNumber string `json:"identification_number"`
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	Sex                  string `json:"sex"`
	DateOfBirth          string `json:"date_of_birth"`
	Qualification        string `json:"qualification"`
	Specialization       string `json:"specialization"`
}

// DoctorRecord is the stored doctor row keyed by the doctor's identity.
type DoctorRecord struct {
	Identity string        `json:"identity"`
	Profile  DoctorProfile `json:"profile"`
}

// PermissionGrant is the patient-authored relation allowing one doctor to
// read the patient's record and appointments. A missing grant reads as
// inactive.
type PermissionGrant struct {
	Patient string `json:"patient"`
	Doctor  string `json:"doctor"`
	Active  bool   `json:"active"`
}
