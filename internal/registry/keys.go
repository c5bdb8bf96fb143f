package registry

import (
	"strconv"
	"strings"

	"github.com/medrex/record-registry/pkg/types"
)

// Key parts are joined with NUL. Identities may not contain it, so no two
// distinct part lists produce the same key.
const keySeparator = "\x00"

const (
	patientCountKey    = "patient_count"
	doctorCountKey     = "doctor_count"
	appointmentNextKey = "appointment_next"
	patientPrefix      = "patient"
	patientSeqPrefix   = "patient_seq"
	doctorPrefix       = "doctor"
	doctorSeqPrefix    = "doctor_seq"
	grantPrefix        = "grant"
	appointmentPrefix  = "appointment"
	doctorApptsPrefix  = "doctor_appointments"
	doctorApptCount    = "doctor_appointment_count"
	patientApptsPrefix = "patient_appointments"
	patientApptCount   = "patient_appointment_count"
)

func compositeKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

func seq(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func patientKey(identity string) string { return compositeKey(patientPrefix, identity) }

func patientSeqKey(n uint64) string { return compositeKey(patientSeqPrefix, seq(n)) }

func doctorKey(identity string) string { return compositeKey(doctorPrefix, identity) }

func doctorSeqKey(n uint64) string { return compositeKey(doctorSeqPrefix, seq(n)) }

func grantKey(patient, doctor string) string { return compositeKey(grantPrefix, patient, doctor) }

func appointmentKey(id uint64) string { return compositeKey(appointmentPrefix, seq(id)) }

func doctorAppointmentCountKey(doctor string) string { return compositeKey(doctorApptCount, doctor) }

func doctorAppointmentKey(doctor string, n uint64) string {
	return compositeKey(doctorApptsPrefix, doctor, seq(n))
}

func patientAppointmentCountKey(patient string) string {
	return compositeKey(patientApptCount, patient)
}

func patientAppointmentKey(patient string, n uint64) string {
	return compositeKey(patientApptsPrefix, patient, seq(n))
}

// validateCaller rejects caller identities the execution context should
// never produce.
func validateCaller(caller string) error {
	if caller == "" {
		return types.NewUnauthorizedError("caller identity is required")
	}
	if strings.Contains(caller, keySeparator) {
		return types.NewValidationError("caller identity contains a reserved character", nil)
	}
	return nil
}

// validateIdentity checks an identity named as an operation argument.
func validateIdentity(field, identity string) error {
	if identity == "" {
		return types.NewValidationError(field+" identity is required", map[string]interface{}{"field": field})
	}
	if strings.Contains(identity, keySeparator) {
		return types.NewValidationError(field+" identity contains a reserved character", map[string]interface{}{"field": field})
	}
	return nil
}
