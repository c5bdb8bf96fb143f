package registry

import "github.com/medrex/record-registry/pkg/types"

// canAccessPatientRecord is the single rule for cross-identity access to a
// patient's record, files and appointments: the patient themself, or a
// registered doctor holding an active grant from the patient.
func canAccessPatientRecord(caller, patient string, callerIsDoctor, granted bool) bool {
	return caller == patient || (callerIsDoctor && granted)
}

// canAccessAppointment extends patient-record access with the appointment's
// creator.
func canAccessAppointment(caller string, appt *types.Appointment, callerIsDoctor, granted bool) bool {
	return caller == appt.Doctor || canAccessPatientRecord(caller, appt.Patient, callerIsDoctor, granted)
}

// canMutateOwnProfile is the identity-equality rule for profile edits. No
// grant ever widens it.
func canMutateOwnProfile(caller, owner string) bool {
	return caller == owner
}

func (t *txn) isPatient(identity string) (bool, error) {
	return t.exists(patientKey(identity))
}

func (t *txn) isDoctor(identity string) (bool, error) {
	return t.exists(doctorKey(identity))
}

func (t *txn) grantActive(patient, doctor string) (bool, error) {
	var grant types.PermissionGrant
	found, err := t.getJSON(grantKey(patient, doctor), &grant)
	if err != nil {
		return false, err
	}
	return found && grant.Active, nil
}

// doctorGrant reports whether caller is a registered doctor and whether the
// patient has an active grant for it. The grant is only read for doctors.
func (t *txn) doctorGrant(caller, patient string) (isDoctor, granted bool, err error) {
	isDoctor, err = t.isDoctor(caller)
	if err != nil || !isDoctor {
		return isDoctor, false, err
	}
	granted, err = t.grantActive(patient, caller)
	return isDoctor, granted, err
}

func (t *txn) patientAccess(caller, patient string) (bool, error) {
	if caller == patient {
		return true, nil
	}
	isDoctor, granted, err := t.doctorGrant(caller, patient)
	if err != nil {
		return false, err
	}
	return canAccessPatientRecord(caller, patient, isDoctor, granted), nil
}

func (t *txn) appointmentAccess(caller string, appt *types.Appointment) (bool, error) {
	if caller == appt.Doctor || caller == appt.Patient {
		return true, nil
	}
	isDoctor, granted, err := t.doctorGrant(caller, appt.Patient)
	if err != nil {
		return false, err
	}
	return canAccessAppointment(caller, appt, isDoctor, granted), nil
}
