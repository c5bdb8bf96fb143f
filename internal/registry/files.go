package registry

import (
	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/types"
)

// File references are opaque handles into an external content store. They
// are stored and returned verbatim, append-only.

func validateFileRef(ref string) error {
	if ref == "" {
		return types.NewValidationError("file reference is required", map[string]interface{}{"field": "file_ref"})
	}
	return nil
}

// UploadPatientFile appends ref to the caller's own patient record
func (r *Registry) UploadPatientFile(l ledger.Ledger, caller, ref string) error {
	return r.update(l, "UploadPatientFile", caller, caller, func(tx *txn) error {
		record, err := loadOwnPatient(tx, caller)
		if err != nil {
			return err
		}
		if err := validateFileRef(ref); err != nil {
			return err
		}

		record.Files = append(record.Files, ref)
		if err := tx.putJSON(patientKey(caller), record); err != nil {
			return err
		}

		tx.emit(types.EventPatientFileUploaded, types.RegistryEvent{Caller: caller, Patient: caller})
		return nil
	})
}

// UploadPatientFileByDoctor appends ref to patient's record on behalf of a
// doctor the patient has granted access.
func (r *Registry) UploadPatientFileByDoctor(l ledger.Ledger, caller, patient, ref string) error {
	return r.update(l, "UploadPatientFileByDoctor", caller, patient, func(tx *txn) error {
		record, err := loadPatient(tx, patient)
		if err != nil {
			return err
		}
		isDoctor, granted, err := tx.doctorGrant(caller, patient)
		if err != nil {
			return err
		}
		if !isDoctor || !granted {
			return types.NewAccessDeniedError("no active permission for this patient")
		}
		if err := validateFileRef(ref); err != nil {
			return err
		}

		record.Files = append(record.Files, ref)
		if err := tx.putJSON(patientKey(patient), record); err != nil {
			return err
		}

		tx.emit(types.EventPatientFileUploaded, types.RegistryEvent{Caller: caller, Patient: patient, Doctor: caller})
		return nil
	})
}

// ListPatientFiles returns patient's file references in upload order
func (r *Registry) ListPatientFiles(l ledger.Ledger, caller, patient string) ([]string, error) {
	var out []string
	err := r.view(l, "ListPatientFiles", caller, patient, func(tx *txn) error {
		record, err := loadAccessiblePatient(tx, caller, patient)
		if err != nil {
			return err
		}
		out = record.Files
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AttachAppointmentFile appends ref to an appointment. Only the creating
// doctor may attach.
func (r *Registry) AttachAppointmentFile(l ledger.Ledger, caller string, id uint64, ref string) error {
	return r.update(l, "AttachAppointmentFile", caller, appointmentResource(id), func(tx *txn) error {
		appt, err := loadAppointment(tx, id)
		if err != nil {
			return err
		}
		if caller != appt.Doctor {
			return types.NewUnauthorizedError("only the creating doctor may attach files")
		}
		if err := validateFileRef(ref); err != nil {
			return err
		}

		appt.Files = append(appt.Files, ref)
		if err := tx.putJSON(appointmentKey(id), appt); err != nil {
			return err
		}

		apptID := id
		tx.emit(types.EventAppointmentFileAttached, types.RegistryEvent{
			Caller:        caller,
			Patient:       appt.Patient,
			Doctor:        caller,
			AppointmentID: &apptID,
		})
		return nil
	})
}

// ListAppointmentFiles returns an appointment's file references to anyone
// who may read the appointment.
func (r *Registry) ListAppointmentFiles(l ledger.Ledger, caller string, id uint64) ([]string, error) {
	var out []string
	err := r.view(l, "ListAppointmentFiles", caller, appointmentResource(id), func(tx *txn) error {
		appt, err := loadAccessibleAppointment(tx, caller, id)
		if err != nil {
			return err
		}
		out = appt.Files
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
