package registry

import (
	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/types"
)

// RegisterPatient creates the caller's patient record
func (r *Registry) RegisterPatient(l ledger.Ledger, caller string, profile types.PatientProfile) error {
	return r.update(l, "RegisterPatient", caller, caller, func(tx *txn) error {
		registered, err := tx.isPatient(caller)
		if err != nil {
			return err
		}
		if registered {
			return types.NewAlreadyRegisteredError("patient already registered")
		}

		record := types.PatientRecord{
			Identity: caller,
			Profile:  profile,
			Files:    []string{},
		}
		if err := tx.putJSON(patientKey(caller), record); err != nil {
			return err
		}
		if err := tx.appendIndex(patientCountKey, patientSeqKey, caller); err != nil {
			return err
		}

		tx.emit(types.EventPatientRegistered, types.RegistryEvent{Caller: caller, Patient: caller})
		return nil
	})
}

// EditPatient overwrites every profile field of the caller's record. The
// file list is left untouched.
func (r *Registry) EditPatient(l ledger.Ledger, caller string, profile types.PatientProfile) error {
	return r.update(l, "EditPatient", caller, caller, func(tx *txn) error {
		record, err := loadOwnPatient(tx, caller)
		if err != nil {
			return err
		}

		record.Profile = profile
		if err := tx.putJSON(patientKey(caller), record); err != nil {
			return err
		}

		tx.emit(types.EventPatientUpdated, types.RegistryEvent{Caller: caller, Patient: caller})
		return nil
	})
}

// GetPatient returns a patient's record to the patient or to a doctor the
// patient has granted access.
func (r *Registry) GetPatient(l ledger.Ledger, caller, patient string) (*types.PatientRecord, error) {
	var out *types.PatientRecord
	err := r.view(l, "GetPatient", caller, patient, func(tx *txn) error {
		record, err := loadAccessiblePatient(tx, caller, patient)
		if err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPatientIdentities returns every registered patient in registration
// order.
func (r *Registry) ListPatientIdentities(l ledger.Ledger) ([]string, error) {
	var out []string
	err := r.publicView(l, "ListPatientIdentities", func(tx *txn) error {
		ids, err := tx.readIndex(patientCountKey, patientSeqKey)
		out = ids
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountPatients returns the number of registered patients
func (r *Registry) CountPatients(l ledger.Ledger) (uint64, error) {
	var n uint64
	err := r.publicView(l, "CountPatients", func(tx *txn) error {
		var err error
		n, err = tx.getCounter(patientCountKey)
		return err
	})
	return n, err
}

// loadOwnPatient loads the caller's own record, failing NotRegistered.
func loadOwnPatient(tx *txn, caller string) (*types.PatientRecord, error) {
	var record types.PatientRecord
	found, err := tx.getJSON(patientKey(caller), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, types.NewNotRegisteredError("caller is not a registered patient")
	}
	return &record, nil
}

// loadPatient loads any patient record, failing NotFound.
func loadPatient(tx *txn, patient string) (*types.PatientRecord, error) {
	if err := validateIdentity("patient", patient); err != nil {
		return nil, err
	}
	var record types.PatientRecord
	found, err := tx.getJSON(patientKey(patient), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, types.NewNotFoundError("patient is not registered")
	}
	if record.Files == nil {
		record.Files = []string{}
	}
	return &record, nil
}

// loadAccessiblePatient loads a patient record the caller may read.
// Existence is checked before authorization.
func loadAccessiblePatient(tx *txn, caller, patient string) (*types.PatientRecord, error) {
	record, err := loadPatient(tx, patient)
	if err != nil {
		return nil, err
	}
	allowed, err := tx.patientAccess(caller, patient)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, types.NewAccessDeniedError("no active permission for this patient")
	}
	return record, nil
}
