package registry

import (
	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/types"
)

// RegisterDoctor creates the caller's doctor record
func (r *Registry) RegisterDoctor(l ledger.Ledger, caller string, profile types.DoctorProfile) error {
	return r.update(l, "RegisterDoctor", caller, caller, func(tx *txn) error {
		registered, err := tx.isDoctor(caller)
		if err != nil {
			return err
		}
		if registered {
			return types.NewAlreadyRegisteredError("doctor already registered")
		}

		record := types.DoctorRecord{Identity: caller, Profile: profile}
		if err := tx.putJSON(doctorKey(caller), record); err != nil {
			return err
		}
		if err := tx.appendIndex(doctorCountKey, doctorSeqKey, caller); err != nil {
			return err
		}

		tx.emit(types.EventDoctorRegistered, types.RegistryEvent{Caller: caller, Doctor: caller})
		return nil
	})
}

// EditDoctor overwrites the profile of doctor, which must be the caller.
// Editing any other doctor fails Unauthorized, whether or not the caller is
// a doctor.
func (r *Registry) EditDoctor(l ledger.Ledger, caller, doctor string, profile types.DoctorProfile) error {
	return r.update(l, "EditDoctor", caller, doctor, func(tx *txn) error {
		if !canMutateOwnProfile(caller, doctor) {
			return types.NewUnauthorizedError("doctors may only edit their own profile")
		}

		var record types.DoctorRecord
		found, err := tx.getJSON(doctorKey(caller), &record)
		if err != nil {
			return err
		}
		if !found {
			return types.NewNotRegisteredError("caller is not a registered doctor")
		}

		record.Profile = profile
		if err := tx.putJSON(doctorKey(caller), record); err != nil {
			return err
		}

		tx.emit(types.EventDoctorUpdated, types.RegistryEvent{Caller: caller, Doctor: caller})
		return nil
	})
}

// GetDoctor returns a doctor's record. Doctor profiles are public.
func (r *Registry) GetDoctor(l ledger.Ledger, caller, doctor string) (*types.DoctorRecord, error) {
	var out types.DoctorRecord
	err := r.view(l, "GetDoctor", caller, doctor, func(tx *txn) error {
		if err := validateIdentity("doctor", doctor); err != nil {
			return err
		}
		found, err := tx.getJSON(doctorKey(doctor), &out)
		if err != nil {
			return err
		}
		if !found {
			return types.NewNotFoundError("doctor is not registered")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDoctorIdentities returns every registered doctor in registration order
func (r *Registry) ListDoctorIdentities(l ledger.Ledger) ([]string, error) {
	var out []string
	err := r.publicView(l, "ListDoctorIdentities", func(tx *txn) error {
		ids, err := tx.readIndex(doctorCountKey, doctorSeqKey)
		out = ids
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountDoctors returns the number of registered doctors
func (r *Registry) CountDoctors(l ledger.Ledger) (uint64, error) {
	var n uint64
	err := r.publicView(l, "CountDoctors", func(tx *txn) error {
		var err error
		n, err = tx.getCounter(doctorCountKey)
		return err
	})
	return n, err
}
