package registry

import (
	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/types"
)

// GrantPermission lets doctor read the calling patient's record. Granting an
// already active permission succeeds without writing.
func (r *Registry) GrantPermission(l ledger.Ledger, caller, doctor string) error {
	return r.update(l, "GrantPermission", caller, caller, func(tx *txn) error {
		if _, err := loadOwnPatient(tx, caller); err != nil {
			return err
		}
		if err := validateIdentity("doctor", doctor); err != nil {
			return err
		}
		isDoctor, err := tx.isDoctor(doctor)
		if err != nil {
			return err
		}
		if !isDoctor {
			return types.NewNotRegisteredError("doctor is not registered")
		}

		active, err := tx.grantActive(caller, doctor)
		if err != nil || active {
			return err
		}

		grant := types.PermissionGrant{Patient: caller, Doctor: doctor, Active: true}
		if err := tx.putJSON(grantKey(caller, doctor), grant); err != nil {
			return err
		}

		tx.emit(types.EventPermissionGranted, types.RegistryEvent{Caller: caller, Patient: caller, Doctor: doctor})
		return nil
	})
}

// RevokePermission withdraws doctor's access to the calling patient's
// record. Revoking a missing or already revoked grant succeeds without
// writing.
func (r *Registry) RevokePermission(l ledger.Ledger, caller, doctor string) error {
	return r.update(l, "RevokePermission", caller, caller, func(tx *txn) error {
		if _, err := loadOwnPatient(tx, caller); err != nil {
			return err
		}
		if err := validateIdentity("doctor", doctor); err != nil {
			return err
		}

		active, err := tx.grantActive(caller, doctor)
		if err != nil || !active {
			return err
		}

		grant := types.PermissionGrant{Patient: caller, Doctor: doctor, Active: false}
		if err := tx.putJSON(grantKey(caller, doctor), grant); err != nil {
			return err
		}

		tx.emit(types.EventPermissionRevoked, types.RegistryEvent{Caller: caller, Patient: caller, Doctor: doctor})
		return nil
	})
}

// IsPermitted reports whether patient currently grants doctor access
func (r *Registry) IsPermitted(l ledger.Ledger, caller, patient, doctor string) (bool, error) {
	var active bool
	err := r.view(l, "IsPermitted", caller, patient, func(tx *txn) error {
		if err := validateIdentity("patient", patient); err != nil {
			return err
		}
		if err := validateIdentity("doctor", doctor); err != nil {
			return err
		}
		var err error
		active, err = tx.grantActive(patient, doctor)
		return err
	})
	if err != nil {
		return false, err
	}
	return active, nil
}
