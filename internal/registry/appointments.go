package registry

import (
	"fmt"
	"strconv"

	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/types"
)

func appointmentResource(id uint64) string {
	return fmt.Sprintf("appointment/%d", id)
}

// CreateAppointment stores a new appointment owned by the calling doctor and
// returns its id. Ids are global, start at 0 and are never reused. No
// permission grant is needed.
func (r *Registry) CreateAppointment(l ledger.Ledger, caller string, req types.AppointmentRequest) (uint64, error) {
	var id uint64
	err := r.update(l, "CreateAppointment", caller, req.Patient, func(tx *txn) error {
		isDoctor, err := tx.isDoctor(caller)
		if err != nil {
			return err
		}
		if !isDoctor {
			return types.NewUnauthorizedError("only registered doctors may create appointments")
		}
		if _, err := loadPatient(tx, req.Patient); err != nil {
			return err
		}

		id, err = tx.getCounter(appointmentNextKey)
		if err != nil {
			return err
		}

		appt := types.Appointment{
			ID:            id,
			Doctor:        caller,
			Patient:       req.Patient,
			Date:          req.Date,
			Time:          req.Time,
			Diagnosis:     req.Diagnosis,
			Medication:    req.Medication,
			TreatmentPlan: req.TreatmentPlan,
			Status:        req.Status,
			Files:         []string{},
		}
		if err := tx.putJSON(appointmentKey(id), appt); err != nil {
			return err
		}
		tx.putCounter(appointmentNextKey, id+1)

		ref := strconv.FormatUint(id, 10)
		if err := tx.appendIndex(doctorAppointmentCountKey(caller), func(n uint64) string {
			return doctorAppointmentKey(caller, n)
		}, ref); err != nil {
			return err
		}
		if err := tx.appendIndex(patientAppointmentCountKey(req.Patient), func(n uint64) string {
			return patientAppointmentKey(req.Patient, n)
		}, ref); err != nil {
			return err
		}

		apptID := id
		tx.emit(types.EventAppointmentCreated, types.RegistryEvent{
			Caller:        caller,
			Patient:       req.Patient,
			Doctor:        caller,
			AppointmentID: &apptID,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListAppointmentsForDoctor returns the ids the calling doctor created, in
// creation order.
func (r *Registry) ListAppointmentsForDoctor(l ledger.Ledger, caller string) ([]uint64, error) {
	var out []uint64
	err := r.view(l, "ListAppointmentsForDoctor", caller, caller, func(tx *txn) error {
		isDoctor, err := tx.isDoctor(caller)
		if err != nil {
			return err
		}
		if !isDoctor {
			return types.NewUnauthorizedError("only registered doctors have appointment lists")
		}
		out, err = readAppointmentIndex(tx, doctorAppointmentCountKey(caller), func(n uint64) string {
			return doctorAppointmentKey(caller, n)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListAppointmentsForPatient returns the ids of appointments naming patient,
// in creation order, to anyone who may read the patient's record.
func (r *Registry) ListAppointmentsForPatient(l ledger.Ledger, caller, patient string) ([]uint64, error) {
	var out []uint64
	err := r.view(l, "ListAppointmentsForPatient", caller, patient, func(tx *txn) error {
		if _, err := loadAccessiblePatient(tx, caller, patient); err != nil {
			return err
		}
		var err error
		out, err = readAppointmentIndex(tx, patientAppointmentCountKey(patient), func(n uint64) string {
			return patientAppointmentKey(patient, n)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAppointment returns an appointment to its creator, its patient, or a
// doctor the patient has granted access.
func (r *Registry) GetAppointment(l ledger.Ledger, caller string, id uint64) (*types.Appointment, error) {
	var out *types.Appointment
	err := r.view(l, "GetAppointment", caller, appointmentResource(id), func(tx *txn) error {
		appt, err := loadAccessibleAppointment(tx, caller, id)
		out = appt
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadAppointment(tx *txn, id uint64) (*types.Appointment, error) {
	var appt types.Appointment
	found, err := tx.getJSON(appointmentKey(id), &appt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, types.NewNotFoundError(fmt.Sprintf("appointment %d does not exist", id))
	}
	if appt.Files == nil {
		appt.Files = []string{}
	}
	return &appt, nil
}

func loadAccessibleAppointment(tx *txn, caller string, id uint64) (*types.Appointment, error) {
	appt, err := loadAppointment(tx, id)
	if err != nil {
		return nil, err
	}
	allowed, err := tx.appointmentAccess(caller, appt)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, types.NewAccessDeniedError("no active permission for this appointment's patient")
	}
	return appt, nil
}

func readAppointmentIndex(tx *txn, countKey string, itemKey func(uint64) string) ([]uint64, error) {
	refs, err := tx.readIndex(countKey, itemKey)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(refs))
	for _, ref := range refs {
		id, err := strconv.ParseUint(ref, 10, 64)
		if err != nil {
			return nil, types.NewInternalError("corrupt appointment index", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
