package interfaces

import (
	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/types"
)

// RecordRegistry defines the access-controlled registry operations. Every
// call runs as one atomic operation over the given ledger on behalf of
// caller.
type RecordRegistry interface {
	// Patient registry
	RegisterPatient(l ledger.Ledger, caller string, profile types.PatientProfile) error
	EditPatient(l ledger.Ledger, caller string, profile types.PatientProfile) error
	GetPatient(l ledger.Ledger, caller, patient string) (*types.PatientRecord, error)
	ListPatientIdentities(l ledger.Ledger) ([]string, error)
	CountPatients(l ledger.Ledger) (uint64, error)

	// Doctor registry
	RegisterDoctor(l ledger.Ledger, caller string, profile types.DoctorProfile) error
	EditDoctor(l ledger.Ledger, caller, doctor string, profile types.DoctorProfile) error
	GetDoctor(l ledger.Ledger, caller, doctor string) (*types.DoctorRecord, error)
	ListDoctorIdentities(l ledger.Ledger) ([]string, error)
	CountDoctors(l ledger.Ledger) (uint64, error)

	// Permission ledger
	GrantPermission(l ledger.Ledger, caller, doctor string) error
	RevokePermission(l ledger.Ledger, caller, doctor string) error
	IsPermitted(l ledger.Ledger, caller, patient, doctor string) (bool, error)

	// Appointment store
	CreateAppointment(l ledger.Ledger, caller string, req types.AppointmentRequest) (uint64, error)
	ListAppointmentsForDoctor(l ledger.Ledger, caller string) ([]uint64, error)
	ListAppointmentsForPatient(l ledger.Ledger, caller, patient string) ([]uint64, error)
	GetAppointment(l ledger.Ledger, caller string, id uint64) (*types.Appointment, error)

	// Files
	UploadPatientFile(l ledger.Ledger, caller, ref string) error
	UploadPatientFileByDoctor(l ledger.Ledger, caller, patient, ref string) error
	ListPatientFiles(l ledger.Ledger, caller, patient string) ([]string, error)
	AttachAppointmentFile(l ledger.Ledger, caller string, id uint64, ref string) error
	ListAppointmentFiles(l ledger.Ledger, caller string, id uint64) ([]string, error)
}
