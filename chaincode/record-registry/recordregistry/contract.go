package recordregistry

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/medrex/record-registry/internal/registry"
	"github.com/medrex/record-registry/pkg/logger"
	"github.com/medrex/record-registry/pkg/types"
)

// SmartContract exposes the record registry as chaincode transactions. The
// caller is the submitting client identity and the world state is the
// ledger.
type SmartContract struct {
	contractapi.Contract
	registry *registry.Registry
}

// NewSmartContract creates the record registry contract
func NewSmartContract(log *logger.Logger) *SmartContract {
	return &SmartContract{
		Contract: contractapi.Contract{Name: "RecordRegistry"},
		registry: registry.New(log),
	}
}

func (s *SmartContract) caller(ctx contractapi.TransactionContextInterface) (string, error) {
	id, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity: %w", err)
	}
	return id, nil
}

// RegisterPatient registers the calling identity as a patient
func (s *SmartContract) RegisterPatient(ctx contractapi.TransactionContextInterface, profile types.PatientProfile) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.RegisterPatient(ctx.GetStub(), caller, profile)
}

// EditPatient replaces the calling patient's profile
func (s *SmartContract) EditPatient(ctx contractapi.TransactionContextInterface, profile types.PatientProfile) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.EditPatient(ctx.GetStub(), caller, profile)
}

// GetPatient returns a patient record visible to the caller
func (s *SmartContract) GetPatient(ctx contractapi.TransactionContextInterface, patient string) (*types.PatientRecord, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.GetPatient(ctx.GetStub(), caller, patient)
}

// ListPatients returns all patient identities in registration order
func (s *SmartContract) ListPatients(ctx contractapi.TransactionContextInterface) ([]string, error) {
	return s.registry.ListPatientIdentities(ctx.GetStub())
}

// CountPatients returns the number of registered patients
func (s *SmartContract) CountPatients(ctx contractapi.TransactionContextInterface) (uint64, error) {
	return s.registry.CountPatients(ctx.GetStub())
}

// RegisterDoctor registers the calling identity as a doctor
func (s *SmartContract) RegisterDoctor(ctx contractapi.TransactionContextInterface, profile types.DoctorProfile) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.RegisterDoctor(ctx.GetStub(), caller, profile)
}

// EditDoctor replaces the profile of doctor, which must be the caller
func (s *SmartContract) EditDoctor(ctx contractapi.TransactionContextInterface, doctor string, profile types.DoctorProfile) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.EditDoctor(ctx.GetStub(), caller, doctor, profile)
}

// GetDoctor returns a doctor record
func (s *SmartContract) GetDoctor(ctx contractapi.TransactionContextInterface, doctor string) (*types.DoctorRecord, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.GetDoctor(ctx.GetStub(), caller, doctor)
}

// ListDoctors returns all doctor identities in registration order
func (s *SmartContract) ListDoctors(ctx contractapi.TransactionContextInterface) ([]string, error) {
	return s.registry.ListDoctorIdentities(ctx.GetStub())
}

// CountDoctors returns the number of registered doctors
func (s *SmartContract) CountDoctors(ctx contractapi.TransactionContextInterface) (uint64, error) {
	return s.registry.CountDoctors(ctx.GetStub())
}

// GrantPermission lets doctor read the calling patient's record
func (s *SmartContract) GrantPermission(ctx contractapi.TransactionContextInterface, doctor string) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.GrantPermission(ctx.GetStub(), caller, doctor)
}

// RevokePermission withdraws doctor's access to the calling patient's record
func (s *SmartContract) RevokePermission(ctx contractapi.TransactionContextInterface, doctor string) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.RevokePermission(ctx.GetStub(), caller, doctor)
}

// IsPermitted reports whether patient currently grants doctor access
func (s *SmartContract) IsPermitted(ctx contractapi.TransactionContextInterface, patient string, doctor string) (bool, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return false, err
	}
	return s.registry.IsPermitted(ctx.GetStub(), caller, patient, doctor)
}

// CreateAppointment records an appointment for patient owned by the calling
// doctor and returns its id
func (s *SmartContract) CreateAppointment(ctx contractapi.TransactionContextInterface, patient string, date string,
	appointmentTime string, diagnosis string, medication string, treatmentPlan string, status string) (uint64, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return 0, err
	}
	return s.registry.CreateAppointment(ctx.GetStub(), caller, types.AppointmentRequest{
		Patient:       patient,
		Date:          date,
		Time:          appointmentTime,
		Diagnosis:     diagnosis,
		Medication:    medication,
		TreatmentPlan: treatmentPlan,
		Status:        status,
	})
}

// ListAppointments returns the ids of appointments the calling doctor created
func (s *SmartContract) ListAppointments(ctx contractapi.TransactionContextInterface) ([]uint64, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.ListAppointmentsForDoctor(ctx.GetStub(), caller)
}

// ListPatientAppointments returns the ids of appointments naming patient
func (s *SmartContract) ListPatientAppointments(ctx contractapi.TransactionContextInterface, patient string) ([]uint64, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.ListAppointmentsForPatient(ctx.GetStub(), caller, patient)
}

// GetAppointment returns an appointment visible to the caller
func (s *SmartContract) GetAppointment(ctx contractapi.TransactionContextInterface, id uint64) (*types.Appointment, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.GetAppointment(ctx.GetStub(), caller, id)
}

// UploadPatientFile appends a file reference to the calling patient's record
func (s *SmartContract) UploadPatientFile(ctx contractapi.TransactionContextInterface, fileRef string) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.UploadPatientFile(ctx.GetStub(), caller, fileRef)
}

// UploadPatientFileByDoctor appends a file reference to a patient's record
// on behalf of a permitted doctor
func (s *SmartContract) UploadPatientFileByDoctor(ctx contractapi.TransactionContextInterface, patient string, fileRef string) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.UploadPatientFileByDoctor(ctx.GetStub(), caller, patient, fileRef)
}

// GetPatientFiles returns a patient's file references
func (s *SmartContract) GetPatientFiles(ctx contractapi.TransactionContextInterface, patient string) ([]string, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.ListPatientFiles(ctx.GetStub(), caller, patient)
}

// UploadAppointmentFile attaches a file reference to an appointment the
// caller created
func (s *SmartContract) UploadAppointmentFile(ctx contractapi.TransactionContextInterface, id uint64, fileRef string) error {
	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.registry.AttachAppointmentFile(ctx.GetStub(), caller, id, fileRef)
}

// GetAppointmentFiles returns an appointment's file references
func (s *SmartContract) GetAppointmentFiles(ctx contractapi.TransactionContextInterface, id uint64) ([]string, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.ListAppointmentFiles(ctx.GetStub(), caller, id)
}
