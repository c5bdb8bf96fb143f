package recordregistry

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/record-registry/pkg/logger"
	"github.com/medrex/record-registry/pkg/types"
)

const (
	patientID = "eDUwOTo6Q049cGF0aWVudDE="
	doctorID  = "eDUwOTo6Q049ZG9jdG9yMQ=="
	otherDoc  = "eDUwOTo6Q049ZG9jdG9yMg=="
)

// fakeIdentity is a cid.ClientIdentity returning a fixed ID
type fakeIdentity struct {
	id  string
	err error
}

func (f *fakeIdentity) GetID() (string, error)    { return f.id, f.err }
func (f *fakeIdentity) GetMSPID() (string, error) { return "Org1MSP", nil }
func (f *fakeIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeIdentity) AssertAttributeValue(string, string) error { return nil }
func (f *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, nil
}

type harness struct {
	t        *testing.T
	stub     *shimtest.MockStub
	contract *SmartContract
	txn      int
}

func newHarness(t *testing.T) *harness {
	contract := NewSmartContract(logger.New("panic"))
	return &harness{
		t:        t,
		stub:     shimtest.NewMockStub("record-registry", nil),
		contract: contract,
	}
}

// as runs fn as one transaction submitted by caller.
func (h *harness) as(caller string, fn func(ctx contractapi.TransactionContextInterface) error) error {
	h.txn++
	txID := fmt.Sprintf("tx%d", h.txn)

	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(h.stub)
	ctx.SetClientIdentity(&fakeIdentity{id: caller})

	h.stub.MockTransactionStart(txID)
	defer h.stub.MockTransactionEnd(txID)
	return fn(ctx)
}

func (h *harness) event() (string, types.RegistryEvent) {
	select {
	case ev := <-h.stub.ChaincodeEventsChannel:
		var payload types.RegistryEvent
		require.NoError(h.t, json.Unmarshal(ev.Payload, &payload))
		return ev.EventName, payload
	default:
		h.t.Fatal("expected a chaincode event")
		return "", types.RegistryEvent{}
	}
}

func (h *harness) noEvent() {
	select {
	case ev := <-h.stub.ChaincodeEventsChannel:
		h.t.Fatalf("unexpected chaincode event %s", ev.EventName)
	default:
	}
}

func patientProfile(name string) types.PatientProfile {
	return types.PatientProfile{
		IdentificationNumber:  "IC123",
		Name:                  name,
		Phone:                 "1234567890",
		Sex:                   "Male",
		DateOfBirth:           "1990-01-01",
		Height:                "180cm",
		Weight:                "75kg",
		Address:               "123 Street",
		BloodType:             "O+",
		Allergies:             "Peanuts",
		Medication:            "Ibuprofen",
		EmergencyContactName:  "Jane Doe",
		EmergencyContactPhone: "0987654321",
	}
}

func doctorProfile(name string) types.DoctorProfile {
	return types.DoctorProfile{
		IdentificationNumber: "IC456",
		Name:                 name,
		Phone:                "9876543210",
		Sex:                  "Female",
		DateOfBirth:          "1980-06-01",
		Qualification:        "MBBS",
		Specialization:       "Cardiology",
	}
}

func (h *harness) registerAll() {
	c := h.contract
	require.NoError(h.t, h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		return c.RegisterPatient(ctx, patientProfile("John Doe"))
	}))
	require.NoError(h.t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		return c.RegisterDoctor(ctx, doctorProfile("Dr. Smith"))
	}))
	require.NoError(h.t, h.as(otherDoc, func(ctx contractapi.TransactionContextInterface) error {
		return c.RegisterDoctor(ctx, doctorProfile("Dr. Other"))
	}))
	for i := 0; i < 3; i++ {
		h.event()
	}
}

func TestRegisterPatient(t *testing.T) {
	h := newHarness(t)
	c := h.contract
	h.registerAll()

	var record *types.PatientRecord
	require.NoError(t, h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		record, err = c.GetPatient(ctx, patientID)
		return err
	}))
	assert.Equal(t, "John Doe", record.Profile.Name)

	err := h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		return c.RegisterPatient(ctx, patientProfile("Again"))
	})
	assert.ErrorIs(t, err, types.ErrAlreadyRegistered)
	h.noEvent()

	var count uint64
	var ids []string
	require.NoError(t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		if count, err = c.CountPatients(ctx); err != nil {
			return err
		}
		ids, err = c.ListPatients(ctx)
		return err
	}))
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, []string{patientID}, ids)
}

func TestGrantRevoke(t *testing.T) {
	h := newHarness(t)
	c := h.contract
	h.registerAll()

	read := func() error {
		return h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
			_, err := c.GetPatient(ctx, patientID)
			return err
		})
	}

	assert.ErrorIs(t, read(), types.ErrAccessDenied)

	require.NoError(t, h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		return c.GrantPermission(ctx, doctorID)
	}))
	name, payload := h.event()
	assert.Equal(t, types.EventPermissionGranted, name)
	assert.Equal(t, doctorID, payload.Doctor)

	assert.NoError(t, read())

	var permitted bool
	require.NoError(t, h.as(otherDoc, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		permitted, err = c.IsPermitted(ctx, patientID, doctorID)
		return err
	}))
	assert.True(t, permitted)

	require.NoError(t, h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		return c.RevokePermission(ctx, doctorID)
	}))
	name, _ = h.event()
	assert.Equal(t, types.EventPermissionRevoked, name)

	err := read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestEditDoctor_Unauthorized(t *testing.T) {
	h := newHarness(t)
	c := h.contract
	h.registerAll()

	err := h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		return c.EditDoctor(ctx, otherDoc, doctorProfile("Dr. B Updated"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
	h.noEvent()

	var doc *types.DoctorRecord
	require.NoError(t, h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		doc, err = c.GetDoctor(ctx, otherDoc)
		return err
	}))
	assert.Equal(t, "Dr. Other", doc.Profile.Name)

	require.NoError(t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		return c.EditDoctor(ctx, doctorID, doctorProfile("Dr. Smith Updated"))
	}))
	name, _ := h.event()
	assert.Equal(t, types.EventDoctorUpdated, name)
}

func TestAppointmentFiles(t *testing.T) {
	h := newHarness(t)
	c := h.contract
	h.registerAll()

	var ids []uint64
	require.NoError(t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		if _, err := c.CreateAppointment(ctx, patientID, "2025-06-20", "2:00 PM", "Checkup", "None", "Routine", "Scheduled"); err != nil {
			return err
		}
		var err error
		ids, err = c.ListAppointments(ctx)
		return err
	}))
	require.Equal(t, []uint64{0}, ids)
	name, payload := h.event()
	assert.Equal(t, types.EventAppointmentCreated, name)
	require.NotNil(t, payload.AppointmentID)
	assert.Equal(t, uint64(0), *payload.AppointmentID)

	require.NoError(t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		return c.UploadAppointmentFile(ctx, ids[0], "Qm123")
	}))
	h.event()

	var files []string
	require.NoError(t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		files, err = c.GetAppointmentFiles(ctx, ids[0])
		return err
	}))
	assert.Equal(t, []string{"Qm123"}, files)

	err := h.as(otherDoc, func(ctx contractapi.TransactionContextInterface) error {
		_, err := c.GetAppointmentFiles(ctx, ids[0])
		return err
	})
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	var appt *types.Appointment
	var patientAppts []uint64
	require.NoError(t, h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		if appt, err = c.GetAppointment(ctx, ids[0]); err != nil {
			return err
		}
		patientAppts, err = c.ListPatientAppointments(ctx, patientID)
		return err
	}))
	assert.Equal(t, "Checkup", appt.Diagnosis)
	assert.Equal(t, []uint64{0}, patientAppts)
}

func TestPatientFiles(t *testing.T) {
	h := newHarness(t)
	c := h.contract
	h.registerAll()

	require.NoError(t, h.as(patientID, func(ctx contractapi.TransactionContextInterface) error {
		if err := c.UploadPatientFile(ctx, "QmPatientFileHash123"); err != nil {
			return err
		}
		return c.GrantPermission(ctx, doctorID)
	}))

	require.NoError(t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		return c.UploadPatientFileByDoctor(ctx, patientID, "QmDoctorToPatientFile")
	}))

	var files []string
	require.NoError(t, h.as(doctorID, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		files, err = c.GetPatientFiles(ctx, patientID)
		return err
	}))
	assert.Equal(t, []string{"QmPatientFileHash123", "QmDoctorToPatientFile"}, files)

	err := h.as(otherDoc, func(ctx contractapi.TransactionContextInterface) error {
		return c.UploadPatientFileByDoctor(ctx, patientID, "QmNope")
	})
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestCallerIdentityError(t *testing.T) {
	h := newHarness(t)

	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(h.stub)
	ctx.SetClientIdentity(&fakeIdentity{err: errors.New("no creator")})

	err := h.contract.RegisterPatient(ctx, patientProfile("John Doe"))
	assert.ErrorContains(t, err, "failed to get client identity")
}
