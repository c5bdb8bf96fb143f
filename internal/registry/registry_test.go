package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/logger"
	"github.com/medrex/record-registry/pkg/types"
)

const (
	alice   = "x509::CN=alice::CN=ca"
	bob     = "x509::CN=bob::CN=ca"
	drSmith = "x509::CN=dr-smith::CN=ca"
	drJones = "x509::CN=dr-jones::CN=ca"
)

func aliceProfile() types.PatientProfile {
	return types.PatientProfile{
		IdentificationNumber:  "005",
		Name:                  "Alice",
		Phone:                 "0198881111",
		Sex:                   "Female",
		DateOfBirth:           "1994-04-04",
		Height:                "160",
		Weight:                "50",
		Address:               "789 Road",
		BloodType:             "B+",
		Allergies:             "None",
		Medication:            "None",
		EmergencyContactName:  "Nina",
		EmergencyContactPhone: "0131122334",
	}
}

func doctorProfile(name string) types.DoctorProfile {
	return types.DoctorProfile{
		IdentificationNumber: "006",
		Name:                 name,
		Phone:                "015",
		Sex:                  "Male",
		DateOfBirth:          "1975-12-12",
		Qualification:        "MBBS",
		Specialization:       "General",
	}
}

func newTestRegistry(opts ...Option) (*Registry, *ledger.Memory) {
	return New(logger.New("panic"), opts...), ledger.NewMemory()
}

// seed registers alice as a patient and drSmith and drJones as doctors.
func seed(t *testing.T, r *Registry, l ledger.Ledger) {
	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))
	require.NoError(t, r.RegisterDoctor(l, drSmith, doctorProfile("Dr. Smith")))
	require.NoError(t, r.RegisterDoctor(l, drJones, doctorProfile("Dr. Jones")))
}

func TestRegisterPatient(t *testing.T) {
	r, l := newTestRegistry()

	before, err := r.CountPatients(l)
	require.NoError(t, err)

	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))

	record, err := r.GetPatient(l, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, record.Identity)
	assert.Equal(t, aliceProfile(), record.Profile)
	assert.Equal(t, []string{}, record.Files)

	after, err := r.CountPatients(l)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestRegisterPatient_Twice(t *testing.T) {
	r, l := newTestRegistry()
	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))

	snapshot := l.Snapshot()
	events := len(l.Events())

	profile := aliceProfile()
	profile.Name = "Mallory"
	err := r.RegisterPatient(l, alice, profile)
	assert.ErrorIs(t, err, types.ErrAlreadyRegistered)
	assert.Contains(t, err.Error(), "Already registered")

	assert.Equal(t, snapshot, l.Snapshot())
	assert.Len(t, l.Events(), events)
}

func TestListPatientIdentities(t *testing.T) {
	r, l := newTestRegistry()

	ids, err := r.ListPatientIdentities(l)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	require.NoError(t, r.RegisterPatient(l, bob, aliceProfile()))
	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))

	ids, err = r.ListPatientIdentities(l)
	require.NoError(t, err)
	assert.Equal(t, []string{bob, alice}, ids)

	count, err := r.CountPatients(l)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(ids)), count)
}

func TestEditPatient(t *testing.T) {
	r, l := newTestRegistry()

	err := r.EditPatient(l, alice, aliceProfile())
	assert.ErrorIs(t, err, types.ErrNotRegistered)

	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))
	require.NoError(t, r.UploadPatientFile(l, alice, "QmA"))

	edited := aliceProfile()
	edited.Name = "Alice Edited"
	edited.Address = "New Addr"
	require.NoError(t, r.EditPatient(l, alice, edited))

	record, err := r.GetPatient(l, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, edited, record.Profile)
	assert.Equal(t, []string{"QmA"}, record.Files)

	count, err := r.CountPatients(l)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestGetPatient_NotFoundBeforeAccessDenied(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	_, err := r.GetPatient(l, drSmith, bob)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = r.GetPatient(l, drSmith, alice)
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestGetPatient_OtherPatientDenied(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)
	require.NoError(t, r.RegisterPatient(l, bob, aliceProfile()))

	_, err := r.GetPatient(l, bob, alice)
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestGrantAndRevoke_AliceScenario(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	_, err := r.GetPatient(l, drSmith, alice)
	require.ErrorIs(t, err, types.ErrAccessDenied)

	require.NoError(t, r.GrantPermission(l, alice, drSmith))

	record, err := r.GetPatient(l, drSmith, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", record.Profile.Name)

	require.NoError(t, r.RevokePermission(l, alice, drSmith))

	_, err = r.GetPatient(l, drSmith, alice)
	assert.ErrorIs(t, err, types.ErrAccessDenied)
	assert.Contains(t, err.Error(), "Access denied")

	own, err := r.GetPatient(l, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, record, own)
}

func TestGrantPermission_Validation(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	err := r.GrantPermission(l, bob, drSmith)
	assert.ErrorIs(t, err, types.ErrNotRegistered)

	err = r.GrantPermission(l, alice, "x509::CN=nobody")
	assert.ErrorIs(t, err, types.ErrNotRegistered)

	err = r.GrantPermission(l, alice, "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	permitted, err := r.IsPermitted(l, alice, alice, drSmith)
	require.NoError(t, err)
	assert.False(t, permitted)
}

func TestGrantPermission_Idempotent(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	require.NoError(t, r.GrantPermission(l, alice, drSmith))
	snapshot := l.Snapshot()
	events := len(l.Events())

	require.NoError(t, r.GrantPermission(l, alice, drSmith))
	assert.Equal(t, snapshot, l.Snapshot())
	assert.Len(t, l.Events(), events)

	permitted, err := r.IsPermitted(l, drJones, alice, drSmith)
	require.NoError(t, err)
	assert.True(t, permitted)
}

func TestRevokePermission_Idempotent(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	snapshot := l.Snapshot()
	require.NoError(t, r.RevokePermission(l, alice, drSmith))
	require.NoError(t, r.RevokePermission(l, alice, "x509::CN=never-registered"))
	assert.Equal(t, snapshot, l.Snapshot())

	require.NoError(t, r.GrantPermission(l, alice, drSmith))
	require.NoError(t, r.RevokePermission(l, alice, drSmith))
	snapshot = l.Snapshot()
	require.NoError(t, r.RevokePermission(l, alice, drSmith))
	assert.Equal(t, snapshot, l.Snapshot())

	err := r.RevokePermission(l, bob, drSmith)
	assert.ErrorIs(t, err, types.ErrNotRegistered)
}

func TestGrant_DoesNotLeakAcrossPatients(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)
	require.NoError(t, r.RegisterPatient(l, bob, aliceProfile()))

	require.NoError(t, r.GrantPermission(l, alice, drSmith))

	_, err := r.GetPatient(l, drSmith, bob)
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	_, err = r.GetPatient(l, drJones, alice)
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestEditDoctor(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	updated := doctorProfile("Dr. Smith Updated")
	require.NoError(t, r.EditDoctor(l, drSmith, drSmith, updated))

	doc, err := r.GetDoctor(l, alice, drSmith)
	require.NoError(t, err)
	assert.Equal(t, updated, doc.Profile)

	err = r.EditDoctor(l, bob, bob, updated)
	assert.ErrorIs(t, err, types.ErrNotRegistered)
}

func TestEditDoctor_OtherDoctorUnauthorized(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	before, err := r.GetDoctor(l, drJones, drJones)
	require.NoError(t, err)
	snapshot := l.Snapshot()

	err = r.EditDoctor(l, drSmith, drJones, doctorProfile("Dr. B Updated"))
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Contains(t, err.Error(), "Unauthorized")

	after, err := r.GetDoctor(l, drJones, drJones)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, snapshot, l.Snapshot())

	// a grant from a patient never widens profile edits
	require.NoError(t, r.GrantPermission(l, alice, drSmith))
	err = r.EditDoctor(l, drSmith, drJones, doctorProfile("Dr. B Updated"))
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestGetDoctor(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	doc, err := r.GetDoctor(l, bob, drSmith)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Smith", doc.Profile.Name)

	_, err = r.GetDoctor(l, bob, "x509::CN=nobody")
	assert.ErrorIs(t, err, types.ErrNotFound)

	ids, err := r.ListDoctorIdentities(l)
	require.NoError(t, err)
	assert.Equal(t, []string{drSmith, drJones}, ids)

	count, err := r.CountDoctors(l)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	err = r.RegisterDoctor(l, drSmith, doctorProfile("again"))
	assert.ErrorIs(t, err, types.ErrAlreadyRegistered)
}

func TestCreateAppointment_Validation(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	_, err := r.CreateAppointment(l, alice, types.AppointmentRequest{Patient: alice})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = r.CreateAppointment(l, drSmith, types.AppointmentRequest{Patient: bob})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = r.ListAppointmentsForDoctor(l, alice)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestCreateAppointment_GlobalIDs(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)
	require.NoError(t, r.RegisterPatient(l, bob, aliceProfile()))

	var smithIDs, jonesIDs []uint64
	for i, tc := range []struct {
		doctor  string
		patient string
	}{
		{drSmith, alice},
		{drJones, bob},
		{drSmith, bob},
		{drJones, alice},
		{drSmith, alice},
	} {
		id, err := r.CreateAppointment(l, tc.doctor, types.AppointmentRequest{
			Patient: tc.patient,
			Date:    "2025-06-15",
			Time:    "10:30 AM",
			Status:  string(types.StatusPending),
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), id)

		if tc.doctor == drSmith {
			smithIDs = append(smithIDs, id)
		} else {
			jonesIDs = append(jonesIDs, id)
		}
	}

	ids, err := r.ListAppointmentsForDoctor(l, drSmith)
	require.NoError(t, err)
	assert.Equal(t, smithIDs, ids)

	ids, err = r.ListAppointmentsForDoctor(l, drJones)
	require.NoError(t, err)
	assert.Equal(t, jonesIDs, ids)

	ids, err = r.ListAppointmentsForPatient(l, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3, 4}, ids)
}

func TestCreateAppointment_NoGrantNeeded(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	id, err := r.CreateAppointment(l, drSmith, types.AppointmentRequest{
		Patient:       alice,
		Date:          "2025-06-15",
		Time:          "10:30 AM",
		Diagnosis:     "Skin Infection",
		Medication:    "Amoxicillin",
		TreatmentPlan: "Topical Treatment",
		Status:        "Pending",
	})
	require.NoError(t, err)

	appt, err := r.GetAppointment(l, drSmith, id)
	require.NoError(t, err)
	assert.Equal(t, drSmith, appt.Doctor)
	assert.Equal(t, "Skin Infection", appt.Diagnosis)
	assert.Equal(t, "Amoxicillin", appt.Medication)

	// the creator still cannot read the patient's profile
	_, err = r.GetPatient(l, drSmith, alice)
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestListAppointmentsForPatient_Access(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	ids, err := r.ListAppointmentsForPatient(l, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{}, ids)

	_, err = r.ListAppointmentsForPatient(l, drJones, alice)
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	_, err = r.ListAppointmentsForPatient(l, drJones, bob)
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, r.GrantPermission(l, alice, drJones))
	_, err = r.ListAppointmentsForPatient(l, drJones, alice)
	assert.NoError(t, err)
}

func TestAppointment_CheckupScenario(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	id, err := r.CreateAppointment(l, drSmith, types.AppointmentRequest{
		Patient:       alice,
		Date:          "2025-06-20",
		Time:          "2:00 PM",
		Diagnosis:     "Checkup",
		Medication:    "None",
		TreatmentPlan: "Routine",
		Status:        "Scheduled",
	})
	require.NoError(t, err)

	require.NoError(t, r.AttachAppointmentFile(l, drSmith, id, "Qm123"))

	files, err := r.ListAppointmentFiles(l, drSmith, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Qm123"}, files)

	_, err = r.ListAppointmentFiles(l, drJones, id)
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	files, err = r.ListAppointmentFiles(l, alice, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Qm123"}, files)

	require.NoError(t, r.GrantPermission(l, alice, drJones))
	appt, err := r.GetAppointment(l, drJones, id)
	require.NoError(t, err)
	assert.Equal(t, "Checkup", appt.Diagnosis)
}

func TestAttachAppointmentFile_OnlyCreator(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)
	require.NoError(t, r.GrantPermission(l, alice, drJones))

	id, err := r.CreateAppointment(l, drSmith, types.AppointmentRequest{Patient: alice})
	require.NoError(t, err)

	err = r.AttachAppointmentFile(l, drJones, id, "QmX")
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	err = r.AttachAppointmentFile(l, alice, id, "QmX")
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	err = r.AttachAppointmentFile(l, drSmith, id+1, "QmX")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = r.GetAppointment(l, drSmith, id+1)
	assert.ErrorIs(t, err, types.ErrNotFound)

	files, err := r.ListAppointmentFiles(l, drSmith, id)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadPatientFile_Appends(t *testing.T) {
	r, l := newTestRegistry()

	err := r.UploadPatientFile(l, alice, "QmPatientFileHash123")
	assert.ErrorIs(t, err, types.ErrNotRegistered)

	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))
	require.NoError(t, r.UploadPatientFile(l, alice, "QmPatientFileHash123"))
	require.NoError(t, r.UploadPatientFile(l, alice, "QmSecond"))

	files, err := r.ListPatientFiles(l, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"QmPatientFileHash123", "QmSecond"}, files)

	err = r.UploadPatientFile(l, alice, "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestUploadPatientFileByDoctor(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)

	err := r.UploadPatientFileByDoctor(l, drSmith, alice, "QmDoctorToPatientFile")
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	err = r.UploadPatientFileByDoctor(l, drSmith, bob, "QmDoctorToPatientFile")
	assert.ErrorIs(t, err, types.ErrNotFound)

	// patients use UploadPatientFile for their own record
	err = r.UploadPatientFileByDoctor(l, alice, alice, "QmSelf")
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	require.NoError(t, r.GrantPermission(l, alice, drSmith))
	require.NoError(t, r.UploadPatientFileByDoctor(l, drSmith, alice, "QmDoctorToPatientFile"))

	files, err := r.ListPatientFiles(l, drSmith, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"QmDoctorToPatientFile"}, files)

	_, err = r.ListPatientFiles(l, drJones, alice)
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	require.NoError(t, r.RevokePermission(l, alice, drSmith))
	err = r.UploadPatientFileByDoctor(l, drSmith, alice, "QmLate")
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestCallerValidation(t *testing.T) {
	r, l := newTestRegistry()

	err := r.RegisterPatient(l, "", aliceProfile())
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	err = r.RegisterPatient(l, "alice\x00doctor", aliceProfile())
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = r.GetPatient(l, alice, "alice\x00x")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	assert.Empty(t, l.Snapshot())
}

func TestEvents(t *testing.T) {
	r, l := newTestRegistry()
	seed(t, r, l)
	require.NoError(t, r.GrantPermission(l, alice, drSmith))
	id, err := r.CreateAppointment(l, drSmith, types.AppointmentRequest{Patient: alice})
	require.NoError(t, err)

	events := l.Events()
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{
		types.EventPatientRegistered,
		types.EventDoctorRegistered,
		types.EventDoctorRegistered,
		types.EventPermissionGranted,
		types.EventAppointmentCreated,
	}, names)

	var payload types.RegistryEvent
	require.NoError(t, json.Unmarshal(events[4].Payload, &payload))
	assert.Equal(t, drSmith, payload.Caller)
	assert.Equal(t, alice, payload.Patient)
	require.NotNil(t, payload.AppointmentID)
	assert.Equal(t, id, *payload.AppointmentID)

	// reads emit nothing
	_, err = r.GetPatient(l, alice, alice)
	require.NoError(t, err)
	assert.Len(t, l.Events(), 5)
}

// failingLedger fails every read with readErr.
type failingLedger struct {
	*ledger.Memory
	readErr error
}

func (f *failingLedger) GetState(key string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.Memory.GetState(key)
}

type brokenBatchLedger struct {
	*ledger.Memory
}

func (b *brokenBatchLedger) WriteBatch(writes []ledger.Write) error {
	return errors.New("disk full")
}

func TestLedgerFailures(t *testing.T) {
	r := New(logger.New("panic"))

	failing := &failingLedger{Memory: ledger.NewMemory(), readErr: errors.New("peer unavailable")}
	err := r.RegisterPatient(failing, alice, aliceProfile())
	assert.ErrorIs(t, err, types.ErrInternal)
	assert.Equal(t, types.ErrCodeInternalError, types.ErrorCode(err))

	broken := &brokenBatchLedger{Memory: ledger.NewMemory()}
	err = r.RegisterPatient(broken, alice, aliceProfile())
	assert.ErrorIs(t, err, types.ErrInternal)
	assert.Empty(t, broken.Snapshot())
	assert.Empty(t, broken.Events())
}

// stubLedger exposes only GetState/PutState, like a plain key/value store.
type stubLedger struct {
	state map[string][]byte
}

func (s *stubLedger) GetState(key string) ([]byte, error) { return s.state[key], nil }

func (s *stubLedger) PutState(key string, value []byte) error {
	s.state[key] = value
	return nil
}

func TestPlainLedger(t *testing.T) {
	r := New(logger.New("panic"))
	l := &stubLedger{state: map[string][]byte{}}

	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))
	assert.Equal(t, []byte("1"), l.state[patientCountKey])
	assert.Equal(t, []byte(alice), l.state[patientSeqKey(0)])

	record, err := r.GetPatient(l, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", record.Profile.Name)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObserveOperation(operation, outcome string, duration time.Duration) {
	m.Called(operation, outcome)
}

func TestObserver(t *testing.T) {
	obs := new(mockObserver)
	obs.On("ObserveOperation", "RegisterPatient", "OK").Once()
	obs.On("ObserveOperation", "RegisterPatient", types.ErrCodeAlreadyRegistered).Once()
	obs.On("ObserveOperation", "CountPatients", "OK").Once()

	r, l := newTestRegistry(WithObserver(obs))
	require.NoError(t, r.RegisterPatient(l, alice, aliceProfile()))
	require.Error(t, r.RegisterPatient(l, alice, aliceProfile()))
	_, err := r.CountPatients(l)
	require.NoError(t, err)

	obs.AssertExpectations(t)
}
