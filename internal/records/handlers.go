package records

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/medrex/record-registry/pkg/types"
)

// fileRequest is the body of file upload and attach requests
type fileRequest struct {
	FileRef string `json:"file_ref"`
}

// handleRegisterPatient handles POST /patients
func (s *Service) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var profile types.PatientProfile
	if !s.decodeJSON(w, r, &profile) {
		return
	}

	caller := s.caller(r)
	err := s.update(r, "RegisterPatient", func() error {
		return s.registry.RegisterPatient(s.store, caller, profile)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{"identity": caller})
}

// handleEditPatient handles PUT /patients/me
func (s *Service) handleEditPatient(w http.ResponseWriter, r *http.Request) {
	var profile types.PatientProfile
	if !s.decodeJSON(w, r, &profile) {
		return
	}

	err := s.update(r, "EditPatient", func() error {
		return s.registry.EditPatient(s.store, s.caller(r), profile)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"message": "patient updated"})
}

// handleGetPatient handles GET /patients/{id}
func (s *Service) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	patient, ok := s.pathIdentity(w, r, "id")
	if !ok {
		return
	}

	var record *types.PatientRecord
	err := s.view(r, "GetPatient", func() error {
		var err error
		record, err = s.registry.GetPatient(s.store, s.caller(r), patient)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, record)
}

// handleListPatients handles GET /patients
func (s *Service) handleListPatients(w http.ResponseWriter, r *http.Request) {
	var ids []string
	err := s.view(r, "ListPatientIdentities", func() error {
		var err error
		ids, err = s.registry.ListPatientIdentities(s.store)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"identities": ids})
}

// handleCountPatients handles GET /patients/count
func (s *Service) handleCountPatients(w http.ResponseWriter, r *http.Request) {
	var count uint64
	err := s.view(r, "CountPatients", func() error {
		var err error
		count, err = s.registry.CountPatients(s.store)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"count": count})
}

// handleUploadPatientFile handles POST /patients/me/files
func (s *Service) handleUploadPatientFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.update(r, "UploadPatientFile", func() error {
		return s.registry.UploadPatientFile(s.store, s.caller(r), req.FileRef)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{"file_ref": req.FileRef})
}

// handleUploadPatientFileByDoctor handles POST /patients/{id}/files
func (s *Service) handleUploadPatientFileByDoctor(w http.ResponseWriter, r *http.Request) {
	patient, ok := s.pathIdentity(w, r, "id")
	if !ok {
		return
	}
	var req fileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.update(r, "UploadPatientFileByDoctor", func() error {
		return s.registry.UploadPatientFileByDoctor(s.store, s.caller(r), patient, req.FileRef)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{"file_ref": req.FileRef})
}

// handleListPatientFiles handles GET /patients/{id}/files
func (s *Service) handleListPatientFiles(w http.ResponseWriter, r *http.Request) {
	patient, ok := s.pathIdentity(w, r, "id")
	if !ok {
		return
	}

	var files []string
	err := s.view(r, "ListPatientFiles", func() error {
		var err error
		files, err = s.registry.ListPatientFiles(s.store, s.caller(r), patient)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"files": files})
}

// handleListPatientAppointments handles GET /patients/{id}/appointments
func (s *Service) handleListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	patient, ok := s.pathIdentity(w, r, "id")
	if !ok {
		return
	}

	var ids []uint64
	err := s.view(r, "ListAppointmentsForPatient", func() error {
		var err error
		ids, err = s.registry.ListAppointmentsForPatient(s.store, s.caller(r), patient)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"appointment_ids": ids})
}

// handleRegisterDoctor handles POST /doctors
func (s *Service) handleRegisterDoctor(w http.ResponseWriter, r *http.Request) {
	var profile types.DoctorProfile
	if !s.decodeJSON(w, r, &profile) {
		return
	}

	caller := s.caller(r)
	err := s.update(r, "RegisterDoctor", func() error {
		return s.registry.RegisterDoctor(s.store, caller, profile)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{"identity": caller})
}

// handleEditDoctor handles PUT /doctors/{id}
func (s *Service) handleEditDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, ok := s.pathIdentity(w, r, "id")
	if !ok {
		return
	}
	var profile types.DoctorProfile
	if !s.decodeJSON(w, r, &profile) {
		return
	}

	err := s.update(r, "EditDoctor", func() error {
		return s.registry.EditDoctor(s.store, s.caller(r), doctor, profile)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"message": "doctor updated"})
}

// handleGetDoctor handles GET /doctors/{id}
func (s *Service) handleGetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, ok := s.pathIdentity(w, r, "id")
	if !ok {
		return
	}

	var record *types.DoctorRecord
	err := s.view(r, "GetDoctor", func() error {
		var err error
		record, err = s.registry.GetDoctor(s.store, s.caller(r), doctor)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, record)
}

// handleListDoctors handles GET /doctors
func (s *Service) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	var ids []string
	err := s.view(r, "ListDoctorIdentities", func() error {
		var err error
		ids, err = s.registry.ListDoctorIdentities(s.store)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"identities": ids})
}

// handleCountDoctors handles GET /doctors/count
func (s *Service) handleCountDoctors(w http.ResponseWriter, r *http.Request) {
	var count uint64
	err := s.view(r, "CountDoctors", func() error {
		var err error
		count, err = s.registry.CountDoctors(s.store)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"count": count})
}

// handleGrantPermission handles POST /permissions/{doctorId}
func (s *Service) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	doctor, ok := s.pathIdentity(w, r, "doctorId")
	if !ok {
		return
	}

	err := s.update(r, "GrantPermission", func() error {
		return s.registry.GrantPermission(s.store, s.caller(r), doctor)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"doctor": doctor, "permitted": true})
}

// handleRevokePermission handles DELETE /permissions/{doctorId}
func (s *Service) handleRevokePermission(w http.ResponseWriter, r *http.Request) {
	doctor, ok := s.pathIdentity(w, r, "doctorId")
	if !ok {
		return
	}

	err := s.update(r, "RevokePermission", func() error {
		return s.registry.RevokePermission(s.store, s.caller(r), doctor)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"doctor": doctor, "permitted": false})
}

// handleIsPermitted handles GET /permissions/{patientId}/{doctorId}
func (s *Service) handleIsPermitted(w http.ResponseWriter, r *http.Request) {
	patient, ok := s.pathIdentity(w, r, "patientId")
	if !ok {
		return
	}
	doctor, ok := s.pathIdentity(w, r, "doctorId")
	if !ok {
		return
	}

	var permitted bool
	err := s.view(r, "IsPermitted", func() error {
		var err error
		permitted, err = s.registry.IsPermitted(s.store, s.caller(r), patient, doctor)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"patient":   patient,
		"doctor":    doctor,
		"permitted": permitted,
	})
}

// handleCreateAppointment handles POST /appointments
func (s *Service) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req types.AppointmentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var id uint64
	err := s.update(r, "CreateAppointment", func() error {
		var err error
		id, err = s.registry.CreateAppointment(s.store, s.caller(r), req)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// handleListDoctorAppointments handles GET /appointments
func (s *Service) handleListDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	var ids []uint64
	err := s.view(r, "ListAppointmentsForDoctor", func() error {
		var err error
		ids, err = s.registry.ListAppointmentsForDoctor(s.store, s.caller(r))
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"appointment_ids": ids})
}

// handleGetAppointment handles GET /appointments/{id}
func (s *Service) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.appointmentID(w, r)
	if !ok {
		return
	}

	var appt *types.Appointment
	err := s.view(r, "GetAppointment", func() error {
		var err error
		appt, err = s.registry.GetAppointment(s.store, s.caller(r), id)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, appt)
}

// handleAttachAppointmentFile handles POST /appointments/{id}/files
func (s *Service) handleAttachAppointmentFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.appointmentID(w, r)
	if !ok {
		return
	}
	var req fileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.update(r, "AttachAppointmentFile", func() error {
		return s.registry.AttachAppointmentFile(s.store, s.caller(r), id, req.FileRef)
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{"file_ref": req.FileRef})
}

// handleListAppointmentFiles handles GET /appointments/{id}/files
func (s *Service) handleListAppointmentFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.appointmentID(w, r)
	if !ok {
		return
	}

	var files []string
	err := s.view(r, "ListAppointmentFiles", func() error {
		var err error
		files, err = s.registry.ListAppointmentFiles(s.store, s.caller(r), id)
		return err
	})
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"files": files})
}

// caller returns the authenticated identity. Routes under /api/v1 are
// always behind authMiddleware.
func (s *Service) caller(r *http.Request) string {
	if claims, ok := callerFromContext(r.Context()); ok {
		return claims.Identity
	}
	return ""
}

// pathIdentity returns the unescaped identity in path variable name
func (s *Service) pathIdentity(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	identity, err := url.PathUnescape(mux.Vars(r)[name])
	if err != nil {
		s.writeStatusError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid identity in path")
		return "", false
	}
	return identity, true
}

func (s *Service) appointmentID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeStatusError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid appointment id")
		return 0, false
	}
	return id, true
}

func (s *Service) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		s.writeStatusError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body")
		return false
	}
	return true
}

// httpStatus maps registry error codes to HTTP status codes
func httpStatus(code string) int {
	switch code {
	case types.ErrCodeAlreadyRegistered:
		return http.StatusConflict
	case types.ErrCodeNotRegistered, types.ErrCodeNotFound:
		return http.StatusNotFound
	case types.ErrCodeUnauthorized, types.ErrCodeAccessDenied:
		return http.StatusForbidden
	case types.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorResponse writes a registry error. Internal causes are logged,
// never returned.
func (s *Service) writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := types.ErrorCode(err)
	status := httpStatus(code)

	message := "internal error"
	var re *types.RegistryError
	if errors.As(err, &re) && status != http.StatusInternalServerError {
		message = re.Message
	}
	if status == http.StatusInternalServerError {
		s.metrics.RecordSystemError(code, "records")
		s.logger.WithContext(r.Context()).WithError(err).Error("Registry operation failed")
	}

	s.writeStatusError(w, status, code, message)
}

// writeStatusError writes an error body with an explicit status
func (s *Service) writeStatusError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSONResponse(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
