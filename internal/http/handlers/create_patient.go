package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/drmente/intake-api/internal/memed"
	"github.com/drmente/intake-api/pkg/logging"
)

// PatientCreator creates patients in Memed.
type PatientCreator interface {
	CreatePatient(ctx context.Context, patient memed.PatientCreate) (*memed.Patient, error)
}

// CreatePatientHandler serves POST /api/create-patient.
type CreatePatientHandler struct {
	patients PatientCreator
	logger   *logging.Logger
}

// NewCreatePatientHandler accepts a nil creator; requests then fail with a
// configuration error.
func NewCreatePatientHandler(patients PatientCreator, logger *logging.Logger) *CreatePatientHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CreatePatientHandler{patients: patients, logger: logger}
}

type createPatientResponse struct {
	Success bool           `json:"success"`
	Data    *memed.Patient `json:"data"`
	Message string         `json:"message"`
}

// optional string fields and the message returned when one has another type.
var createPatientStringFields = []struct{ name, message string }{
	{"cpf", "cpf must be a string"},
	{"birthdate", "birthdate must be a string in YYYY-MM-DD format"},
	{"email", "email must be a string"},
	{"phone", "phone must be a string"},
}

func (h *CreatePatientHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST, OPTIONS", "Only POST method is supported")
		return
	}
	if h.patients == nil {
		h.logger.Error("MEMED_TOKEN not configured")
		memedNotConfigured(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		badRequest(w, "Request body must be a JSON object")
		return
	}
	if name, ok := jsonString(fields["full_name"]); !ok || name == "" {
		badRequest(w, "full_name is required and must be a string")
		return
	}
	for _, f := range createPatientStringFields {
		raw, present := fields[f.name]
		if !present || isJSONNull(raw) {
			continue
		}
		if _, ok := jsonString(raw); !ok {
			badRequest(w, f.message)
			return
		}
	}

	var patient memed.PatientCreate
	if err := json.Unmarshal(body, &patient); err != nil {
		badRequest(w, "Invalid patient payload")
		return
	}

	created, err := h.patients.CreatePatient(r.Context(), patient)
	if err != nil {
		writeMemedError(w, h.logger, err, "An unexpected error occurred while creating patient")
		return
	}

	h.logger.Info("patient created", "patient_id", created.ID.String())
	writeJSON(w, http.StatusCreated, createPatientResponse{
		Success: true,
		Data:    created,
		Message: "Patient created successfully",
	})
}

func jsonString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
