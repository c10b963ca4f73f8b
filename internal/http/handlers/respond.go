package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/drmente/intake-api/internal/memed"
	"github.com/drmente/intake-api/pkg/logging"
)

// maxBodyBytes caps inbound JSON bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Details *errorDetails `json:"details,omitempty"`
}

type errorDetails struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	URL        string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "Bad request", message)
}

func methodNotAllowed(w http.ResponseWriter, allow, message string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed", message)
}

func memedNotConfigured(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "Server configuration error", "Memed token not configured")
}

// writeMemedError maps client errors onto responses: local validation is a
// 400, gateway answers keep their status, transport failures are a 502 and
// anything else is a generic 500 carrying fallback.
func writeMemedError(w http.ResponseWriter, logger *logging.Logger, err error, fallback string) {
	if errors.Is(err, memed.ErrValidation) {
		badRequest(w, validationMessage(err))
		return
	}
	if apiErr, ok := memed.AsError(err); ok {
		logger.Error("memed request failed",
			"status", apiErr.StatusCode,
			"url", apiErr.URL,
			"response", apiErr.Response,
			"error", err,
		)
		status := apiErr.StatusCode
		if apiErr.Network() {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{
			Error:   "Memed API error",
			Message: apiErr.Error(),
			Details: &errorDetails{Status: apiErr.StatusCode, StatusText: apiErr.Status, URL: apiErr.URL},
		})
		return
	}
	logger.Error("unexpected error", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error", fallback)
}

func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), memed.ErrValidation.Error()+": ")
}
