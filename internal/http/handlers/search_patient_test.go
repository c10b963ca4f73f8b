package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drmente/intake-api/internal/memed"
	"github.com/drmente/intake-api/pkg/logging"
)

type stubSearcher struct {
	got *memed.PatientSearchParams
	err error
}

func (s *stubSearcher) SearchPatients(_ context.Context, params memed.PatientSearchParams) (*memed.Paginated[memed.Patient], error) {
	s.got = &params
	if s.err != nil {
		return nil, s.err
	}
	return &memed.Paginated[memed.Patient]{
		Data:        []memed.Patient{{ID: "1", FullName: "Ana"}},
		CurrentPage: params.Page,
		PerPage:     params.Size,
		TotalItems:  1,
	}, nil
}

func TestSearchPatientGet(t *testing.T) {
	stub := &stubSearcher{}
	h := NewSearchPatientHandler(stub, logging.Discard())

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/search-patient?filter=Ana&size=10&page=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, memed.PatientSearchParams{Filter: "Ana", Size: 10, Page: 2}, *stub.got)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"filter": "Ana", "size": float64(10), "page": float64(2)}, body["meta"])
	assert.Len(t, body["data"].(map[string]any)["data"], 1)
}

func TestSearchPatientDefaults(t *testing.T) {
	stub := &stubSearcher{}
	h := NewSearchPatientHandler(stub, logging.Discard())

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/search-patient?filter=Ana", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, stub.got.Size)
	assert.Equal(t, 1, stub.got.Page)
}

func TestSearchPatientPost(t *testing.T) {
	stub := &stubSearcher{}
	h := NewSearchPatientHandler(stub, logging.Discard())

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/search-patient", strings.NewReader(`{"filter":"111","size":"20"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, memed.PatientSearchParams{Filter: "111", Size: 20, Page: 1}, *stub.got)
}

func TestSearchPatientValidation(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		message string
	}{
		{name: "get without filter", method: http.MethodGet, target: "/api/search-patient", message: "Filter parameter is required"},
		{name: "post without filter", method: http.MethodPost, target: "/api/search-patient", body: `{"size":5}`, message: "Filter parameter is required in request body"},
		{name: "post numeric filter", method: http.MethodPost, target: "/api/search-patient", body: `{"filter":5}`, message: "Filter parameter is required in request body"},
		{name: "size too large", method: http.MethodGet, target: "/api/search-patient?filter=a&size=101", message: "Size must be between 1 and 100"},
		{name: "size zero", method: http.MethodPost, target: "/api/search-patient", body: `{"filter":"a","size":0}`, message: "Size must be between 1 and 100"},
		{name: "page zero", method: http.MethodGet, target: "/api/search-patient?filter=a&page=0", message: "Page must be greater than 0"},
		{name: "size not numeric", method: http.MethodGet, target: "/api/search-patient?filter=a&size=abc", message: "Size must be a number"},
		{name: "page fractional", method: http.MethodPost, target: "/api/search-patient", body: `{"filter":"a","page":1.5}`, message: "Page must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSearcher{}
			h := NewSearchPatientHandler(stub, logging.Discard())
			rec := httptest.NewRecorder()
			h.Handle(rec, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decodeBody(t, rec)["message"])
			assert.Nil(t, stub.got)
		})
	}
}

func TestSearchPatientMethodNotAllowed(t *testing.T) {
	h := NewSearchPatientHandler(&stubSearcher{}, logging.Discard())
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodDelete, "/api/search-patient", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Only GET and POST methods are supported", decodeBody(t, rec)["message"])
}

func TestSearchPatientPassesThroughGatewayStatus(t *testing.T) {
	h := NewSearchPatientHandler(&stubSearcher{err: &memed.Error{StatusCode: 401, Status: "Unauthorized", URL: "https://gateway.memed.com.br/v2/patient-management/patients/search"}}, logging.Discard())
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/search-patient?filter=a", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Memed API error", body["error"])
	assert.Equal(t, float64(401), body["details"].(map[string]any)["status"])
	assert.Equal(t, "Unauthorized", body["details"].(map[string]any)["statusText"])
}

func TestSearchPatientValidationErrorFromClient(t *testing.T) {
	err := fmt.Errorf("%w: filter is required", memed.ErrValidation)
	h := NewSearchPatientHandler(&stubSearcher{err: err}, logging.Discard())
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/search-patient?filter=a", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "filter is required", decodeBody(t, rec)["message"])
}
