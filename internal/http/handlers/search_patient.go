package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/drmente/intake-api/internal/memed"
	"github.com/drmente/intake-api/pkg/logging"
)

// PatientSearcher searches patients in Memed.
type PatientSearcher interface {
	SearchPatients(ctx context.Context, params memed.PatientSearchParams) (*memed.Paginated[memed.Patient], error)
}

// SearchPatientHandler serves GET and POST /api/search-patient.
type SearchPatientHandler struct {
	patients PatientSearcher
	logger   *logging.Logger
}

func NewSearchPatientHandler(patients PatientSearcher, logger *logging.Logger) *SearchPatientHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SearchPatientHandler{patients: patients, logger: logger}
}

type searchMeta struct {
	Filter string `json:"filter"`
	Size   int    `json:"size"`
	Page   int    `json:"page"`
}

type searchPatientResponse struct {
	Success bool                            `json:"success"`
	Data    *memed.Paginated[memed.Patient] `json:"data"`
	Meta    searchMeta                      `json:"meta"`
}

type searchPatientRequest struct {
	Filter any `json:"filter"`
	Size   any `json:"size"`
	Page   any `json:"page"`
}

func (h *SearchPatientHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, "GET, POST, OPTIONS", "Only GET and POST methods are supported")
		return
	}
	if h.patients == nil {
		h.logger.Error("MEMED_TOKEN not configured")
		memedNotConfigured(w)
		return
	}

	var (
		params memed.PatientSearchParams
		msg    string
	)
	if r.Method == http.MethodGet {
		params, msg = searchParamsFromQuery(r)
	} else {
		params, msg = searchParamsFromBody(w, r)
	}
	if msg != "" {
		badRequest(w, msg)
		return
	}
	if params.Size < 1 || params.Size > memed.MaxSearchSize {
		badRequest(w, "Size must be between 1 and 100")
		return
	}
	if params.Page < 1 {
		badRequest(w, "Page must be greater than 0")
		return
	}

	results, err := h.patients.SearchPatients(r.Context(), params)
	if err != nil {
		writeMemedError(w, h.logger, err, "An unexpected error occurred while searching patients")
		return
	}

	writeJSON(w, http.StatusOK, searchPatientResponse{
		Success: true,
		Data:    results,
		Meta:    searchMeta{Filter: params.Filter, Size: params.Size, Page: params.Page},
	})
}

func searchParamsFromQuery(r *http.Request) (memed.PatientSearchParams, string) {
	q := r.URL.Query()
	params := memed.PatientSearchParams{Filter: strings.TrimSpace(q.Get("filter"))}
	if params.Filter == "" {
		return params, "Filter parameter is required"
	}
	var ok bool
	if params.Size, ok = parseIntParam(q.Get("size"), memed.DefaultSearchSize); !ok {
		return params, "Size must be a number"
	}
	if params.Page, ok = parseIntParam(q.Get("page"), memed.DefaultSearchPage); !ok {
		return params, "Page must be a number"
	}
	return params, ""
}

func searchParamsFromBody(w http.ResponseWriter, r *http.Request) (memed.PatientSearchParams, string) {
	var req searchPatientRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return memed.PatientSearchParams{}, "Filter parameter is required in request body"
	}
	filter, _ := req.Filter.(string)
	params := memed.PatientSearchParams{Filter: strings.TrimSpace(filter)}
	if params.Filter == "" {
		return params, "Filter parameter is required in request body"
	}
	var ok bool
	if params.Size, ok = intValue(req.Size, memed.DefaultSearchSize); !ok {
		return params, "Size must be a number"
	}
	if params.Page, ok = intValue(req.Page, memed.DefaultSearchPage); !ok {
		return params, "Page must be a number"
	}
	return params, ""
}

func parseIntParam(raw string, def int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// intValue accepts a JSON number or numeric string; a missing value is def.
func intValue(v any, def int) (int, bool) {
	switch t := v.(type) {
	case nil:
		return def, true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		return parseIntParam(t, def)
	default:
		return 0, false
	}
}
