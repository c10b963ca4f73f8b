package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drmente/intake-api/internal/formshare"
	"github.com/drmente/intake-api/internal/reconcile"
	"github.com/drmente/intake-api/pkg/logging"
)

const validSubmission = `{"formId":"f1","submissionId":"s1","data":[{"id":"q1","type":"name","question":"Nome?","answer":"Ana"},{"id":"q2","type":"cpf","question":"CPF?","answer":"111"}]}`

type stubReconciler struct {
	calls  int
	sub    *formshare.Submission
	result *reconcile.Result
	err    error
}

func (s *stubReconciler) Run(_ context.Context, sub *formshare.Submission) (*reconcile.Result, error) {
	s.calls++
	s.sub = sub
	return s.result, s.err
}

type memoryGuard struct {
	seen     map[string]bool
	released []string
	err      error
}

func (g *memoryGuard) Claim(_ context.Context, id string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[id] {
		return false, nil
	}
	g.seen[id] = true
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, id string) error {
	delete(g.seen, id)
	g.released = append(g.released, id)
	return nil
}

type statusRecorder []int

func (s *statusRecorder) ObserveWebhook(status int) { *s = append(*s, status) }

func postWebhook(h *FormShareWebhookHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/webhook-formshare", strings.NewReader(body)))
	return rec
}

func TestWebhookReconciles(t *testing.T) {
	rec := &stubReconciler{result: &reconcile.Result{
		Success: true, Message: reconcile.SuccessMessage, FoundPatient: true, PatientID: "p1", Outcome: reconcile.OutcomeCreated,
	}}
	statuses := statusRecorder{}
	h := NewFormShareWebhookHandler(rec, nil, &statuses, logging.Discard())

	resp := postWebhook(h, validSubmission)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"success":true,"message":"Webhook processed successfully","foundPatient":true,"patientId":"p1"}`, resp.Body.String())
	require.NotNil(t, rec.sub)
	assert.Equal(t, "f1", rec.sub.FormID)
	assert.Equal(t, statusRecorder{http.StatusOK}, statuses)
}

func TestWebhookAmbiguousOmitsPatientID(t *testing.T) {
	rec := &stubReconciler{result: &reconcile.Result{Success: true, Message: reconcile.SuccessMessage, Outcome: reconcile.OutcomeAmbiguous}}
	h := NewFormShareWebhookHandler(rec, nil, nil, logging.Discard())

	resp := postWebhook(h, validSubmission)

	assert.JSONEq(t, `{"success":true,"message":"Webhook processed successfully","foundPatient":false}`, resp.Body.String())
}

func TestWebhookRejectsInvalidPayloads(t *testing.T) {
	for name, body := range map[string]string{
		"not json":         `nope`,
		"missing form":     `{"submissionId":"s1","data":[{"type":"name","answer":"Ana"}]}`,
		"missing data":     `{"formId":"f1","submissionId":"s1"}`,
		"empty data":       `{"formId":"f1","submissionId":"s1","data":[]}`,
		"missing response": `{"formId":"f1","data":[{"type":"name","answer":"Ana"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := &stubReconciler{}
			h := NewFormShareWebhookHandler(rec, nil, nil, logging.Discard())

			resp := postWebhook(h, body)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, "Invalid FormShare response format", decodeBody(t, resp)["message"])
			assert.Zero(t, rec.calls)
		})
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	h := NewFormShareWebhookHandler(&stubReconciler{}, nil, nil, logging.Discard())
	resp := httptest.NewRecorder()
	h.Handle(resp, httptest.NewRequest(http.MethodGet, "/api/webhook-formshare", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
	assert.Equal(t, "Only POST method is supported for webhooks", decodeBody(t, resp)["message"])
}

func TestWebhookHidesWorkflowErrors(t *testing.T) {
	rec := &stubReconciler{err: errors.New("memed: HTTP 503 Service Unavailable")}
	h := NewFormShareWebhookHandler(rec, nil, nil, logging.Discard())

	resp := postWebhook(h, validSubmission)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"error":"Internal server error","message":"Failed to process webhook"}`, resp.Body.String())
}

func TestWebhookWithoutMemed(t *testing.T) {
	h := NewFormShareWebhookHandler(nil, nil, nil, logging.Discard())

	resp := postWebhook(h, validSubmission)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestWebhookSkipsDuplicateDeliveries(t *testing.T) {
	rec := &stubReconciler{result: &reconcile.Result{Success: true, Message: reconcile.SuccessMessage}}
	guard := &memoryGuard{seen: map[string]bool{}}
	h := NewFormShareWebhookHandler(rec, guard, nil, logging.Discard())

	first := postWebhook(h, validSubmission)
	second := postWebhook(h, validSubmission)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"success":true,"message":"Webhook already processed","duplicate":true}`, second.Body.String())
	assert.Equal(t, 1, rec.calls)
}

func TestWebhookReleasesClaimOnFailure(t *testing.T) {
	rec := &stubReconciler{err: errors.New("boom")}
	guard := &memoryGuard{seen: map[string]bool{}}
	h := NewFormShareWebhookHandler(rec, guard, nil, logging.Discard())

	postWebhook(h, validSubmission)
	postWebhook(h, validSubmission)

	assert.Equal(t, 2, rec.calls)
	assert.Equal(t, []string{"s1", "s1"}, guard.released)
}

func TestWebhookProcessesWhenGuardFails(t *testing.T) {
	rec := &stubReconciler{result: &reconcile.Result{Success: true, Message: reconcile.SuccessMessage}}
	h := NewFormShareWebhookHandler(rec, &memoryGuard{err: errors.New("redis down")}, nil, logging.Discard())

	resp := postWebhook(h, validSubmission)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, rec.calls)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
