package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/drmente/intake-api/internal/dedupe"
	"github.com/drmente/intake-api/internal/formshare"
	"github.com/drmente/intake-api/internal/reconcile"
	"github.com/drmente/intake-api/pkg/logging"
)

// Reconciler links a submission to a Memed patient.
type Reconciler interface {
	Run(ctx context.Context, sub *formshare.Submission) (*reconcile.Result, error)
}

// WebhookObserver records webhook responses by status.
type WebhookObserver interface {
	ObserveWebhook(status int)
}

// FormShareWebhookHandler serves POST /api/webhook-formshare.
type FormShareWebhookHandler struct {
	reconciler Reconciler
	guard      dedupe.Guard
	observer   WebhookObserver
	logger     *logging.Logger
}

type duplicateResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Duplicate bool   `json:"duplicate"`
}

// NewFormShareWebhookHandler wires the webhook. guard and observer are optional;
// a nil reconciler means Memed is not configured.
func NewFormShareWebhookHandler(reconciler Reconciler, guard dedupe.Guard, observer WebhookObserver, logger *logging.Logger) *FormShareWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FormShareWebhookHandler{reconciler: reconciler, guard: guard, observer: observer, logger: logger}
}

func (h *FormShareWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	status := h.handle(w, r)
	if h.observer != nil {
		h.observer.ObserveWebhook(status)
	}
}

func (h *FormShareWebhookHandler) handle(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST, OPTIONS", "Only POST method is supported for webhooks")
		return http.StatusMethodNotAllowed
	}

	sub, err := formshare.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("invalid formshare payload", "error", err)
		badRequest(w, "Invalid FormShare response format")
		return http.StatusBadRequest
	}
	logger := h.logger.With("form_id", sub.FormID, "submission_id", sub.SubmissionID)

	if h.reconciler == nil {
		logger.Error("webhook received but Memed is not configured")
		return h.failed(w)
	}

	ctx := r.Context()
	claimed := false
	if h.guard != nil {
		first, err := h.guard.Claim(ctx, sub.SubmissionID)
		switch {
		case err != nil:
			logger.Warn("dedupe unavailable, processing anyway", "error", err)
		case !first:
			logger.Info("duplicate webhook delivery skipped")
			writeJSON(w, http.StatusOK, duplicateResponse{Success: true, Message: "Webhook already processed", Duplicate: true})
			return http.StatusOK
		default:
			claimed = true
		}
	}

	result, err := h.reconciler.Run(ctx, sub)
	if err != nil {
		if claimed {
			// Detached so a cancelled request still frees the id for the retry.
			if relErr := h.guard.Release(context.WithoutCancel(ctx), sub.SubmissionID); relErr != nil {
				logger.Warn("failed to release dedupe claim", "error", relErr)
			}
		}
		if errors.Is(err, formshare.ErrInvalidSubmission) {
			badRequest(w, "Invalid FormShare response format")
			return http.StatusBadRequest
		}
		logger.Error("webhook processing failed", "error", err)
		return h.failed(w)
	}

	writeJSON(w, http.StatusOK, result)
	return http.StatusOK
}

func (h *FormShareWebhookHandler) failed(w http.ResponseWriter) int {
	writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to process webhook")
	return http.StatusInternalServerError
}
