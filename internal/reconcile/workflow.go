package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/drmente/intake-api/internal/formshare"
	"github.com/drmente/intake-api/internal/memed"
	"github.com/drmente/intake-api/pkg/logging"
)

var reconcileTracer = otel.Tracer("drmente.internal.reconcile")

// searchSize is how many candidates a reconciliation search asks for.
const searchSize = 10

// PatientDirectory is the slice of the Memed client reconciliation uses.
type PatientDirectory interface {
	SearchPatients(ctx context.Context, params memed.PatientSearchParams) (*memed.Paginated[memed.Patient], error)
	FindPatientByCPF(ctx context.Context, cpf string) (*memed.Patient, error)
	CreatePatient(ctx context.Context, patient memed.PatientCreate) (*memed.Patient, error)
	CreatePatientAnnotation(ctx context.Context, annotation memed.PatientAnnotationCreate) (*memed.PatientAnnotation, error)
}

var _ PatientDirectory = (*memed.Client)(nil)

// Announcer fires operator notifications. It never reports failures back;
// notify.BestEffort is the production implementation.
type Announcer interface {
	Send(ctx context.Context, message string)
}

// OutcomeObserver counts outcomes per policy.
type OutcomeObserver interface {
	ObserveOutcome(policy, outcome string)
}

// Config configures a Workflow.
type Config struct {
	Policy          Policy
	ResponseBaseURL string
	Extractor       *formshare.Extractor
	Logger          *logging.Logger
	Observer        OutcomeObserver
}

// Workflow turns one FormShare submission into a Memed patient id.
type Workflow struct {
	directory       PatientDirectory
	announcer       Announcer
	policy          Policy
	responseBaseURL string
	extractor       formshare.Extractor
	logger          *logging.Logger
	observer        OutcomeObserver
}

// Result is the webhook response body.
type Result struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	FoundPatient bool    `json:"foundPatient"`
	PatientID    string  `json:"patientId,omitempty"`
	Outcome      Outcome `json:"-"`
}

// New builds a Workflow. announcer may be nil.
func New(directory PatientDirectory, announcer Announcer, cfg Config) (*Workflow, error) {
	if directory == nil {
		return nil, errors.New("reconcile: patient directory is required")
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyAmbiguousOnMultiple
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	extractor := formshare.DefaultExtractor()
	if cfg.Extractor != nil {
		extractor = *cfg.Extractor
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{
		directory:       directory,
		announcer:       announcer,
		policy:          policy,
		responseBaseURL: cfg.ResponseBaseURL,
		extractor:       extractor,
		logger:          logger,
		observer:        cfg.Observer,
	}, nil
}

// Policy returns the configured match policy.
func (w *Workflow) Policy() Policy { return w.policy }

// Run reconciles sub. Any Memed error aborts the run; nothing is retried.
func (w *Workflow) Run(ctx context.Context, sub *formshare.Submission) (*Result, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	ctx, span := reconcileTracer.Start(ctx, "reconcile.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("formshare.form_id", sub.FormID),
		attribute.String("formshare.submission_id", sub.SubmissionID),
		attribute.String("reconcile.policy", string(w.policy)),
	)

	personal := w.extractor.Extract(sub)
	link := sub.ResponseURL(w.responseBaseURL)
	logger := w.logger.With("form_id", sub.FormID, "submission_id", sub.SubmissionID, "policy", string(w.policy))

	w.announce(ctx, receivedMessage(personal, link))

	var (
		patient *memed.Patient
		outcome Outcome
		err     error
	)
	switch w.policy {
	case PolicyStrictCPFExact:
		patient, outcome, err = w.resolveByCPF(ctx, personal)
	default:
		patient, outcome, err = w.resolveBySearch(ctx, personal)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation failed")
		logger.Error("reconciliation failed", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("reconcile.outcome", string(outcome)))
	w.observe(outcome)

	if patient == nil {
		logger.Info("submission not linked to a patient", "outcome", string(outcome))
		return &Result{Success: true, Message: SuccessMessage, FoundPatient: false, Outcome: outcome}, nil
	}

	if _, err := w.directory.CreatePatientAnnotation(ctx, memed.PatientAnnotationCreate{
		Content:   summaryAnnotation(personal, sub, link),
		PatientID: patient.ID,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summary annotation failed")
		logger.Error("failed to annotate patient", "patient_id", patient.ID.String(), "error", err)
		return nil, fmt.Errorf("reconcile: annotate submission: %w", err)
	}

	logger.Info("submission reconciled", "outcome", string(outcome), "patient_id", patient.ID.String())
	return &Result{
		Success:      true,
		Message:      SuccessMessage,
		FoundPatient: true,
		PatientID:    patient.ID.String(),
		Outcome:      outcome,
	}, nil
}

// resolveBySearch searches by CPF, or by name when no CPF was given.
// More than one hit is ambiguous and yields no patient.
func (w *Workflow) resolveBySearch(ctx context.Context, p formshare.PersonalData) (*memed.Patient, Outcome, error) {
	filter := p.CPF
	if filter == "" {
		filter = p.Name
	}
	results, err := w.directory.SearchPatients(ctx, memed.PatientSearchParams{Filter: filter, Size: searchSize, Page: 1})
	if err != nil {
		return nil, "", fmt.Errorf("reconcile: search patients: %w", err)
	}

	switch hits := len(results.Data); {
	case hits > 1:
		w.announce(ctx, ambiguousMessage(p, hits))
		return nil, OutcomeAmbiguous, nil
	case hits == 1:
		candidate := results.Data[0]
		if p.CPF != "" && !memed.SameCPF(candidate.CPF, p.CPF) {
			w.announce(ctx, cpfMismatchMessage(candidate, p))
			created, err := w.create(ctx, p)
			return created, OutcomeCPFMismatchCreated, err
		}
		w.announce(ctx, matchedMessage(&candidate, p))
		return &candidate, OutcomeMatched, nil
	default:
		w.announce(ctx, notFoundMessage(p))
		created, err := w.create(ctx, p)
		return created, OutcomeCreated, err
	}
}

// resolveByCPF trusts only an exact CPF hit. Without a CPF it always creates.
func (w *Workflow) resolveByCPF(ctx context.Context, p formshare.PersonalData) (*memed.Patient, Outcome, error) {
	if p.CPF != "" {
		found, err := w.directory.FindPatientByCPF(ctx, p.CPF)
		if err != nil {
			return nil, "", fmt.Errorf("reconcile: find patient by cpf: %w", err)
		}
		if found != nil {
			w.announce(ctx, matchedMessage(found, p))
			return found, OutcomeCPFExactMatched, nil
		}
	}
	w.announce(ctx, notFoundMessage(p))
	created, err := w.create(ctx, p)
	return created, OutcomeCPFExactCreated, err
}

// create registers a patient and marks it as created by the integration.
func (w *Workflow) create(ctx context.Context, p formshare.PersonalData) (*memed.Patient, error) {
	created, err := w.directory.CreatePatient(ctx, memed.PatientCreate{
		FullName:      p.Name,
		CPF:           p.CPF,
		Email:         p.Email,
		Phone:         p.Phone,
		Birthdate:     isoBirthdate(p.Birthdate),
		UseSocialName: memed.Bool(false),
		SocialName:    memed.String(""),
		WithoutCPF:    memed.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: create patient: %w", err)
	}
	if _, err := w.directory.CreatePatientAnnotation(ctx, memed.PatientAnnotationCreate{
		Content:   createdAnnotation,
		PatientID: created.ID,
	}); err != nil {
		return nil, fmt.Errorf("reconcile: annotate created patient: %w", err)
	}
	w.announce(ctx, createdMessage(created, p))
	return created, nil
}

func (w *Workflow) announce(ctx context.Context, message string) {
	if w.announcer == nil {
		return
	}
	w.announcer.Send(ctx, message)
}

func (w *Workflow) observe(outcome Outcome) {
	if w.observer == nil {
		return
	}
	w.observer.ObserveOutcome(string(w.policy), string(outcome))
}
