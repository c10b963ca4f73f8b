package memed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drmente/intake-api/pkg/logging"
)

const (
	defaultBaseURL = "https://gateway.memed.com.br"
	tokenHeader    = "x-token"

	patientsPath    = "/v2/patient-management/patients"
	searchPath      = "/v2/patient-management/patients/search"
	annotationsPath = "/v2/patient-management/patients-annotations"

	DefaultSearchSize = 5
	DefaultSearchPage = 1
	MaxSearchSize     = 100

	// cpfLookupSize is how many fuzzy search hits FindPatientByCPF inspects.
	cpfLookupSize = 10
)

var memedTracer = otel.Tracer("drmente.internal.memed")

// Observer receives one call per completed request. status is 0 for transport failures.
type Observer interface {
	ObserveRequest(operation string, status int, seconds float64)
}

// Config controls how the Memed client behaves.
type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	HTTPClient     *http.Client
	DefaultHeaders map[string]string
	Logger         *logging.Logger
	Observer       Observer
}

// Client wraps the Memed patient-management endpoints. It holds no cache and
// is safe for concurrent use; token and base URL never change after New.
type Client struct {
	token      string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     *logging.Logger
	observer   Observer
}

// New creates a configured Client.
func New(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, validationError("token is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, validationError("invalid base url %q: %v", baseURL, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    headers,
		httpClient: httpClient,
		logger:     logger,
		observer:   cfg.Observer,
	}, nil
}

// CreatePatient creates a patient (POST /v2/patient-management/patients).
// Both the bare and the {"data": ...} response shapes decode into *Patient.
func (c *Client) CreatePatient(ctx context.Context, patient PatientCreate) (*Patient, error) {
	if strings.TrimSpace(patient.FullName) == "" {
		return nil, validationError("full_name is required")
	}
	data, err := c.invoke(ctx, "create_patient", http.MethodPost, patientsPath, nil, patient)
	if err != nil {
		return nil, err
	}
	created, err := decodeEnveloped[Patient](data)
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, errors.New("memed: create patient response has no id")
	}
	return created, nil
}

// SearchPatients runs a fuzzy text search (GET /v2/patient-management/patients/search).
// An empty filter fails before any request is issued.
func (c *Client) SearchPatients(ctx context.Context, params PatientSearchParams) (*Paginated[Patient], error) {
	filter := strings.TrimSpace(params.Filter)
	if filter == "" {
		return nil, validationError("filter is required")
	}
	size := params.Size
	if size == 0 {
		size = DefaultSearchSize
	}
	if size < 1 || size > MaxSearchSize {
		return nil, validationError("size must be between 1 and %d", MaxSearchSize)
	}
	page := params.Page
	if page == 0 {
		page = DefaultSearchPage
	}
	if page < 1 {
		return nil, validationError("page must be greater than 0")
	}

	query := map[string]any{"filter": filter, "size": size, "page": page}
	data, err := c.invoke(ctx, "search_patients", http.MethodGet, searchPath, query, nil)
	if err != nil {
		return nil, err
	}
	var out Paginated[Patient]
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("memed: decode search response: %w", err)
	}
	return &out, nil
}

// CreatePatientAnnotation attaches a note to a patient
// (POST /v2/patient-management/patients-annotations).
func (c *Client) CreatePatientAnnotation(ctx context.Context, annotation PatientAnnotationCreate) (*PatientAnnotation, error) {
	if strings.TrimSpace(string(annotation.PatientID)) == "" {
		return nil, validationError("patient_id is required")
	}
	if strings.TrimSpace(annotation.Content) == "" {
		return nil, validationError("content is required")
	}
	data, err := c.invoke(ctx, "create_annotation", http.MethodPost, annotationsPath, nil, annotation)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &PatientAnnotation{Content: annotation.Content, PatientID: annotation.PatientID}, nil
	}
	return decodeEnveloped[PatientAnnotation](data)
}

// FindPatientByCPF searches by CPF and keeps only an exact CPF hit, since the
// remote search also returns near matches. It returns nil, nil when none match.
func (c *Client) FindPatientByCPF(ctx context.Context, cpf string) (*Patient, error) {
	if NormalizeCPF(cpf) == "" {
		return nil, validationError("cpf is required")
	}
	results, err := c.SearchPatients(ctx, PatientSearchParams{Filter: cpf, Size: cpfLookupSize, Page: 1})
	if err != nil {
		return nil, err
	}
	for i := range results.Data {
		if SameCPF(results.Data[i].CPF, cpf) {
			return &results.Data[i], nil
		}
	}
	return nil, nil
}

// RequestTimeout bounds a call with a deadline. Callers opt in; nothing in the
// client applies it implicitly. d <= 0 means 10s.
func RequestTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (c *Client) invoke(ctx context.Context, operation, method, path string, query map[string]any, payload any) ([]byte, error) {
	fullURL, err := BuildURL(c.baseURL, path, query)
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("memed: marshal %s body: %w", operation, err)
		}
	}

	// The query may carry a CPF, so spans record the path only.
	ctx, span := memedTracer.Start(ctx, "memed."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("url.path", path),
	)

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("memed: build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(tokenHeader, c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, 0, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.logger.Error("memed request failed", "operation", operation, "url", fullURL, "error", err)
		return nil, &Error{Method: method, URL: fullURL, RequestBody: string(body), Err: err}
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	c.observe(operation, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if readErr != nil {
		span.RecordError(readErr)
		return nil, &Error{StatusCode: resp.StatusCode, Status: statusText(resp), Method: method, URL: fullURL, RequestBody: string(body), Err: readErr}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			StatusCode:  resp.StatusCode,
			Status:      statusText(resp),
			Method:      method,
			URL:         fullURL,
			RequestBody: string(body),
			Response:    parseBody(data),
			Body:        data,
		}
		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.Error("memed api error",
			"operation", operation,
			"status", resp.StatusCode,
			"url", fullURL,
			"response", string(data),
		)
		return nil, apiErr
	}

	c.logger.Debug("memed request completed", "operation", operation, "status", resp.StatusCode)
	return data, nil
}

func (c *Client) observe(operation string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(operation, status, time.Since(start).Seconds())
}

// parseBody never fails: invalid JSON comes back as the raw text.
func parseBody(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return string(data)
	}
	return parsed
}

// BuildURL joins baseURL and path and applies query. Trailing slashes on the
// base are dropped, path always gets a leading slash, and nil query values are
// skipped. Everything else is stringified.
func BuildURL(baseURL, path string, query map[string]any) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("memed: build url: %w", err)
	}
	if len(query) == 0 {
		return u.String(), nil
	}
	values := u.Query()
	for key, raw := range query {
		value, ok := queryValue(raw)
		if !ok {
			continue
		}
		values.Set(key, value)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func queryValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case *string:
		if val == nil {
			return "", false
		}
		return *val, true
	case int:
		return strconv.Itoa(val), true
	case *int:
		if val == nil {
			return "", false
		}
		return strconv.Itoa(*val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case *bool:
		if val == nil {
			return "", false
		}
		return strconv.FormatBool(*val), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}
