package formshare

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidSubmission is returned for payloads missing formId, submissionId or data.
var ErrInvalidSubmission = errors.New("formshare: invalid submission")

// QuestionType is FormShare's semantic tag for a question.
type QuestionType string

const (
	TypeName      QuestionType = "name"
	TypePhone     QuestionType = "phone"
	TypeEmail     QuestionType = "email"
	TypeText      QuestionType = "text"
	TypeSelect    QuestionType = "select"
	TypeCPF       QuestionType = "cpf"
	TypeBirthdate QuestionType = "birthdate"
)

// AnswerText is an answer flattened to text. Multi-select answers arrive as
// arrays and are joined with ", ".
type AnswerText string

func (a *AnswerText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AnswerText(s)
	case '[':
		var items []AnswerText
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(string(item)); s != "" {
				parts = append(parts, s)
			}
		}
		*a = AnswerText(strings.Join(parts, ", "))
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*a = AnswerText(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("formshare: unsupported answer %s", string(data))
		}
		*a = AnswerText(n.String())
	}
	return nil
}

// Question is one question/answer pair of a submission.
type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Question string       `json:"question"`
	Answer   AnswerText   `json:"answer"`
}

// Submission is the FormShare webhook payload.
type Submission struct {
	FormID       string     `json:"formId"`
	FormName     string     `json:"formName,omitempty"`
	FormURL      string     `json:"formUrl,omitempty"`
	SubmissionID string     `json:"submissionId"`
	CreatedAt    string     `json:"createdAt,omitempty"`
	Data         []Question `json:"data"`

	// Raw is the payload exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Decode reads and validates a submission.
func Decode(r io.Reader) (*Submission, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrInvalidSubmission, err)
	}
	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	sub.Raw = json.RawMessage(raw)
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Validate checks the fields reconciliation depends on.
func (s *Submission) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: empty payload", ErrInvalidSubmission)
	case strings.TrimSpace(s.FormID) == "":
		return fmt.Errorf("%w: formId is required", ErrInvalidSubmission)
	case strings.TrimSpace(s.SubmissionID) == "":
		return fmt.Errorf("%w: submissionId is required", ErrInvalidSubmission)
	case len(s.Data) == 0:
		return fmt.Errorf("%w: data is required", ErrInvalidSubmission)
	}
	return nil
}

// AnswersByType returns every non-blank answer tagged with t, in form order.
func (s *Submission) AnswersByType(t QuestionType) []string {
	var out []string
	for _, q := range s.Data {
		if q.Type != t {
			continue
		}
		if answer := strings.TrimSpace(string(q.Answer)); answer != "" {
			out = append(out, answer)
		}
	}
	return out
}

// AnswerByQuestion returns the first non-blank answer whose label matches pattern.
func (s *Submission) AnswerByQuestion(pattern *regexp.Regexp) (string, bool) {
	for _, q := range s.Data {
		if !pattern.MatchString(q.Question) {
			continue
		}
		if answer := strings.TrimSpace(string(q.Answer)); answer != "" {
			return answer, true
		}
	}
	return "", false
}

// PrettyJSON renders the payload with two-space indentation. The received
// bytes are preferred so fields this package does not model survive.
func (s *Submission) PrettyJSON() string {
	if len(s.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, s.Raw, "", "  "); err == nil {
			return buf.String()
		}
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}

// ResponseURL links to the submitted form on FormShare.
func (s *Submission) ResponseURL(base string) string {
	return strings.TrimRight(base, "/") + "/" + s.FormID
}
