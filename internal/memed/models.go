package memed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an opaque identifier owned by Memed. The gateway has returned both
// strings and numbers for ids across API versions, so both decode.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("memed: invalid id %s", string(data))
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// PatientCreate is the body of POST /v2/patient-management/patients.
type PatientCreate struct {
	FullName         string            `json:"full_name"`
	CPF              string            `json:"cpf,omitempty"`
	UseSocialName    *bool             `json:"use_social_name,omitempty"`
	SocialName       *string           `json:"social_name,omitempty"`
	Birthdate        string            `json:"birthdate,omitempty"` // YYYY-MM-DD
	WithoutCPF       *bool             `json:"without_cpf,omitempty"`
	GenderIdentityID *int              `json:"gender_identity_id,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Email            string            `json:"email,omitempty"`
	Gender           string            `json:"gender,omitempty"`
	Address          json.RawMessage   `json:"address,omitempty"`
	Conditions       []json.RawMessage `json:"conditions,omitempty"`
}

// Patient is a patient record as returned by the gateway. Only the fields the
// service reads are materialized; address and legacy ids stay raw.
type Patient struct {
	ID            ID              `json:"id"`
	FullName      string          `json:"full_name"`
	CPF           string          `json:"cpf,omitempty"`
	UseSocialName bool            `json:"use_social_name,omitempty"`
	SocialName    string          `json:"social_name,omitempty"`
	Birthdate     string          `json:"birthdate,omitempty"`
	WithoutCPF    bool            `json:"without_cpf,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	Gender        string          `json:"gender,omitempty"`
	Address       json.RawMessage `json:"address,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

// PatientSearchParams drives GET /v2/patient-management/patients/search.
// Zero Size and Page fall back to DefaultSearchSize and DefaultSearchPage.
type PatientSearchParams struct {
	Filter string
	Size   int
	Page   int
}

// Paginated is the search envelope. Only Data is interpreted by callers.
type Paginated[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	TotalItems  int `json:"total_items"`
}

// PatientAnnotationCreate is the body of POST /v2/patient-management/patients-annotations.
type PatientAnnotationCreate struct {
	Content   string `json:"content"`
	PatientID ID     `json:"patient_id"`
}

// PatientAnnotation is an immutable note attached to a patient.
type PatientAnnotation struct {
	ID        ID     `json:"id"`
	Content   string `json:"content"`
	PatientID ID     `json:"patient_id"`
	Status    int    `json:"status,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s.
func String(s string) *string { return &s }

// NormalizeCPF strips punctuation so "123.456.789-09" and "12345678909" compare equal.
func NormalizeCPF(cpf string) string {
	var b strings.Builder
	b.Grow(len(cpf))
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SameCPF reports whether two CPFs carry the same digits. Empty values never match.
func SameCPF(a, b string) bool {
	na, nb := NormalizeCPF(a), NormalizeCPF(b)
	return na != "" && na == nb
}

// decodeEnveloped accepts either a bare object or a {"data": {...}} envelope,
// so callers never branch on which gateway variant answered.
func decodeEnveloped[T any](body []byte) (*T, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		raw := bytes.TrimSpace(envelope.Data)
		if len(raw) > 0 && raw[0] == '{' {
			var out T
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("memed: decode data envelope: %w", err)
			}
			return &out, nil
		}
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("memed: decode response: %w", err)
	}
	return &out, nil
}
