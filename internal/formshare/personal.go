package formshare

import (
	"regexp"
	"strings"
)

// PersonalData is what reconciliation needs from a submission.
type PersonalData struct {
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	CPF       string `json:"cpf,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
}

// Strategy extracts one field from a submission, reporting whether it found a value.
type Strategy func(s *Submission) (string, bool)

// ByType reads the first answer explicitly tagged with t.
func ByType(t QuestionType) Strategy {
	return func(s *Submission) (string, bool) {
		answers := s.AnswersByType(t)
		if len(answers) == 0 {
			return "", false
		}
		return answers[0], true
	}
}

// ByFreeTextLabel reads the first free-text answer whose question label
// matches pattern. Questions carrying a personal-data tag are skipped so a
// phone question mentioning "CPF" is never read as a CPF.
func ByFreeTextLabel(pattern *regexp.Regexp) Strategy {
	return func(s *Submission) (string, bool) {
		for _, q := range s.Data {
			if !isFreeText(q.Type) || !pattern.MatchString(q.Question) {
				continue
			}
			if answer := strings.TrimSpace(string(q.Answer)); answer != "" {
				return answer, true
			}
		}
		return "", false
	}
}

func isFreeText(t QuestionType) bool {
	switch t {
	case TypeText, TypeSelect, "":
		return true
	}
	return false
}

var (
	cpfLabel       = regexp.MustCompile(`(?i)\bc\.?p\.?f\b`)
	birthdateLabel = regexp.MustCompile(`(?i)(data\s+de\s+nascimento|nascimento|nasceu|anivers[aá]rio)`)
)

// Extractor applies an ordered list of strategies per field; the first hit wins.
type Extractor struct {
	Name      []Strategy
	Phone     []Strategy
	Email     []Strategy
	CPF       []Strategy
	Birthdate []Strategy
}

// DefaultExtractor trusts explicit type tags first and then falls back to
// label patterns for CPF and birthdate, which older form revisions left untagged.
func DefaultExtractor() Extractor {
	return Extractor{
		Name:      []Strategy{ByType(TypeName)},
		Phone:     []Strategy{ByType(TypePhone)},
		Email:     []Strategy{ByType(TypeEmail)},
		CPF:       []Strategy{ByType(TypeCPF), ByFreeTextLabel(cpfLabel)},
		Birthdate: []Strategy{ByType(TypeBirthdate), ByFreeTextLabel(birthdateLabel)},
	}
}

// Extract builds PersonalData from s.
func (e Extractor) Extract(s *Submission) PersonalData {
	return PersonalData{
		Name:      firstHit(s, e.Name),
		Phone:     firstHit(s, e.Phone),
		Email:     firstHit(s, e.Email),
		CPF:       firstHit(s, e.CPF),
		Birthdate: firstHit(s, e.Birthdate),
	}
}

// ExtractPersonalData runs DefaultExtractor.
func ExtractPersonalData(s *Submission) PersonalData {
	return DefaultExtractor().Extract(s)
}

func firstHit(s *Submission, strategies []Strategy) string {
	for _, strategy := range strategies {
		if value, ok := strategy(s); ok {
			return value
		}
	}
	return ""
}
