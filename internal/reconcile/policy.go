package reconcile

import (
	"fmt"
	"strings"
)

// Policy decides how search results turn into a patient.
type Policy string

const (
	// PolicyAmbiguousOnMultiple searches by CPF (or name), refuses to pick
	// among several hits and rejects a single hit whose CPF differs.
	PolicyAmbiguousOnMultiple Policy = "ambiguous-on-multiple"
	// PolicyStrictCPFExact trusts only an exact CPF hit and otherwise creates.
	PolicyStrictCPFExact Policy = "strict-cpf-exact"
)

// ParsePolicy accepts the MATCH_POLICY values; blank means the default.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PolicyAmbiguousOnMultiple, nil
	case PolicyAmbiguousOnMultiple, PolicyStrictCPFExact:
		return p, nil
	default:
		return "", fmt.Errorf("reconcile: unknown match policy %q", raw)
	}
}

// Outcome labels how a submission was resolved.
type Outcome string

const (
	OutcomeMatched            Outcome = "matched"
	OutcomeCreated            Outcome = "created"
	OutcomeCPFMismatchCreated Outcome = "cpf_mismatch_created"
	OutcomeAmbiguous          Outcome = "ambiguous"
	OutcomeCPFExactMatched    Outcome = "cpf_exact_matched"
	OutcomeCPFExactCreated    Outcome = "cpf_exact_created"
)

// Created reports whether the outcome created a patient.
func (o Outcome) Created() bool {
	switch o {
	case OutcomeCreated, OutcomeCPFMismatchCreated, OutcomeCPFExactCreated:
		return true
	}
	return false
}
