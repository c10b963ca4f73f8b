package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/drmente/intake-api/internal/formshare"
	"github.com/drmente/intake-api/internal/memed"
)

const (
	// SuccessMessage is returned for every reconciled submission, ambiguous ones included.
	SuccessMessage = "Webhook processed successfully"

	createdAnnotation = "Paciente criado por integração"
)

func describeCPF(cpf string) string {
	if cpf == "" {
		return "não informado"
	}
	return cpf
}

func receivedMessage(p formshare.PersonalData, link string) string {
	return fmt.Sprintf("Resposta recebida no formulário para %s. Veja a resposta completa em %s", p.Name, link)
}

func ambiguousMessage(p formshare.PersonalData, hits int) string {
	return fmt.Sprintf("%d pacientes encontrados em Memed para %s, CPF: %s. Nenhum paciente foi vinculado automaticamente.",
		hits, p.Name, describeCPF(p.CPF))
}

func matchedMessage(patient *memed.Patient, p formshare.PersonalData) string {
	return fmt.Sprintf("Paciente encontrado em Memed: %s para %s, CPF: %s", patient.FullName, p.Name, describeCPF(p.CPF))
}

func notFoundMessage(p formshare.PersonalData) string {
	return fmt.Sprintf("Paciente não encontrado em Memed para %s, CPF: %s", p.Name, describeCPF(p.CPF))
}

func cpfMismatchMessage(candidate memed.Patient, p formshare.PersonalData) string {
	return fmt.Sprintf("Paciente %s encontrado em Memed com CPF diferente do informado por %s (CPF: %s). Um novo paciente será criado.",
		candidate.FullName, p.Name, describeCPF(p.CPF))
}

func createdMessage(patient *memed.Patient, p formshare.PersonalData) string {
	return fmt.Sprintf("Paciente criado em Memed: %s (id %s), CPF: %s", p.Name, patient.ID, describeCPF(p.CPF))
}

func summaryAnnotation(p formshare.PersonalData, sub *formshare.Submission, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resposta recebida no formulário para %s. Veja em %s\n\n", p.Name, link)
	b.WriteString("Resposta do formulário:\n")
	b.WriteString(sub.PrettyJSON())
	b.WriteString("\n")
	return b.String()
}

// isoBirthdate accepts YYYY-MM-DD or DD/MM/YYYY and returns YYYY-MM-DD;
// anything else is dropped rather than sent to Memed.
func isoBirthdate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
