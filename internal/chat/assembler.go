package chat

import (
	"strings"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/llm"
	"github.com/ziadkadry99/medicrypt/internal/medrecord"
)

const (
	patientLabel      = "Your Medical Record:\n"
	researcherLabel   = "Aggregated Anonymized Data:\n"
	noPatientRecord   = "No relevant record found."
	noResearchRecords = "No relevant records found."
)

// Assembler turns retrieved records into the per-turn context message.
type Assembler struct {
	Policy access.Policy
}

// NewAssembler returns an Assembler using the default redaction policy.
func NewAssembler() Assembler {
	return Assembler{Policy: access.DefaultPolicy}
}

// Assemble builds the system message carrying the records role may see.
// Every record goes through the policy before it is rendered. Nil entries
// are skipped. With nothing to show it returns the "no data" sentinel.
func (a Assembler) Assemble(role access.Role, records []*medrecord.Record) llm.Message {
	var views []*medrecord.Record
	for _, rec := range records {
		if v := a.Policy.Apply(rec, role); v != nil {
			views = append(views, v)
		}
	}

	if role == access.RolePatient {
		if len(views) == 0 {
			return systemMessage(noPatientRecord)
		}
		return systemMessage(patientLabel + render(views[0]))
	}

	if len(views) == 0 {
		return systemMessage(noResearchRecords)
	}
	blocks := make([]string, len(views))
	for i, v := range views {
		blocks[i] = render(v)
	}
	return systemMessage(researcherLabel + strings.Join(blocks, "\n"))
}

func systemMessage(content string) llm.Message {
	return llm.Message{Role: llm.RoleSystem, Content: content}
}

func render(rec *medrecord.Record) string {
	out, err := rec.Pretty()
	if err != nil {
		// Only reachable for values that were not valid JSON to begin with.
		return "{}"
	}
	return out
}
