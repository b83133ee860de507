package vendors

import (
	"strings"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
)

// Terminology systems used in outbound resource bodies
const (
	systemLOINC             = "http://loinc.org"
	systemICD10CM           = "http://hl7.org/fhir/sid/icd-10-cm"
	systemCPT               = "http://www.ama-assn.org/go/cpt"
	systemSNOMED            = "http://snomed.info/sct"
	systemConditionClinical = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	systemConditionVerStat  = "http://terminology.hl7.org/CodeSystem/condition-ver-status"

	loincProgressNote     = "11506-3"
	snomedDiagnosis       = "439401001"
	procModifierExtension = "http://hl7.org/fhir/StructureDefinition/procedure-modifier"
)

// Strategy translates internal clinical content into the resource bodies a
// given vendor expects
type Strategy interface {
	Vendor() string
	MapDocument(noteText, patientID string) map[string]interface{}
	MapCondition(diagnosis models.DiagnosisCode, patientID string) map[string]interface{}
	MapProcedure(procedure models.ProcedureCode, patientID string) map[string]interface{}
}

// ForVendor selects the mapping strategy for a vendor key. Unknown vendors
// degrade to the generic FHIR mapping; selection never fails.
func ForVendor(key string) Strategy {
	switch strings.ToLower(key) {
	case models.VendorEClinicalWorks:
		return &EClinicalWorks{}
	default:
		return &Generic{}
	}
}

func patientReference(patientID string) map[string]interface{} {
	return map[string]interface{}{
		"reference": "Patient/" + patientID,
	}
}
