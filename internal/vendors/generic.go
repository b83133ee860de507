package vendors

import (
	"time"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
)

// Generic produces standards-conformant FHIR R4 bodies for vendors without a
// dedicated strategy
type Generic struct{}

func (g *Generic) Vendor() string {
	return models.VendorGeneric
}

// MapDocument builds a DocumentReference carrying the narrative note as a
// plain-text attachment
func (g *Generic) MapDocument(noteText, patientID string) map[string]interface{} {
	return map[string]interface{}{
		"resourceType": "DocumentReference",
		"status":       "current",
		"type": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system":  systemLOINC,
					"code":    loincProgressNote,
					"display": "Progress note",
				},
			},
		},
		"subject": patientReference(patientID),
		"date":    time.Now().UTC().Format(time.RFC3339),
		"content": []interface{}{
			map[string]interface{}{
				"attachment": map[string]interface{}{
					"contentType": "text/plain",
					"data":        noteText,
				},
			},
		},
	}
}

// MapCondition builds an active, confirmed Condition coded in ICD-10-CM
func (g *Generic) MapCondition(diagnosis models.DiagnosisCode, patientID string) map[string]interface{} {
	return map[string]interface{}{
		"resourceType": "Condition",
		"clinicalStatus": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system": systemConditionClinical,
					"code":   "active",
				},
			},
		},
		"verificationStatus": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system": systemConditionVerStat,
					"code":   "confirmed",
				},
			},
		},
		"category": []interface{}{
			map[string]interface{}{
				"coding": []interface{}{
					map[string]interface{}{
						"system":  systemSNOMED,
						"code":    snomedDiagnosis,
						"display": "Diagnosis",
					},
				},
			},
		},
		"code": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system":  systemICD10CM,
					"code":    diagnosis.Code,
					"display": diagnosis.Description,
				},
			},
		},
		"subject":      patientReference(patientID),
		"recordedDate": time.Now().UTC().Format(time.RFC3339),
	}
}

// MapProcedure builds a completed Procedure coded in CPT, with the modifier
// carried as a modifierExtension when present
func (g *Generic) MapProcedure(procedure models.ProcedureCode, patientID string) map[string]interface{} {
	body := map[string]interface{}{
		"resourceType": "Procedure",
		"status":       "completed",
		"code": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system":  systemCPT,
					"code":    procedure.Code,
					"display": procedure.Description,
				},
			},
		},
		"subject":           patientReference(patientID),
		"performedDateTime": time.Now().UTC().Format(time.RFC3339),
	}
	if procedure.Modifier != "" {
		body["modifierExtension"] = []interface{}{
			map[string]interface{}{
				"url":       procModifierExtension,
				"valueCode": procedure.Modifier,
			},
		}
	}
	return body
}
