package vendors

import (
	"encoding/base64"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
)

// EClinicalWorks maps like the generic strategy but base64-encodes document
// attachment payloads, which the eClinicalWorks FHIR endpoint requires
type EClinicalWorks struct {
	Generic
}

func (e *EClinicalWorks) Vendor() string {
	return models.VendorEClinicalWorks
}

func (e *EClinicalWorks) MapDocument(noteText, patientID string) map[string]interface{} {
	encoded := base64.StdEncoding.EncodeToString([]byte(noteText))
	return e.Generic.MapDocument(encoded, patientID)
}
