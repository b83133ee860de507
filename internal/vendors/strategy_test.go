package vendors

import (
	"encoding/base64"
	"testing"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
)

func coding(t *testing.T, body map[string]interface{}, path ...string) map[string]interface{} {
	t.Helper()
	cur := body
	for _, key := range path {
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			t.Fatalf("Expected object at %q, got %T", key, cur[key])
		}
		cur = next
	}
	codings, ok := cur["coding"].([]interface{})
	if !ok || len(codings) == 0 {
		t.Fatalf("Expected non-empty coding array under %v", path)
	}
	first, ok := codings[0].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected coding object, got %T", codings[0])
	}
	return first
}

func TestForVendor(t *testing.T) {
	if _, ok := ForVendor("eclinicalworks").(*EClinicalWorks); !ok {
		t.Error("Expected eClinicalWorks strategy for eclinicalworks")
	}
	if _, ok := ForVendor("ECLINICALWORKS").(*EClinicalWorks); !ok {
		t.Error("Expected vendor matching to be case-insensitive")
	}
	if _, ok := ForVendor("generic").(*Generic); !ok {
		t.Error("Expected generic strategy for generic")
	}
	if _, ok := ForVendor("some-unknown-vendor").(*Generic); !ok {
		t.Error("Expected unknown vendors to degrade to generic")
	}
}

func TestGenericMapDocument(t *testing.T) {
	body := (&Generic{}).MapDocument("Patient seen today.", "123")

	if body["resourceType"] != "DocumentReference" {
		t.Errorf("Unexpected resourceType: %v", body["resourceType"])
	}
	if body["status"] != "current" {
		t.Errorf("Unexpected status: %v", body["status"])
	}

	typeCoding := coding(t, body, "type")
	if typeCoding["system"] != "http://loinc.org" {
		t.Errorf("Unexpected type system: %v", typeCoding["system"])
	}
	if typeCoding["code"] != "11506-3" {
		t.Errorf("Expected LOINC progress note code, got %v", typeCoding["code"])
	}

	subject := body["subject"].(map[string]interface{})
	if subject["reference"] != "Patient/123" {
		t.Errorf("Unexpected subject reference: %v", subject["reference"])
	}

	content := body["content"].([]interface{})
	attachment := content[0].(map[string]interface{})["attachment"].(map[string]interface{})
	if attachment["contentType"] != "text/plain" {
		t.Errorf("Unexpected attachment contentType: %v", attachment["contentType"])
	}
	if attachment["data"] != "Patient seen today." {
		t.Errorf("Generic strategy must carry the note verbatim, got %v", attachment["data"])
	}
}

func TestEClinicalWorksEncodesDocumentData(t *testing.T) {
	note := "Patient seen today."
	body := (&EClinicalWorks{}).MapDocument(note, "123")

	content := body["content"].([]interface{})
	attachment := content[0].(map[string]interface{})["attachment"].(map[string]interface{})

	want := base64.StdEncoding.EncodeToString([]byte(note))
	if attachment["data"] != want {
		t.Errorf("Expected base64-encoded note %q, got %v", want, attachment["data"])
	}
}

func TestGenericMapCondition(t *testing.T) {
	body := (&Generic{}).MapCondition(models.DiagnosisCode{
		Code:        "I10",
		Description: "Essential (primary) hypertension",
	}, "123")

	if body["resourceType"] != "Condition" {
		t.Errorf("Unexpected resourceType: %v", body["resourceType"])
	}

	clinical := coding(t, body, "clinicalStatus")
	if clinical["code"] != "active" {
		t.Errorf("Expected active clinicalStatus, got %v", clinical["code"])
	}

	verification := coding(t, body, "verificationStatus")
	if verification["code"] != "confirmed" {
		t.Errorf("Expected confirmed verificationStatus, got %v", verification["code"])
	}

	code := coding(t, body, "code")
	if code["system"] != "http://hl7.org/fhir/sid/icd-10-cm" {
		t.Errorf("Expected ICD-10-CM system, got %v", code["system"])
	}
	if code["code"] != "I10" {
		t.Errorf("Unexpected code: %v", code["code"])
	}

	category := body["category"].([]interface{})
	catCoding := category[0].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	if catCoding["code"] != "439401001" {
		t.Errorf("Expected SNOMED diagnosis category, got %v", catCoding["code"])
	}

	subject := body["subject"].(map[string]interface{})
	if subject["reference"] != "Patient/123" {
		t.Errorf("Unexpected subject reference: %v", subject["reference"])
	}
}

func TestGenericMapProcedure(t *testing.T) {
	body := (&Generic{}).MapProcedure(models.ProcedureCode{
		Code:        "99213",
		Description: "Office visit, established patient",
		Modifier:    "25",
	}, "123")

	if body["resourceType"] != "Procedure" {
		t.Errorf("Unexpected resourceType: %v", body["resourceType"])
	}
	if body["status"] != "completed" {
		t.Errorf("Unexpected status: %v", body["status"])
	}

	code := coding(t, body, "code")
	if code["system"] != "http://www.ama-assn.org/go/cpt" {
		t.Errorf("Expected CPT system, got %v", code["system"])
	}
	if code["code"] != "99213" {
		t.Errorf("Unexpected code: %v", code["code"])
	}

	ext := body["modifierExtension"].([]interface{})[0].(map[string]interface{})
	if ext["url"] != "http://hl7.org/fhir/StructureDefinition/procedure-modifier" {
		t.Errorf("Unexpected modifier extension URL: %v", ext["url"])
	}
	if ext["valueCode"] != "25" {
		t.Errorf("Unexpected modifier value: %v", ext["valueCode"])
	}
}

func TestGenericMapProcedureWithoutModifier(t *testing.T) {
	body := (&Generic{}).MapProcedure(models.ProcedureCode{Code: "99213"}, "123")

	if _, ok := body["modifierExtension"]; ok {
		t.Error("Expected no modifierExtension when the procedure has no modifier")
	}
}
