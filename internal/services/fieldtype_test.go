package services

import (
	"reflect"
	"testing"

	"github.com/gridbase/gridbase/internal/models"
)

func TestValidate_Text(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "title", Type: models.FieldTypeText}

	if v, appErr := svc.Validate(field, "hello", nil); appErr != nil || v != "hello" {
		t.Errorf("valid text rejected: %v %v", v, appErr)
	}
	if _, appErr := svc.Validate(field, 42.0, nil); appErr == nil {
		t.Error("number should not pass as text")
	}
}

func TestValidate_Number(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "hours", Type: models.FieldTypeNumber}

	if v, appErr := svc.Validate(field, 4.5, nil); appErr != nil || v != 4.5 {
		t.Errorf("valid number rejected: %v %v", v, appErr)
	}
	if _, appErr := svc.Validate(field, "4.5", nil); appErr == nil {
		t.Error("numeric string should not pass as number")
	}
}

func TestValidate_Date(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "due", Type: models.FieldTypeDate}

	valid := []string{"2024-06-01", "2024-06-01T10:30:00Z", "2024-06-01T10:30:00+08:00"}
	for _, s := range valid {
		if _, appErr := svc.Validate(field, s, nil); appErr != nil {
			t.Errorf("date %q rejected: %v", s, appErr)
		}
	}
	invalid := []any{"June 1st", "2024-13-01", "2024-06-01 10:30", 20240601.0}
	for _, v := range invalid {
		if _, appErr := svc.Validate(field, v, nil); appErr == nil {
			t.Errorf("date %v should be rejected", v)
		}
	}
}

func TestValidate_SingleSelect(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "status", Type: models.FieldTypeSingleSelect}
	field.SetOptions([]models.FieldOption{{ID: "o1", Name: "open"}, {ID: "o2", Name: "closed"}})

	if _, appErr := svc.Validate(field, "o1", nil); appErr != nil {
		t.Errorf("configured option rejected: %v", appErr)
	}
	// Option names are display labels, only ids are stored.
	if _, appErr := svc.Validate(field, "open", nil); appErr == nil {
		t.Error("option name should be rejected")
	}
	if _, appErr := svc.Validate(field, "o9", nil); appErr == nil {
		t.Error("unknown option should be rejected")
	}

	// A select without options cannot hold any value.
	bare := &models.Field{Name: "tag", Type: models.FieldTypeSingleSelect}
	if _, appErr := svc.Validate(bare, "anything", nil); appErr == nil {
		t.Error("option-less select should reject every value")
	}
}

func TestValidate_MultiSelect(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "labels", Type: models.FieldTypeMultiSelect}
	field.SetOptions([]models.FieldOption{{ID: "o1", Name: "bug"}, {ID: "o2", Name: "feature"}})

	if _, appErr := svc.Validate(field, []any{"o1", "o2"}, nil); appErr != nil {
		t.Errorf("valid multi select rejected: %v", appErr)
	}
	if _, appErr := svc.Validate(field, "o1", nil); appErr == nil {
		t.Error("bare string should not pass as multi select")
	}
	if _, appErr := svc.Validate(field, []any{"o1", "o9"}, nil); appErr == nil {
		t.Error("unknown option inside a list should be rejected")
	}
}

func TestValidate_Checkbox(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "done", Type: models.FieldTypeCheckbox}

	if v, appErr := svc.Validate(field, true, nil); appErr != nil || v != true {
		t.Errorf("boolean rejected: %v %v", v, appErr)
	}
	if _, appErr := svc.Validate(field, "true", nil); appErr == nil {
		t.Error("string should not pass as checkbox")
	}
}

func TestValidate_AttachmentNormalizesBareString(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "files", Type: models.FieldTypeAttachment}

	v, appErr := svc.Validate(field, "https://x/file.pdf", nil)
	if appErr != nil {
		t.Fatalf("bare string rejected: %v", appErr)
	}
	if !reflect.DeepEqual(v, []any{"https://x/file.pdf"}) {
		t.Errorf("bare string should become a one-element list, got %v", v)
	}

	// Attachments tolerate blank entries, images do not.
	if _, appErr := svc.Validate(field, []any{""}, nil); appErr != nil {
		t.Errorf("attachment blank entry rejected: %v", appErr)
	}
	image := &models.Field{Name: "cover", Type: models.FieldTypeImage}
	if _, appErr := svc.Validate(image, []any{"  "}, nil); appErr == nil {
		t.Error("image blank entry should be rejected")
	}
}

func TestValidate_Member(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "assignee", Type: models.FieldTypeMember}
	allowed := map[string]bool{"usr_1": true}

	v, appErr := svc.Validate(field, "usr_1", allowed)
	if appErr != nil {
		t.Fatalf("allowed member rejected: %v", appErr)
	}
	if v != "usr_1" {
		t.Errorf("member value = %v", v)
	}
	if _, appErr := svc.Validate(field, "usr_2", allowed); appErr == nil {
		t.Error("user outside the reference set should be rejected")
	}
	if _, appErr := svc.Validate(field, "usr_1", nil); appErr == nil {
		t.Error("missing reference scope should be rejected")
	}
}

func TestValidate_NilClearsCell(t *testing.T) {
	svc := NewFieldTypeService()
	field := &models.Field{Name: "title", Type: models.FieldTypeText}
	if v, appErr := svc.Validate(field, nil, nil); appErr != nil || v != nil {
		t.Errorf("nil should pass through, got %v %v", v, appErr)
	}
}

func TestKnownFieldType(t *testing.T) {
	for _, ft := range []string{
		models.FieldTypeText, models.FieldTypeNumber, models.FieldTypeDate,
		models.FieldTypeSingleSelect, models.FieldTypeMultiSelect,
		models.FieldTypeCheckbox, models.FieldTypeAttachment,
		models.FieldTypeImage, models.FieldTypeMember,
	} {
		if !KnownFieldType(ft) {
			t.Errorf("%s should be a known field type", ft)
		}
	}
	if KnownFieldType("formula") {
		t.Error("unregistered type should not be known")
	}
}
