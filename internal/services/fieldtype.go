package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// fieldValidator normalizes and validates one cell value for a field.
// A nil value always passes and clears the cell.
type fieldValidator func(field *models.Field, value any, ctx *validateContext) (any, error)

type validateContext struct {
	// memberIDs is the set of user ids allowed as member-field values.
	memberIDs map[string]bool
}

var fieldValidators = map[string]fieldValidator{
	models.FieldTypeText:         validateText,
	models.FieldTypeNumber:       validateNumber,
	models.FieldTypeDate:         validateDate,
	models.FieldTypeSingleSelect: validateSingleSelect,
	models.FieldTypeMultiSelect:  validateMultiSelect,
	models.FieldTypeCheckbox:     validateCheckbox,
	models.FieldTypeAttachment:   validateStringList(false),
	models.FieldTypeImage:        validateStringList(true),
	models.FieldTypeMember:       validateMember,
}

// KnownFieldType reports whether t is a registered field type.
func KnownFieldType(t string) bool {
	_, ok := fieldValidators[t]
	return ok
}

// FieldTypeService validates record cell values against their field
// definitions.
type FieldTypeService struct{}

func NewFieldTypeService() *FieldTypeService {
	return &FieldTypeService{}
}

// Validate checks one cell value and returns its normalized form.
// memberIDs is consulted only for member fields.
func (s *FieldTypeService) Validate(field *models.Field, value any, memberIDs map[string]bool) (any, *response.AppError) {
	if value == nil {
		return nil, nil
	}
	validate, ok := fieldValidators[field.Type]
	if !ok {
		return nil, response.NewBadRequest(fmt.Sprintf("field %q has unknown type %q", field.Name, field.Type))
	}
	normalized, err := validate(field, value, &validateContext{memberIDs: memberIDs})
	if err != nil {
		return nil, response.NewBadRequest(fmt.Sprintf("field %q: %v", field.Name, err))
	}
	return normalized, nil
}

func validateText(_ *models.Field, value any, _ *validateContext) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", value)
	}
	return s, nil
}

func validateNumber(_ *models.Field, value any, _ *validateContext) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("expected a number, got %T", value)
	}
}

// validateDate accepts a bare date or a full timestamp with offset.
func validateDate(_ *models.Field, value any, _ *validateContext) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a date string, got %T", value)
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s, nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return s, nil
	}
	return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", s)
}

func validateSingleSelect(field *models.Field, value any, _ *validateContext) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string option, got %T", value)
	}
	if err := checkOption(field, s); err != nil {
		return nil, err
	}
	return s, nil
}

func validateMultiSelect(field *models.Field, value any, _ *validateContext) (any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of options, got %T", value)
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected string options, got %T", item)
		}
		if err := checkOption(field, s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// checkOption verifies the value against the configured option ids.
// A selection field without options cannot hold a value at all.
func checkOption(field *models.Field, value string) error {
	opts := field.Options()
	if len(opts) == 0 {
		return fmt.Errorf("no options configured")
	}
	for _, o := range opts {
		if o.ID == value {
			return nil
		}
	}
	return fmt.Errorf("%q is not a configured option", value)
}

func validateCheckbox(_ *models.Field, value any, _ *validateContext) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected a boolean, got %T", value)
	}
	return b, nil
}

// validateStringList handles attachment and image values. A bare string
// is normalized to a one-element list. Image fields reject blank urls.
func validateStringList(rejectBlank bool) fieldValidator {
	return func(_ *models.Field, value any, _ *validateContext) (any, error) {
		var items []any
		switch v := value.(type) {
		case string:
			items = []any{v}
		case []any:
			items = v
		default:
			return nil, fmt.Errorf("expected a url or list of urls, got %T", value)
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string urls, got %T", item)
			}
			if rejectBlank && strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("blank url is not allowed")
			}
			out = append(out, s)
		}
		return out, nil
	}
}

func validateMember(_ *models.Field, value any, ctx *validateContext) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a user id, got %T", value)
	}
	if ctx.memberIDs == nil {
		return nil, fmt.Errorf("reference member scope not supplied")
	}
	if !ctx.memberIDs[s] {
		return nil, fmt.Errorf("user %q cannot be referenced here", s)
	}
	return s, nil
}
