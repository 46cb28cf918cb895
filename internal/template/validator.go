package template

import (
	"fmt"
	"strings"
	"time"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

// Schema is a compiled validator for one entity type: base rules shared by
// every node plus one rule per declared field. Schemas are pure values built
// from an EntityType definition and cached by the registry; composition of
// field-level rules replaces any compile-time type hierarchy.
type Schema struct {
	EntityType string
	rules      []fieldRule
}

type fieldRule struct {
	field Field
	// check returns a failure reason, or "" when value is acceptable.
	check func(value any) string
}

// CompileSchema builds the validator for an entity type definition.
func CompileSchema(et *EntityType) *Schema {
	s := &Schema{EntityType: et.Name}

	// Base fields: identity, type pinned to the entity name, status from
	// the fixed vocabulary, free-form tags.
	s.rules = append(s.rules,
		fieldRule{Field{Name: "id", Kind: KindString}, checkKind(KindString, nil, "")},
		fieldRule{Field{Name: "type", Kind: KindEnum}, checkKind(KindEnum, []string{et.Name}, "")},
		fieldRule{Field{Name: "status", Kind: KindEnum}, checkKind(KindEnum, ValidStatuses, "")},
		fieldRule{Field{Name: "tags", Kind: KindArray}, checkKind(KindArray, nil, KindString)},
	)

	for _, f := range et.Fields {
		s.rules = append(s.rules, fieldRule{f, checkKind(f.Kind, f.Values, f.ItemKind)})
	}

	return s
}

// Validate checks a document's metadata against the schema.
//
// Missing required fields and invalid present fields produce distinct error
// codes so callers can decide skip/log/offer-fix. All offending fields are
// named; missing-field failures take precedence when both occur.
func (s *Schema) Validate(meta map[string]any) error {
	var missing []string
	var invalid []string
	var reasons []string

	for _, r := range s.rules {
		value, present := meta[r.field.Name]
		if !present || value == nil {
			if r.field.Required {
				missing = append(missing, r.field.Name)
			}
			continue
		}
		if reason := r.check(value); reason != "" {
			invalid = append(invalid, r.field.Name)
			reasons = append(reasons, fmt.Sprintf("%s: %s", r.field.Name, reason))
		}
	}

	if len(missing) > 0 {
		err := cerr.Newf(cerr.ErrCodeMissingField,
			"missing required field(s): %s", strings.Join(missing, ", "))
		return err.WithDetail("field", strings.Join(missing, ","))
	}
	if len(invalid) > 0 {
		err := cerr.Newf(cerr.ErrCodeInvalidField,
			"invalid field(s): %s", strings.Join(reasons, "; "))
		return err.WithDetail("field", strings.Join(invalid, ","))
	}
	return nil
}

// checkKind builds the value check for a field kind.
func checkKind(kind FieldKind, values []string, itemKind FieldKind) func(any) string {
	switch kind {
	case KindString, KindText:
		return func(v any) string {
			if _, ok := v.(string); !ok {
				return fmt.Sprintf("expected string, got %T", v)
			}
			return ""
		}

	case KindNumber:
		return func(v any) string {
			switch v.(type) {
			case int, int64, uint64, float32, float64:
				return ""
			}
			return fmt.Sprintf("expected number, got %T", v)
		}

	case KindBoolean:
		return func(v any) string {
			if _, ok := v.(bool); !ok {
				return fmt.Sprintf("expected boolean, got %T", v)
			}
			return ""
		}

	case KindEnum:
		allowed := make(map[string]struct{}, len(values))
		for _, val := range values {
			allowed[val] = struct{}{}
		}
		return func(v any) string {
			s, ok := v.(string)
			if !ok {
				return fmt.Sprintf("expected one of %v, got %T", values, v)
			}
			if _, ok := allowed[s]; !ok {
				return fmt.Sprintf("%q is not one of %v", s, values)
			}
			return ""
		}

	case KindArray:
		var itemCheck func(any) string
		if itemKind != "" {
			itemCheck = checkKind(itemKind, nil, "")
		}
		return func(v any) string {
			items, ok := v.([]any)
			if !ok {
				return fmt.Sprintf("expected array, got %T", v)
			}
			if itemCheck == nil {
				return ""
			}
			for i, item := range items {
				if reason := itemCheck(item); reason != "" {
					return fmt.Sprintf("element %d: %s", i, reason)
				}
			}
			return ""
		}

	case KindDate:
		return func(v any) string {
			switch d := v.(type) {
			case time.Time:
				return ""
			case string:
				if _, err := time.Parse("2006-01-02", d); err == nil {
					return ""
				}
				if _, err := time.Parse(time.RFC3339, d); err == nil {
					return ""
				}
				return fmt.Sprintf("%q is not a date (want YYYY-MM-DD or RFC 3339)", d)
			default:
				return fmt.Sprintf("expected date, got %T", v)
			}
		}

	case KindRecord:
		return func(v any) string {
			if _, ok := v.(map[string]any); !ok {
				return fmt.Sprintf("expected key/value record, got %T", v)
			}
			return ""
		}

	default:
		// Unknown kinds accept anything rather than rejecting documents
		// written against a newer template revision.
		return func(any) string { return "" }
	}
}
