// Package errors provides structured error handling for CodexKeep.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Document parse errors
//   - 2XX: Template registration errors
//   - 3XX: Type resolution errors
//   - 4XX: Storage errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryParse indicates document parsing and validation errors.
	CategoryParse Category = "PARSE"
	// CategoryTemplate indicates template registration errors.
	CategoryTemplate Category = "TEMPLATE"
	// CategoryResolve indicates folder-to-type resolution errors.
	CategoryResolve Category = "RESOLVE"
	// CategoryStorage indicates graph store errors.
	CategoryStorage Category = "STORAGE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the batch can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Parse errors (100-199)
	ErrCodeNoMetadata    = "ERR_101_NO_METADATA"
	ErrCodeMissingField  = "ERR_102_MISSING_REQUIRED_FIELD"
	ErrCodeInvalidField  = "ERR_103_FIELD_VALIDATION"
	ErrCodeUnreadableDoc = "ERR_104_UNREADABLE_DOCUMENT"

	// Template registration errors (200-299)
	ErrCodeTemplateID        = "ERR_201_TEMPLATE_BAD_ID"
	ErrCodeTemplateVersion   = "ERR_202_TEMPLATE_BAD_VERSION"
	ErrCodeTemplateNoTypes   = "ERR_203_TEMPLATE_EMPTY_TYPES"
	ErrCodeTemplateEndpoint  = "ERR_204_TEMPLATE_UNKNOWN_ENDPOINT"
	ErrCodeTemplateNoReverse = "ERR_205_TEMPLATE_MISSING_REVERSE"
	ErrCodeTemplateDuplicate = "ERR_206_TEMPLATE_DUPLICATE_ID"
	ErrCodeTemplateUnknown   = "ERR_207_TEMPLATE_UNKNOWN_ID"
	ErrCodeTemplateEnum      = "ERR_208_TEMPLATE_ENUM_NO_VALUES"

	// Resolution errors (300-399)
	ErrCodeTypeAmbiguous  = "ERR_301_TYPE_AMBIGUOUS"
	ErrCodeTypeUnresolved = "ERR_302_TYPE_UNRESOLVED"

	// Storage errors (400-499)
	ErrCodeStoreOpen      = "ERR_401_STORE_OPEN"
	ErrCodeStoreLocked    = "ERR_402_STORE_LOCKED"
	ErrCodeWriteFailed    = "ERR_403_WRITE_FAILED"
	ErrCodeNodeNotFound   = "ERR_404_NODE_NOT_FOUND"
	ErrCodeSchemaMismatch = "ERR_405_SCHEMA_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "101" from "ERR_101_NO_METADATA"
	switch code[4] {
	case '1':
		return CategoryParse
	case '2':
		return CategoryTemplate
	case '3':
		return CategoryResolve
	case '4':
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreOpen, ErrCodeStoreLocked:
		// Cannot operate without the store.
		return SeverityFatal
	case ErrCodeTypeAmbiguous, ErrCodeSchemaMismatch:
		// Ambiguity needs caller disambiguation; schema mismatch self-heals.
		return SeverityWarning
	}

	if categoryFromCode(code) == CategoryTemplate {
		// Registration problems fail closed at startup.
		return SeverityFatal
	}

	return SeverityError
}
