package treasury

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/treasury/backend/internal/domain/shared"
)

// commandValidator validates incoming command structs before any
// repository access. One instance is shared across services; the
// validator is safe for concurrent use.
var commandValidator = validator.New()

// validateCommand runs struct-tag validation and folds violations into
// a single domain error with per-field details
func validateCommand(cmd any) error {
	err := commandValidator.Struct(cmd)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.NewDomainError("INVALID_INPUT", "Request validation failed")
	}

	details := make(map[string]any, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = validationMessage(fieldErr)
	}
	return shared.NewDomainErrorWithDetails("INVALID_INPUT", "Request validation failed", details)
}

// validationMessage returns a human-readable message for one violation
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Must be at least " + e.Param()
	case "max":
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	default:
		return "Invalid value"
	}
}
