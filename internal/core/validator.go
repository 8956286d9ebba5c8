package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"wacrm/internal/types"
)

// Validator wraps go-playground/validator with the API's custom tags.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult separates hard errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether there are no errors. Warnings do not count.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// NewValidator registers the custom tags:
//   - not_blank: the string is non-empty after trimming whitespace.
//   - job_id: a scheduler job id free of URL delimiters. Blank values pass
//     since the services drop them.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "not_blank", validateNotBlank)
	mustRegister(v, "job_id", validateJobID)

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateJobID(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(strings.TrimSpace(fl.Field().String()), "/?#")
}

// ValidateStruct validates s and returns a validation_invalid_input AppError
// whose details.validation_errors lists every failed field.
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}

	code := types.ErrCodeValidationInvalidInput
	if len(result.Errors) == 1 {
		code = types.ErrorCode(result.Errors[0].Code)
	}
	return types.NewAppErrorWithDetails(code, "request validation failed", nil, map[string]any{
		"validation_errors": result.Errors,
	})
}

// ValidateStructWithWarnings returns every failed field. Duplicate job ids
// are reported as warnings since the services dedupe them.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	var result ValidationResult

	if err := v.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			v.logger.Error("validator returned unexpected error", slog.String("error", err.Error()))
			result.Errors = append(result.Errors, ValidationError{
				Field:   "",
				Code:    string(types.ErrCodeValidationInvalidInput),
				Message: err.Error(),
			})
			return result
		}
		for _, fe := range verrs {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fieldPath(fe),
				Code:    string(tagToErrorCode(fe.Tag())),
				Message: fieldMessage(fe),
			})
		}
	}

	if ids, ok := s.(interface{ JobIDs() []string }); ok {
		if dupes := countDuplicates(ids.JobIDs()); dupes > 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%d duplicate scheduler_job_ids ignored", dupes))
		}
	}

	return result
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must contain at most %s items", fe.Field(), fe.Param())
	case "not_blank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "job_id":
		return fmt.Sprintf("%s is not a valid scheduler job id", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// tagToErrorCode maps a validator tag to the API error code.
func tagToErrorCode(tag string) types.ErrorCode {
	switch tag {
	case "required", "not_blank":
		return types.ErrCodeValidationMissingField
	case "max":
		return types.ErrCodeValidationBatchSize
	default:
		return types.ErrCodeValidationInvalidInput
	}
}

func countDuplicates(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	dupes := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			dupes++
			continue
		}
		seen[id] = struct{}{}
	}
	return dupes
}
