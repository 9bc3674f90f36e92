// =============================================================================
// MO Tree to CSV Converter - Argument Validation
// =============================================================================
//
// This module validates the arguments of a run before any file is parsed.
//
// VALIDATION STRATEGY:
//   1. Struct-level: the `validate` tags on converter.Options
//      (required input, known formats, output directory unless the run only
//      extracts parameters)
//   2. File system: the input exists and is readable, the parameter file
//      exists, the output directory exists (or can be created) and is
//      writable
//   3. Combination: the parameter file and the discovery-only mode are
//      mutually exclusive
//
// ERROR HANDLING:
//   - Problems are collected, not returned one at a time
//   - Every problem names the argument and the offending value
//   - Warnings are reported but do not fail validation
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ginjaninja78/motree-to-csv/internal/converter"
	"github.com/ginjaninja78/motree-to-csv/pkg/utils"
	"github.com/go-playground/validator/v10"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ArgumentError represents one problem with a run argument.
type ArgumentError struct {
	// Severity is "error" (the run must not start) or "warning".
	Severity string

	// Field is the name of the argument.
	Field string

	// Value is the value that failed validation.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(e.Severity), e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (value: '%s')", strings.ToUpper(e.Severity), e.Field, e.Message, e.Value)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains all problems, warnings included.
	Errors []*ArgumentError

	// ErrorCount is the number of errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int
}

func (r *ValidationResult) add(e *ArgumentError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityWarning {
		r.WarningCount++
		return
	}
	r.ErrorCount++
	r.IsValid = false
}

// Warnings returns the warnings only.
func (r *ValidationResult) Warnings() []*ArgumentError {
	var warnings []*ArgumentError
	for _, e := range r.Errors {
		if e.Severity == SeverityWarning {
			warnings = append(warnings, e)
		}
	}
	return warnings
}

// Err returns nil when the result is valid, otherwise an error listing every
// failed argument. The returned error unwraps to the individual
// *ArgumentError values.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	var errs []error
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}

// IsArgumentError reports whether err is (or wraps) an ArgumentError.
func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

var validate = validator.New()

// ValidateOptions checks the run arguments. The output directory is created
// when it does not exist yet.
//
// PARAMETERS:
//   - opts: The run options.
//
// RETURNS:
//   - A ValidationResult; use Err to get a single error.
func ValidateOptions(opts *converter.Options) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	// =========================================================================
	// STRUCT TAGS
	// =========================================================================

	if err := validate.Struct(opts); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			result.add(&ArgumentError{Severity: SeverityError, Field: "options", Rule: "struct", Message: err.Error(), Err: err})
			return result
		}
		for _, fe := range fieldErrs {
			result.add(&ArgumentError{
				Severity: SeverityError,
				Field:    fe.Field(),
				Value:    fmt.Sprint(fe.Value()),
				Rule:     fe.Tag(),
				Message:  tagMessage(fe),
			})
		}
	}

	// =========================================================================
	// COMBINATIONS
	// =========================================================================

	if opts.ParametersOnly && opts.ParameterFile != "" {
		result.add(&ArgumentError{
			Severity: SeverityError,
			Field:    "ParameterFile",
			Value:    opts.ParameterFile,
			Rule:     "excluded_with",
			Message:  "a parameter file cannot be combined with parameter extraction",
		})
	}
	if !opts.ParametersOnly && opts.ListingOutput != "" {
		result.add(&ArgumentError{
			Severity: SeverityWarning,
			Field:    "ListingOutput",
			Value:    opts.ListingOutput,
			Rule:     "unused",
			Message:  "listing output is only written when extracting parameters",
		})
	}

	// =========================================================================
	// FILE SYSTEM
	// =========================================================================

	if opts.Input != "" {
		validateInput(opts.Input, result)
	}
	if opts.ParameterFile != "" {
		validateReadableFile("ParameterFile", opts.ParameterFile, result)
	}
	if opts.OutputDir != "" && !opts.ParametersOnly {
		validateOutputDir(opts.OutputDir, result)
	}

	return result
}

// validateInput checks that the input file or directory can be read.
func validateInput(path string, result *ValidationResult) {
	info, err := os.Stat(path)
	if err != nil {
		result.add(&ArgumentError{Severity: SeverityError, Field: "Input", Value: path, Rule: "exists", Message: "input does not exist", Err: err})
		return
	}

	if !info.IsDir() {
		validateReadableFile("Input", path, result)
		return
	}

	files, err := utils.NewFileManager(path, "").DiscoverInputFiles()
	if err != nil {
		result.add(&ArgumentError{Severity: SeverityError, Field: "Input", Value: path, Rule: "readable", Message: "input directory cannot be read", Err: err})
		return
	}
	if len(files) == 0 {
		result.add(&ArgumentError{Severity: SeverityWarning, Field: "Input", Value: path, Rule: "non_empty", Message: "input directory contains no readable files"})
	}
}

// validateReadableFile checks that path is a regular file that can be opened.
func validateReadableFile(field, path string, result *ValidationResult) {
	info, err := os.Stat(path)
	if err != nil {
		result.add(&ArgumentError{Severity: SeverityError, Field: field, Value: path, Rule: "exists", Message: "file does not exist", Err: err})
		return
	}
	if !info.Mode().IsRegular() {
		result.add(&ArgumentError{Severity: SeverityError, Field: field, Value: path, Rule: "file", Message: "not a regular file"})
		return
	}
	if !utils.IsReadable(path) {
		result.add(&ArgumentError{Severity: SeverityError, Field: field, Value: path, Rule: "readable", Message: "file is not readable"})
	}
}

// validateOutputDir creates the output directory if needed and checks that
// it is writable.
func validateOutputDir(dir string, result *ValidationResult) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		result.add(&ArgumentError{Severity: SeverityError, Field: "OutputDir", Value: dir, Rule: "dir", Message: "output path is not a directory"})
		return
	}

	if err := utils.NewFileManager("", dir).EnsureOutputDir(); err != nil {
		result.add(&ArgumentError{Severity: SeverityError, Field: "OutputDir", Value: dir, Rule: "writable", Message: "output directory is not writable", Err: err})
	}
}

// tagMessage turns a validator tag into a readable message.
func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_unless":
		return "is required unless only parameters are extracted"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed the '%s' check", fe.Tag())
	}
}
