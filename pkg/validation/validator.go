// Package validation checks the six wire commands (put/get/range/delete/
// bulk_load/stats) before they reach the engine (the server config is
// validated in pkg/config),
// producing the bad-argument errors spec §7 wants surfaced to the caller
// with tree state left untouched.
package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// put(key, value), get(key), and delete(key) take no request struct here:
// every int32 key and value is a legal argument, so there is no
// constraint for go-playground/validator to enforce on them. range and
// bulk_load each have one, below, because they do carry real invariants.

// RangeRequest is a validated range(lo, hi) command.
type RangeRequest struct {
	Lo int32 `validate:"-"`
	Hi int32 `validate:"-"`
}

// BulkLoadRequest is a validated bulk_load(path) command.
type BulkLoadRequest struct {
	Path string `validate:"required"`
}

// ValidateRangeRequest enforces spec §7's one range-specific bad-argument
// rule: hi must not be less than lo.
func ValidateRangeRequest(req RangeRequest) error {
	if req.Hi < req.Lo {
		return fmt.Errorf("range: hi (%d) must be >= lo (%d)", req.Hi, req.Lo)
	}
	return nil
}

// ValidateBulkLoadRequest checks that a path was supplied.
func ValidateBulkLoadRequest(req BulkLoadRequest) error {
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts go-playground/validator errors into the
// single-line, field-prefixed messages the CLI and transport error frames
// use.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", e.Field())
		default:
			return fmt.Errorf("%s: validation failed (%s)", e.Field(), e.Tag())
		}
	}
	return err
}
