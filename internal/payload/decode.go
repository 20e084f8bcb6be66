// Package payload holds the request bodies accepted by the API together with
// their validation rules.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jellydator/validation"
	"github.com/sakif/notebox/internal/apperror"
)

// MsgInvalidJSON is returned for any body that does not decode.
const MsgInvalidJSON = "Invalid JSON body"

// DecodeJSON reads one JSON value from body into object. Unknown fields are
// ignored.
func DecodeJSON(body io.Reader, object any) error {
	if err := json.NewDecoder(body).Decode(object); err != nil {
		return apperror.ValidationFailed("body", MsgInvalidJSON)
	}
	return nil
}

// Validate runs object's rules and turns violations into a single
// apperror.ErrValidation whose message lists "field: reason" pairs in field
// order, joined by ", ".
func Validate(object validation.Validatable) error {
	err := object.Validate()
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("payload: validating: %w", err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		if fieldErr != nil {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + fieldErrs[field].Error()
	}

	return apperror.ValidationFailed(fields[0], strings.Join(parts, ", "))
}
