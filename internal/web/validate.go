package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 4 << 20 // avatar data URLs travel in request bodies

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError is a malformed or invalid request body.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// decode reads a JSON body into dst and validates its struct tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ValidationError{Msg: "request body is empty"}
		}
		return &ValidationError{Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return &ValidationError{Msg: strings.Join(msgs, "; ")}
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field()[:1]) + e.Field()[1:]

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
