// Package httpjson writes JSON responses and decodes validated JSON requests.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const DefaultMaxBodyBytes = 1 << 20

var (
	ErrEmptyBody = errors.New("request body is empty")

	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterValidation("country", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if len(s) != 2 {
				return false
			}
			for _, r := range strings.ToLower(s) {
				if r < 'a' || r > 'z' {
					return false
				}
			}
			return true
		})
	})
	return validate
}

// Write sends v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Status is the {status, message} envelope used by the bank API.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, Status{Status: "error", Message: message})
}

func Success(w http.ResponseWriter, message string) {
	Write(w, http.StatusOK, Status{Status: "success", Message: message})
}

// Decode reads at most maxBytes of JSON into dst and validates it with
// `validate` struct tags. Errors are safe to show to the caller.
func Decode(r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	return Validate(dst)
}

// Validate checks dst's struct tags and returns one readable error.
func Validate(dst any) error {
	err := validatorInstance().Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "country":
		return fe.Field() + " must be a two-letter country code"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "datetime":
		return fe.Field() + " must be a date in YYYY-MM-DD format"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
