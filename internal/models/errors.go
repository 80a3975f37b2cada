package models

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorPage is the data handed to the error template.
type ErrorPage struct {
	Status  int
	Title   string
	Message string
	Code    string
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == CodeNotFound
}

// FormErrors maps a form field to its messages. The empty key holds
// errors that are not tied to one field.
type FormErrors map[string][]string

// Add appends a message for field.
func (fe FormErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Has reports whether field has at least one message.
func (fe FormErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

// Get returns the messages for field.
func (fe FormErrors) Get(field string) []string {
	return fe[field]
}

// Any reports whether the form has errors at all.
func (fe FormErrors) Any() bool {
	for _, msgs := range fe {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// Fields returns the fields with errors in a stable order.
func (fe FormErrors) Fields() []string {
	fields := make([]string, 0, len(fe))
	for f, msgs := range fe {
		if len(msgs) > 0 {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return fields
}

// FormError is returned by services when user input fails validation.
// Handlers re-render the submitted form with Fields.
type FormError struct {
	Fields FormErrors
}

func (e *FormError) Error() string {
	return fmt.Sprintf("invalid form: %v", e.Fields.Fields())
}

// NewFormError builds a FormError holding a single field message.
func NewFormError(field, message string) *FormError {
	fe := FormErrors{}
	fe.Add(field, message)
	return &FormError{Fields: fe}
}

// AsFormErrors extracts field errors from err.
func AsFormErrors(err error) (FormErrors, bool) {
	var formErr *FormError
	if errors.As(err, &formErr) {
		return formErr.Fields, true
	}
	return nil, false
}

// StatusFor maps an error to the HTTP status it should produce.
func StatusFor(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNotFound:
			return http.StatusNotFound
		case CodeValidation:
			return http.StatusBadRequest
		case CodeUnauthorized:
			return http.StatusUnauthorized
		}
		return http.StatusInternalServerError
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return http.StatusInternalServerError
}

// RespondWithError renders the HTML error page. Internal details never
// reach the client.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	page := ErrorPage{
		Status: status,
		Title:  http.StatusText(status),
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		page.Code = appErr.Code
		if appErr.Code != CodeInternal {
			page.Message = appErr.Message
		}
	} else if status < http.StatusInternalServerError && err != nil {
		page.Message = err.Error()
	}

	c.Status(status)
	if c.Get("HX-Request") == "true" {
		return c.Render("errors/error", fiber.Map{"Error": page})
	}
	return c.Render("errors/error", fiber.Map{"Error": page}, "layouts/base")
}
