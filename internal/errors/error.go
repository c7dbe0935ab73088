package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryBinding     Category = "binding"
	CategoryObservation Category = "observation"
	CategoryScheduler   Category = "scheduler"
	CategoryResource    Category = "resource"
	CategoryStore       Category = "store"
	CategoryConfig      Category = "config"
	CategoryCLI         Category = "cli"
)

// WeaveError is a structured error with a code, suggestions, and documentation.
type WeaveError struct {
	// Code is a unique error identifier (e.g., "W001").
	Code string

	// Category is the error type (binding, scheduler, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Subject names the binding, resource or file involved, if any.
	Subject string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example is code showing the correct approach.
	Example string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *WeaveError) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Wrapped != nil && e.Code != "" {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *WeaveError) Unwrap() error {
	return e.Wrapped
}

// WithSubject records what the error is about.
func (e *WeaveError) WithSubject(s string) *WeaveError {
	e.Subject = s
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *WeaveError) WithSuggestion(s string) *WeaveError {
	e.Suggestion = s
	return e
}

// WithExample adds a code example to the error.
func (e *WeaveError) WithExample(ex string) *WeaveError {
	e.Example = ex
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *WeaveError) WithDetail(d string) *WeaveError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *WeaveError) Wrap(err error) *WeaveError {
	e.Wrapped = err
	return e
}

// New creates a WeaveError from a registered error code.
func New(code string) *WeaveError {
	template, ok := registry[code]
	if !ok {
		return &WeaveError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &WeaveError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new WeaveError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *WeaveError {
	return &WeaveError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a WeaveError.
func FromError(err error, code string) *WeaveError {
	if err == nil {
		return nil
	}
	if we, ok := err.(*WeaveError); ok {
		return we
	}
	return New(code).Wrap(err)
}

// Code returns the code of the first WeaveError in err's chain, or "".
func Code(err error) string {
	for err != nil {
		if we, ok := err.(*WeaveError); ok {
			return we.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
