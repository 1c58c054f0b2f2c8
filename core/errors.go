package core

import "github.com/pkg/errors"

// FieldError attaches a message to a single input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports input that failed a business rule rather than a
// schema rule. errors.Cause does not unwrap it, so type switches at the
// request boundary see it as is.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e ValidationError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// FieldMap returns the field errors keyed by field name; nil when there are none.
func (e ValidationError) FieldMap() map[string]string {
	if len(e.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Error
	}
	return m
}

// shutdownError marks a state the server cannot recover from. The request
// boundary turns it into a graceful shutdown.
type shutdownError struct {
	msg string
}

func NewShutdownError(msg string) error { return &shutdownError{msg: msg} }

func (e shutdownError) Error() string { return e.msg }

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdownError)
	return ok
}
