package compiler

import "fmt"

// Compile error codes (E200-E299)
const (
	ErrUnsupportedDtype   = "E201" // declared dtype has no type token
	ErrReservedIdentifier = "E202" // name collides with a runtime identifier
	ErrOrdering           = "E203" // ensemble declared before a step model
	ErrInvalidVersion     = "E204" // step version neither integer nor "latest"
	ErrEmptyPayload       = "E205" // model payload has no usable graph IO
)

// CompileError is a fatal per-model failure during tensor derivation or
// ensemble wiring.
type CompileError struct {
	Model   string `json:"model"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("[%s] model %s: %s", e.Code, e.Model, e.Message)
}

func compileErrorf(model, code, format string, args ...any) *CompileError {
	return &CompileError{Model: model, Code: code, Message: fmt.Sprintf(format, args...)}
}
