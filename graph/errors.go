package graph

import (
	"errors"
	"fmt"

	"socialgraph/models"
)

// Code classifies a graph failure.
type Code string

const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeValidation  Code = "VALIDATION"
	CodeConsistency Code = "CONSISTENCY"
)

// Error is returned by every graph operation that fails for a reason the
// caller can act on. Store and transport failures are returned unwrapped.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Extensions is picked up by the GraphQL layer and surfaced as error
// extensions.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": string(e.Code)}
}

func NotFound(kind models.Kind, id string) error {
	return &Error{Code: CodeNotFound, Msg: fmt.Sprintf("%s %q not found", kind, id)}
}

func Validation(format string, args ...any) error {
	return &Error{Code: CodeValidation, Msg: fmt.Sprintf(format, args...)}
}

func Consistency(format string, args ...any) error {
	return &Error{Code: CodeConsistency, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }
