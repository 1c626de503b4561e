package errors

import "fmt"

// ErrorCode represents a Grove error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrInvalidPattern ErrorCode = "INVALID_PATTERN" // 400
	ErrNoSelection    ErrorCode = "NO_SELECTION"    // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrGroupLocked    ErrorCode = "GROUP_LOCKED"    // 409
	ErrWrongView      ErrorCode = "WRONG_VIEW"      // 409
	ErrDuplicateRule  ErrorCode = "DUPLICATE_RULE"  // 409
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// GroveError represents a structured error with code, status, and details.
type GroveError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *GroveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GroveError {
	return &GroveError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidPattern creates a 400 error for a regex rule that does not compile.
func NewInvalidPattern(pattern string) *GroveError {
	return &GroveError{
		Code:    ErrInvalidPattern,
		Status:  400,
		Message: fmt.Sprintf("invalid regular expression: %q", pattern),
		Details: map[string]any{"pattern": pattern},
	}
}

// NewNoSelection creates a 400 error when a move names no tabs or no target.
func NewNoSelection(msg string) *GroveError {
	return &GroveError{
		Code:    ErrNoSelection,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a group or rule that does not exist.
// kind is "group" or "rule". Suggestion, when non-empty, is a close match.
func NewNotFound(kind, id, suggestion string) *GroveError {
	e := &GroveError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
	if suggestion != "" {
		e.Message += fmt.Sprintf(" (did you mean %s?)", suggestion)
		e.Details["suggestion"] = suggestion
	}
	return e
}

// NewGroupLocked creates a 409 error for a mutation attempted on a locked group.
func NewGroupLocked(signature string) *GroveError {
	return &GroveError{
		Code:    ErrGroupLocked,
		Status:  409,
		Message: "group is locked; unlock it first",
		Details: map[string]any{"signature": signature},
	}
}

// NewWrongView creates a 409 error for an action that only applies to the
// other view, such as restoring a group that is already active.
func NewWrongView(action, want string) *GroveError {
	return &GroveError{
		Code:    ErrWrongView,
		Status:  409,
		Message: fmt.Sprintf("%s only applies to %s groups", action, want),
		Details: map[string]any{"action": action, "view": want},
	}
}

// NewDuplicateRule creates a 409 error when a rule with the same type and
// pattern already exists.
func NewDuplicateRule(typ, pattern string) *GroveError {
	return &GroveError{
		Code:    ErrDuplicateRule,
		Status:  409,
		Message: fmt.Sprintf("a %s rule for %q already exists", typ, pattern),
		Details: map[string]any{"type": typ, "pattern": pattern},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *GroveError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &GroveError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a GroveError with the given code.
func Is(err error, code ErrorCode) bool {
	if gErr, ok := err.(*GroveError); ok {
		return gErr.Code == code
	}
	return false
}
