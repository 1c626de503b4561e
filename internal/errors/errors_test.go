package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestGroveError_Error(t *testing.T) {
	err := &GroveError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "group not found",
	}

	expected := "NOT_FOUND: group not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestConstructors_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    *GroveError
		code   ErrorCode
		status int
	}{
		{"invalid request", NewInvalidRequest("bad"), ErrInvalidRequest, 400},
		{"invalid pattern", NewInvalidPattern("(x"), ErrInvalidPattern, 400},
		{"no selection", NewNoSelection("nothing selected"), ErrNoSelection, 400},
		{"not found", NewNotFound("group", "g1", ""), ErrNotFound, 404},
		{"locked", NewGroupLocked("a|b"), ErrGroupLocked, 409},
		{"wrong view", NewWrongView("restore", "closed"), ErrWrongView, 409},
		{"duplicate rule", NewDuplicateRule("domain", "github.com"), ErrDuplicateRule, 409},
		{"internal", NewInternal(fmt.Errorf("disk full")), ErrInternal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
		})
	}
}

func TestNewNotFound_Suggestion(t *testing.T) {
	err := NewNotFound("rule", "rule-1", "rule-2")
	if !strings.Contains(err.Message, "did you mean rule-2") {
		t.Errorf("Message = %q, want suggestion", err.Message)
	}
	if err.Details["suggestion"] != "rule-2" {
		t.Errorf("Details[suggestion] = %v", err.Details["suggestion"])
	}

	err = NewNotFound("group", "g", "")
	if _, ok := err.Details["suggestion"]; ok {
		t.Error("no suggestion expected")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	err := NewGroupLocked("sig")
	if !Is(err, ErrGroupLocked) {
		t.Error("Is() = false, want true")
	}
	if Is(err, ErrNotFound) {
		t.Error("Is() = true for wrong code")
	}
	if Is(fmt.Errorf("plain"), ErrInternal) {
		t.Error("Is() = true for non-GroveError")
	}
	if Is(nil, ErrInternal) {
		t.Error("Is() = true for nil")
	}
}
