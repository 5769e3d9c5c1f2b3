package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidCanvas, "width must be >= 1, got %d", 0)

	if err.Code != ErrCodeInvalidCanvas {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidCanvas)
	}

	if err.Message != "width must be >= 1, got 0" {
		t.Errorf("Message = %v, want %v", err.Message, "width must be >= 1, got 0")
	}

	expected := "INVALID_CANVAS: width must be >= 1, got 0"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, cause, "encoding image")

	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(ErrCodeUnknownColumn, "no such column"), ErrCodeUnknownColumn, true},
		{"different code", New(ErrCodeUnknownColumn, "no such column"), ErrCodeInvalidCanvas, false},
		{"wrapped matching", Wrap(ErrCodeIncompatibleGrids, errors.New("x"), "mixing grids"), ErrCodeIncompatibleGrids, true},
		{"plain error", errors.New("plain"), ErrCodeInternal, false},
		{"nil error", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeInvalidRange, "bad range")); got != ErrCodeInvalidRange {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeInvalidRange)
	}
	if got := GetCode(errors.New("plain")); got != Code("") {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidHow, "unknown transform")); got != "unknown transform" {
		t.Errorf("UserMessage() = %v, want %v", got, "unknown transform")
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %v, want %v", got, "plain")
	}
}
