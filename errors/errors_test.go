package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if result := test.class.String(); result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"storage unavailable", ErrStorageUnavailable, true},
		{"no connection", ErrNoConnection, true},
		{"context canceled", context.Canceled, true},
		{"invalid data", ErrInvalidData, false},
		{"network in message", fmt.Errorf("network unreachable"), true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsTransient(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatalAndInvalid(t *testing.T) {
	if !IsFatal(ErrInvalidConfig) {
		t.Error("invalid config should be fatal")
	}
	if IsFatal(ErrConnectionLost) {
		t.Error("connection lost should not be fatal")
	}
	if !IsInvalid(ErrParsingFailed) {
		t.Error("parsing failed should be invalid")
	}
	if Classify(ErrInvalidData) != ErrorInvalid {
		t.Error("invalid data should classify as invalid")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "c", "m", "a") != nil {
		t.Fatal("wrapping nil should return nil")
	}

	err := Wrap(fmt.Errorf("original error"), "XrefSync", "Sync", "persist xref")
	expected := "XrefSync.Sync: persist xref failed: original error"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestWrapClassified(t *testing.T) {
	baseErr := fmt.Errorf("original error")

	tests := []struct {
		name     string
		wrapFunc func(error, string, string, string) error
		class    ErrorClass
	}{
		{"WrapTransient", WrapTransient, ErrorTransient},
		{"WrapFatal", WrapFatal, ErrorFatal},
		{"WrapInvalid", WrapInvalid, ErrorInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.wrapFunc(baseErr, "component", "method", "action")

			var ce *ClassifiedError
			if !errors.As(result, &ce) {
				t.Fatal("result should be a ClassifiedError")
			}
			if ce.Class != test.class {
				t.Errorf("expected %v, got %v", test.class, ce.Class)
			}
			if !strings.Contains(ce.Error(), "component.method: action failed") {
				t.Errorf("error should contain standard format, got: %s", ce.Error())
			}
			if !errors.Is(result, baseErr) {
				t.Error("classified error should unwrap to base error")
			}
		})
	}
}

func TestWrapInvalid_NilCause(t *testing.T) {
	err := WrapInvalid(nil, "Config", "Validate", "store dsn is required")
	if err == nil {
		t.Fatal("expected error for nil cause")
	}
	if !IsInvalid(err) {
		t.Error("expected invalid classification")
	}
	if err.Error() != "Config.Validate: store dsn is required" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestUpdateError(t *testing.T) {
	base := fmt.Errorf("boom")
	ue := &UpdateError{Kind: KindImpossibleMerge, Accession: "MI:0001", Message: "no rule", Err: base}

	if ue.Error() != "cv_impossible_merge [MI:0001]: no rule" {
		t.Errorf("unexpected message %q", ue.Error())
	}
	if !errors.Is(ue, base) {
		t.Error("update error should unwrap to its cause")
	}

	wrapped := fmt.Errorf("outer: %w", ue)
	if KindOf(wrapped) != KindImpossibleMerge {
		t.Errorf("expected kind to survive wrapping, got %s", KindOf(wrapped))
	}
	if KindOf(base) != KindFatal {
		t.Errorf("plain errors should be fatal, got %s", KindOf(base))
	}
}

func TestAsUpdateError(t *testing.T) {
	plain := AsUpdateError(fmt.Errorf("disk on fire"), "MI:0002", 7)
	if plain.Kind != KindFatal || plain.Accession != "MI:0002" || plain.TermID != 7 {
		t.Errorf("unexpected conversion: %+v", plain)
	}

	kept := AsUpdateError(NewUpdateError(KindNonExistingTerm, "", "gone"), "MI:0003", 9)
	if kept.Kind != KindNonExistingTerm || kept.Accession != "MI:0003" || kept.TermID != 9 {
		t.Errorf("unexpected conversion: %+v", kept)
	}
}
