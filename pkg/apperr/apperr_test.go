package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStorageMapping(t *testing.T) {
	cases := map[string]Code{
		"storage/unknown":                CodeUnknown,
		"storage/object-not-found":       CodeNotFound,
		"storage/quota-exceeded":         CodeQuotaExceeded,
		"storage/unauthenticated":        CodeUnauthenticated,
		"storage/unauthorized":           CodeUnauthorized,
		"storage/server-file-wrong-size": CodeWrongSize,
		"storage/invalid-url":            CodeInvalidURL,
		"object-not-found":               CodeNotFound,
		"storage/retry-limit-exceeded":   CodeUnknown,
	}
	for provider, want := range cases {
		if got := FromStorage(provider, nil).Code; got != want {
			t.Fatalf("FromStorage(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestFromAuthTargetsField(t *testing.T) {
	cases := []struct {
		code  string
		field string
	}{
		{"auth/email-already-in-use", FieldEmail},
		{"auth/user-not-found", FieldEmail},
		{"auth/weak-password", FieldPassword},
		{"auth/wrong-password", FieldPassword},
		{"auth/network-request-failed", ""},
	}
	for _, tc := range cases {
		if got := FromAuth(tc.code, nil).Field; got != tc.field {
			t.Fatalf("FromAuth(%q).Field = %q, want %q", tc.code, got, tc.field)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk gone")
	err := fmt.Errorf("upload: %w", New(CodeNotFound, cause))

	if CodeOf(err) != CodeNotFound {
		t.Fatalf("expected not-found code, got %q", CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !errors.Is(err, New(CodeNotFound, nil)) {
		t.Fatalf("expected code match through errors.Is")
	}
	if Message(err) != "The requested item does not exist." {
		t.Fatalf("unexpected message %q", Message(err))
	}
	var e *Error
	if !errors.As(err, &e) || e.StatusCode() != http.StatusNotFound {
		t.Fatalf("expected 404 status")
	}
	if CodeOf(cause) != CodeUnknown || Message(cause) == "" {
		t.Fatalf("plain errors should map to unknown")
	}
	if New("bogus", nil).Code != CodeUnknown {
		t.Fatalf("unknown codes should collapse to unknown")
	}
}
