// Package apperr maps provider error codes (blob storage, identity, document
// store) onto a small fixed taxonomy with user-facing messages, a target form
// field for auth failures and an HTTP status.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

// Code is a taxonomy entry.
type Code string

const (
	CodeUnknown           Code = "unknown"
	CodeNotFound          Code = "not-found"
	CodeQuotaExceeded     Code = "quota-exceeded"
	CodeUnauthenticated   Code = "unauthenticated"
	CodeUnauthorized      Code = "unauthorized"
	CodeWrongSize         Code = "wrong-size"
	CodeInvalidURL        Code = "invalid-url"
	CodeInvalidArgument   Code = "invalid-argument"
	CodeCanceled          Code = "canceled"
	CodeEmailAlreadyInUse Code = "email-already-in-use"
	CodeUserNotFound      Code = "user-not-found"
	CodeWeakPassword      Code = "weak-password"
	CodeWrongPassword     Code = "wrong-password"
	CodeInvalidEmail      Code = "invalid-email"
)

// Form fields auth errors point at.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

type entry struct {
	message string
	field   string
	status  int
}

var catalog = map[Code]entry{
	CodeUnknown:           {"An unknown error occurred.", "", http.StatusInternalServerError},
	CodeNotFound:          {"The requested item does not exist.", "", http.StatusNotFound},
	CodeQuotaExceeded:     {"The storage quota has been exceeded.", "", http.StatusInsufficientStorage},
	CodeUnauthenticated:   {"Please sign in and try again.", "", http.StatusUnauthorized},
	CodeUnauthorized:      {"You are not allowed to perform this action.", "", http.StatusForbidden},
	CodeWrongSize:         {"The file size does not match what was expected.", "", http.StatusBadRequest},
	CodeInvalidURL:        {"The file URL is not valid.", "", http.StatusBadRequest},
	CodeInvalidArgument:   {"The request is not valid.", "", http.StatusBadRequest},
	CodeCanceled:          {"The operation was canceled.", "", 499},
	CodeEmailAlreadyInUse: {"This email is already registered.", FieldEmail, http.StatusConflict},
	CodeUserNotFound:      {"No account exists for this email.", FieldEmail, http.StatusNotFound},
	CodeWeakPassword:      {"The password is too weak.", FieldPassword, http.StatusBadRequest},
	CodeWrongPassword:     {"The password is incorrect.", FieldPassword, http.StatusUnauthorized},
	CodeInvalidEmail:      {"The email address is not valid.", FieldEmail, http.StatusBadRequest},
}

// Error is a categorised provider error.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

// New builds an Error for code with the catalog message and target field.
func New(code Code, err error) *Error {
	e, ok := catalog[code]
	if !ok {
		code = CodeUnknown
		e = catalog[CodeUnknown]
	}
	return &Error{Code: code, Message: e.message, Field: e.field, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode implements the HTTP error contract used by handlers.
func (e *Error) StatusCode() int {
	if entry, ok := catalog[e.Code]; ok {
		return entry.status
	}
	return http.StatusInternalServerError
}

// Is matches errors by code so errors.Is(err, apperr.New(CodeNotFound, nil))
// works across wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// CodeOf returns the taxonomy code of err, CodeUnknown when it carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return catalog[CodeUnknown].message
}

// Storage provider codes and their taxonomy entries.
var storageCodes = map[string]Code{
	"storage/unknown":                CodeUnknown,
	"storage/object-not-found":       CodeNotFound,
	"storage/quota-exceeded":         CodeQuotaExceeded,
	"storage/unauthenticated":        CodeUnauthenticated,
	"storage/unauthorized":           CodeUnauthorized,
	"storage/server-file-wrong-size": CodeWrongSize,
	"storage/invalid-url":            CodeInvalidURL,
	"storage/canceled":               CodeCanceled,
}

// Auth provider codes and their taxonomy entries.
var authCodes = map[string]Code{
	"auth/email-already-in-use": CodeEmailAlreadyInUse,
	"auth/user-not-found":       CodeUserNotFound,
	"auth/weak-password":        CodeWeakPassword,
	"auth/wrong-password":       CodeWrongPassword,
	"auth/invalid-email":        CodeInvalidEmail,
}

// FromStorage maps a storage provider code. Unknown codes map to
// CodeUnknown.
func FromStorage(providerCode string, err error) *Error {
	return New(lookup(storageCodes, "storage/", providerCode), err)
}

// FromAuth maps an identity provider code.
func FromAuth(providerCode string, err error) *Error {
	return New(lookup(authCodes, "auth/", providerCode), err)
}

func lookup(table map[string]Code, prefix, code string) Code {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, prefix) {
		code = prefix + code
	}
	if c, ok := table[code]; ok {
		return c
	}
	return CodeUnknown
}
