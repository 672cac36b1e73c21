// Package auth is the email/password identity provider: accounts live in the document
// store, sessions are signed JWTs, and each browser client gets a Client that keeps its
// signed-in user in local storage and reports session changes to subscribers.
package auth

import (
	"errors"
	"fmt"
)

// Provider error codes
const (
	CodeInvalidCredential  = "auth/invalid-credential"
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeUserNotFound       = "auth/user-not-found"
	CodeTooManyRequests    = "auth/too-many-requests"
	CodeInvalidToken       = "auth/invalid-token"
	CodeMissingDisplayName = "auth/missing-display-name"
)

// Error is a failure reported by the provider. Callers show Message and branch on Code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the provider code carried by err, or "" when err is not an *Error
func CodeOf(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}
