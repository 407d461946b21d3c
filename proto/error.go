package proto

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRemote is wrapped by every error frame reported by the remote endpoint.
var ErrRemote = errors.New("remote error")

// Error is an error frame sent by the remote endpoint.
type Error struct {
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

func (e *Error) Kind() Kind { return KindError }

func (e *Error) Error() string {
	code := e.Code
	if code == "" {
		code = e.Type
	}
	if code == "" {
		return fmt.Sprintf("remote error: %s", e.Message)
	}
	return fmt.Sprintf("remote error [%s]: %s", code, e.Message)
}

func (e *Error) Unwrap() error {
	return ErrRemote
}

var fatalMarkers = []string{
	"auth",
	"unauthorized",
	"unauthenticated",
	"permission",
	"forbidden",
	"invalid_api_key",
	"api_key",
	"quota",
	"rate_limit",
	"resource_exhausted",
	"insufficient",
	"billing",
	"session_expired",
}

// NewError builds an error frame and classifies it. Authentication, permission
// and quota errors are fatal; everything else is treated as transient.
func NewError(code, typ, message string) *Error {
	return &Error{
		Code:    code,
		Type:    typ,
		Message: message,
		Fatal:   IsFatalCode(code) || IsFatalCode(typ),
	}
}

// IsFatalCode reports whether an error code names an auth or quota failure.
func IsFatalCode(code string) bool {
	code = strings.ToLower(code)
	if code == "" {
		return false
	}
	for _, m := range fatalMarkers {
		if strings.Contains(code, m) {
			return true
		}
	}
	return false
}
