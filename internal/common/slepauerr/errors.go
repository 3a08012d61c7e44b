// Package slepauerr defines the error taxonomy shared by every slepau: a
// small closed set of kinds, each mapped to an HTTP status and a stable JSON
// tag so clients can branch on error type without parsing messages.
package slepauerr

import (
	"encoding/json"
	"net/http"
)

// Kind is one of the closed set of error classes a slepau ever returns.
type Kind string

const (
	KindAuth            Kind = "AuthError"
	KindUserTaken       Kind = "UserTaken"
	KindInvalidUsername Kind = "InvalidUsername"
	KindInvalidPassword Kind = "InvalidPassword"
	KindInvalidSite     Kind = "InvalidSite"
	KindInvalidChunk    Kind = "InvalidChunk"
	KindNotFound        Kind = "NotFound"
	KindCustom          Kind = "Custom"
)

// Error is the single error type every slepau component returns. It carries
// enough structure to be rendered as `{"type": "...", "detail": "..."}` for
// API clients and mapped to an HTTP status by the routing layer.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

// HTTPStatus maps the error kind to its wire status: 403 for every kind
// (NotFound included) except Custom, which is 500.
func (e *Error) HTTPStatus() int {
	if e.Kind == KindCustom {
		return http.StatusInternalServerError
	}
	return http.StatusForbidden
}

// MarshalJSON renders the error as its stable variant-tag form.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   Kind   `json:"type"`
		Detail string `json:"detail,omitempty"`
	}{Type: e.Kind, Detail: e.Detail})
}

func New(kind Kind, detail string) *Error { return &Error{Kind: kind, Detail: detail} }

func Auth(detail string) *Error            { return New(KindAuth, detail) }
func UserTaken(detail string) *Error       { return New(KindUserTaken, detail) }
func InvalidUsername(detail string) *Error { return New(KindInvalidUsername, detail) }
func InvalidPassword(detail string) *Error { return New(KindInvalidPassword, detail) }
func InvalidSite(detail string) *Error     { return New(KindInvalidSite, detail) }
func InvalidChunk(detail string) *Error    { return New(KindInvalidChunk, detail) }
func NotFound(detail string) *Error        { return New(KindNotFound, detail) }
func Custom(detail string) *Error          { return New(KindCustom, detail) }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}

// WriteHTTP writes err (or a generic Custom wrapper for non-slepau errors)
// as a JSON body with the matching status code.
func WriteHTTP(w http.ResponseWriter, err error) {
	se, ok := err.(*Error)
	if !ok {
		se = Custom(err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus())
	_ = json.NewEncoder(w).Encode(se)
}
