// Package apierr carries an HTTP-equivalent status hint alongside an error
// so synchronous callers of the core (the ingest entry point, the retriever)
// can translate a failure into a response without the core importing net/http.
package apierr

import "fmt"

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Invalid(err error) *Error     { return New(400, "invalid_argument", err) }
func NotFound(err error) *Error    { return New(404, "not_found", err) }
func Internal(err error) *Error    { return New(500, "internal", err) }
func Unavailable(err error) *Error { return New(503, "unavailable", err) }
