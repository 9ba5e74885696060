package main

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// ruleError carries a user-facing message for one of the sentinel kinds.
type ruleError struct {
	kind error
	msg  string
}

func (e *ruleError) Error() string { return e.msg }
func (e *ruleError) Unwrap() error { return e.kind }

func conflict(msg string) error  { return &ruleError{kind: ErrConflict, msg: msg} }
func forbidden(msg string) error { return &ruleError{kind: ErrForbidden, msg: msg} }
func notFound(msg string) error  { return &ruleError{kind: ErrNotFound, msg: msg} }

// messageOf returns the user-facing text of err, or def when err has none.
func messageOf(err error, def string) string {
	var re *ruleError
	if errors.As(err, &re) {
		return re.msg
	}
	return def
}
