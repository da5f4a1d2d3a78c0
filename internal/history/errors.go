package history

import (
	"errors"
	"fmt"
)

// Code categorizes history failures.
type Code string

const (
	// CodeNoDocument indicates no document is attached.
	CodeNoDocument Code = "NO_DOCUMENT"

	// CodeReentrant indicates a call was made while another operation was running.
	CodeReentrant Code = "REENTRANT"

	// CodeAtStart indicates undo was requested at position 0.
	CodeAtStart Code = "AT_START"

	// CodeAtEnd indicates redo was requested at the end of the log.
	CodeAtEnd Code = "AT_END"

	// CodeNoSnapshot indicates no restoration point precedes the undo target.
	CodeNoSnapshot Code = "NO_SNAPSHOT"

	// CodeNotFound indicates a restoration point or log entry does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeOutOfRange indicates a navigation target outside [0, max].
	CodeOutOfRange Code = "OUT_OF_RANGE"

	// CodeInvalid indicates an action payload could not be recorded.
	CodeInvalid Code = "INVALID_ACTION"

	// CodeDecode indicates stored action data or a snapshot could not be decoded.
	CodeDecode Code = "DECODE"

	// CodeApply indicates the catalog failed to apply an action.
	CodeApply Code = "APPLY"

	// CodeStorage indicates the store failed.
	CodeStorage Code = "STORAGE"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrNoDocument = &Error{Code: CodeNoDocument}
	ErrReentrant  = &Error{Code: CodeReentrant}
	ErrAtStart    = &Error{Code: CodeAtStart}
	ErrAtEnd      = &Error{Code: CodeAtEnd}
	ErrNoSnapshot = &Error{Code: CodeNoSnapshot}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrOutOfRange = &Error{Code: CodeOutOfRange}
	ErrInvalid    = &Error{Code: CodeInvalid}
	ErrDecode     = &Error{Code: CodeDecode}
	ErrApply      = &Error{Code: CodeApply}
	ErrStorage    = &Error{Code: CodeStorage}
)

// Error is a failed history operation.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Op is the operation that failed ("undo", "add_action", ...).
	Op string

	// Document is the identifier of the attached document, if any.
	Document string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Document != "" {
		msg += fmt.Sprintf(" (document=%s)", e.Document)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsReentrant returns true if err is a refused re-entrant call.
// Uses errors.As to handle wrapped errors.
func IsReentrant(err error) bool { return CodeOf(err) == CodeReentrant }

// IsBoundary returns true if err is an undo at the start or a redo at the end
// of the log.
func IsBoundary(err error) bool {
	c := CodeOf(err)
	return c == CodeAtStart || c == CodeAtEnd
}

// IsStorage returns true if err originated in the store.
func IsStorage(err error) bool { return CodeOf(err) == CodeStorage }
