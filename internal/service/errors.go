package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error for callers that map it onto a transport.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindAccessExpired
	KindIncompleteWorkbook
	KindTransaction
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	case KindAccessExpired:
		return "AccessExpiredError"
	case KindIncompleteWorkbook:
		return "IncompleteWorkbookError"
	case KindTransaction:
		return "TransactionError"
	}
	return "Error"
}

// Error codes returned to clients.
const (
	CodeInvalidIDFormat    = "InvalidIdFormat"
	CodeInvalidRequest     = "InvalidRequest"
	CodeInvalidAnswers     = "InvalidAnswers"
	CodeInvalidStatus      = "InvalidStatus"
	CodeNotATemplate       = "NotATemplate"
	CodeTemplateNotFound   = "TemplateNotFound"
	CodeUserNotFound       = "UserNotFound"
	CodeNotFound           = "NotFound"
	CodeAlreadyAssigned    = "AlreadyAssigned"
	CodeEmailExists        = "EmailExists"
	CodeInstanceFrozen     = "InstanceFrozen"
	CodeInvalidTransition  = "InvalidTransition"
	CodeAccessExpired      = "AccessExpired"
	CodeIncompleteWorkbook = "IncompleteWorkbook"
	CodeInvalidInstances   = "InvalidInstances"
	CodeTransaction        = "TransactionError"
)

// Error is the single error type returned by the services.  IDs lists the
// offending instance ids for bulk submission failures.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	IDs     []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.IDs) > 0 {
		fmt.Fprintf(&b, " %v", e.IDs)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.  Only
// transaction failures qualify; they never leave partial state behind.
func (e *Error) Retryable() bool { return e.Kind == KindTransaction }

// IsKind reports whether err is a service Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

// CodeOf returns the code of a service Error, or "" for other errors.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func newError(k Kind, code, msg string) *Error {
	return &Error{Kind: k, Code: code, Message: msg}
}

func invalidID(field string) *Error {
	return newError(KindValidation, CodeInvalidIDFormat, field+" must be a 24-character hex id")
}

func invalidRequest(msg string) *Error { return newError(KindValidation, CodeInvalidRequest, msg) }

func notFound(code, msg string) *Error { return newError(KindNotFound, code, msg) }

func accessExpired() *Error {
	return newError(KindAccessExpired, CodeAccessExpired, "access to this workbook has expired")
}

func instanceFrozen(status string) *Error {
	return newError(KindConflict, CodeInstanceFrozen, "workbook is "+status+" and can no longer be edited")
}

// txError converts a persistence failure into a TransactionError.  Service
// errors raised inside the transaction pass through unchanged.
func txError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	msg := op + " failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = op + " timed out"
	}
	return &Error{Kind: KindTransaction, Code: CodeTransaction, Message: msg, Err: err}
}
