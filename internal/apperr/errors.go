// Package apperr defines the typed errors returned across the ledger core
// boundary.
//
// Every error the service layer returns is an *Error carrying a Code; the
// code's Kind tells the caller whether to fix input, retry, or report a
// defect. Storage-specific errors are wrapped before they leave the core.
package apperr

import (
	"errors"
	"fmt"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Offending ids or values
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind is shorthand for e.Code.Kind().
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates a domain error carrying extra context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrInvalidAmount     = New(CodeInvalidAmount, "invalid amount")
	ErrInvalidName       = New(CodeInvalidName, "invalid group name")
	ErrInvalidDesc       = New(CodeInvalidDescription, "invalid group description")
	ErrInvalidTitle      = New(CodeInvalidTitle, "invalid expense title")
	ErrNoParticipants    = New(CodeNoParticipants, "at least one member must share the expense")
	ErrUnknownMember     = New(CodeUnknownMember, "member is not in the group")
	ErrAlreadyMember     = New(CodeAlreadyMember, "already a member of the group")
	ErrNotPayer          = New(CodeNotPayer, "only the payer can delete an expense")
	ErrNotCreator        = New(CodeNotCreator, "only the group creator can delete the group")
	ErrNotMember         = New(CodeNotMember, "acting member is not in the group")
	ErrCommitConflict    = New(CodeCommitConflict, "concurrent modification, retry")
	ErrLedgerInvariant   = New(CodeLedgerInvariant, "ledger balances do not sum to zero")
	ErrSplitMismatch     = New(CodeSplitMismatch, "expense shares do not sum to amount")
	ErrGroupNotFound     = New(CodeGroupNotFound, "group not found")
	ErrExpenseNotFound   = New(CodeExpenseNotFound, "expense not found")
	ErrGroupDeleting     = New(CodeGroupDeleting, "group is being deleted")
	ErrCascadeIncomplete = New(CodeCascadeIncomplete, "group deletion left expenses behind")
)

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// KindOf extracts the kind from err. Errors that are not *Error are storage
// failures by definition.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}

// IsKind reports whether err belongs to the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
