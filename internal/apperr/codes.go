package apperr

import "connectrpc.com/connect"

// Kind groups codes by how a caller is expected to react.
type Kind string

const (
	// KindValidation is bad input the caller can correct. Never touches storage.
	KindValidation Kind = "validation"
	// KindAuthorization means the acting member lacks rights for the operation.
	KindAuthorization Kind = "authorization"
	// KindConflict means a transaction lost a race; retrying is safe.
	KindConflict Kind = "conflict"
	// KindInvariant signals a ledger defect. Nothing was committed.
	KindInvariant Kind = "invariant"
	// KindNotFound means a referenced group, expense or member is absent.
	KindNotFound Kind = "not_found"
	// KindStorage wraps any other persistence failure.
	KindStorage Kind = "storage"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeInvalidName        Code = "INVALID_NAME"
	CodeInvalidDescription Code = "INVALID_DESCRIPTION"
	CodeInvalidTitle       Code = "INVALID_TITLE"
	CodeNoParticipants     Code = "NO_PARTICIPANTS"
	CodeUnknownMember      Code = "UNKNOWN_MEMBER"
	CodeAlreadyMember      Code = "ALREADY_MEMBER"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"

	// Authorization
	CodeNotPayer     Code = "NOT_PAYER"
	CodeNotCreator   Code = "NOT_CREATOR"
	CodeNotMember    Code = "NOT_MEMBER"
	CodeUnauthorized Code = "UNAUTHENTICATED"

	// Conflict
	CodeCommitConflict Code = "COMMIT_CONFLICT"

	// Invariant
	CodeLedgerInvariant Code = "LEDGER_INVARIANT_VIOLATION"
	CodeSplitMismatch   Code = "SPLIT_MISMATCH"
	CodeRosterMismatch  Code = "ROSTER_MISMATCH"

	// Not found
	CodeGroupNotFound   Code = "GROUP_NOT_FOUND"
	CodeExpenseNotFound Code = "EXPENSE_NOT_FOUND"
	CodeGroupDeleting   Code = "GROUP_DELETING"

	// Storage
	CodeStorage           Code = "STORAGE_ERROR"
	CodeCascadeIncomplete Code = "CASCADE_INCOMPLETE"
)

// Kind returns the taxonomy bucket for the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidAmount, CodeInvalidName, CodeInvalidDescription, CodeInvalidTitle,
		CodeNoParticipants, CodeUnknownMember, CodeAlreadyMember, CodeInvalidArgument:
		return KindValidation
	case CodeNotPayer, CodeNotCreator, CodeNotMember, CodeUnauthorized:
		return KindAuthorization
	case CodeCommitConflict:
		return KindConflict
	case CodeLedgerInvariant, CodeSplitMismatch, CodeRosterMismatch:
		return KindInvariant
	case CodeGroupNotFound, CodeExpenseNotFound, CodeGroupDeleting:
		return KindNotFound
	default:
		return KindStorage
	}
}

// ConnectCode maps the error code to a Connect status code.
func (c Code) ConnectCode() connect.Code {
	if c == CodeUnauthorized {
		return connect.CodeUnauthenticated
	}
	switch c.Kind() {
	case KindValidation:
		return connect.CodeInvalidArgument
	case KindAuthorization:
		return connect.CodePermissionDenied
	case KindConflict:
		return connect.CodeAborted
	case KindInvariant:
		return connect.CodeInternal
	case KindNotFound:
		return connect.CodeNotFound
	default:
		return connect.CodeUnavailable
	}
}
