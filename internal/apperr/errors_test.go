package apperr

import (
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Newf(CodeUnknownMember, "member %q is not in the group", "m-9")
	if !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("errors.Is(%v, ErrUnknownMember) = false", err)
	}
	if errors.Is(err, ErrAlreadyMember) {
		t.Fatal("different codes must not match")
	}

	wrapped := fmt.Errorf("add expense: %w", err)
	if !errors.Is(wrapped, ErrUnknownMember) {
		t.Fatal("code should survive fmt.Errorf wrapping")
	}
	if got := CodeOf(wrapped); got != CodeUnknownMember {
		t.Errorf("CodeOf = %s, want %s", got, CodeUnknownMember)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrInvalidAmount, KindValidation},
		{ErrAlreadyMember, KindValidation},
		{ErrNotPayer, KindAuthorization},
		{ErrCommitConflict, KindConflict},
		{ErrLedgerInvariant, KindInvariant},
		{ErrSplitMismatch, KindInvariant},
		{ErrGroupNotFound, KindNotFound},
		{ErrGroupDeleting, KindNotFound},
		{ErrCascadeIncomplete, KindStorage},
		{errors.New("disk on fire"), KindStorage},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Wrap(CodeStorage, "failed to commit", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	if err.Error() != "failed to commit: database is locked" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestConnectCode(t *testing.T) {
	tests := map[Code]connect.Code{
		CodeInvalidName:     connect.CodeInvalidArgument,
		CodeNotCreator:      connect.CodePermissionDenied,
		CodeUnauthorized:    connect.CodeUnauthenticated,
		CodeCommitConflict:  connect.CodeAborted,
		CodeLedgerInvariant: connect.CodeInternal,
		CodeExpenseNotFound: connect.CodeNotFound,
		CodeStorage:         connect.CodeUnavailable,
	}
	for code, want := range tests {
		if got := code.ConnectCode(); got != want {
			t.Errorf("%s.ConnectCode() = %v, want %v", code, got, want)
		}
	}
}
