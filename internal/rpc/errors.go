package rpc

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/apperr"
)

// errorCodeKey carries the ledger error code next to the Connect code, so a
// client can tell NotPayer from NotCreator.
const errorCodeKey = "Splitledger-Error-Code"

// toConnectError maps a service error onto a Connect error.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return connect.NewError(connect.CodeInternal, err)
	}
	connectErr = connect.NewError(appErr.Code.ConnectCode(), err)
	connectErr.Meta().Set(errorCodeKey, string(appErr.Code))
	return connectErr
}

// fromConnectError restores the ledger error code on the client side. Errors
// without one are returned as they are.
func fromConnectError(err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return err
	}
	code := connectErr.Meta().Get(errorCodeKey)
	if code == "" {
		return err
	}
	return apperr.Wrap(apperr.Code(code), connectErr.Message(), err)
}
