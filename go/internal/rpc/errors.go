package rpc

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

// ErrorKindHeader carries the error taxonomy name next to the connect code.
const ErrorKindHeader = "Escape-Error"

type errorKind struct {
	sentinel error
	name     string
	code     connect.Code
}

// Order matters: the first sentinel matched wins.
var errorKinds = []errorKind{
	{models.ErrAuth, "AuthError", connect.CodeUnauthenticated},
	{models.ErrSessionExpired, "Expired", connect.CodePermissionDenied},
	{models.ErrSessionInactive, "SessionInactive", connect.CodePermissionDenied},
	{models.ErrNicknameInvalid, "NicknameInvalid", connect.CodeInvalidArgument},
	{models.ErrInvalidArgument, "InvalidArgument", connect.CodeInvalidArgument},
	{models.ErrInvalidState, "InvalidState", connect.CodeFailedPrecondition},
	{models.ErrNotFound, "NotFound", connect.CodeNotFound},
}

// ToConnectError maps an application error onto a connect error.
func ToConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind.sentinel) {
			cerr := connect.NewError(kind.code, err)
			cerr.Meta().Set(ErrorKindHeader, kind.name)
			return cerr
		}
	}
	return connect.NewError(connect.CodeInternal, err)
}

// FromConnectError recovers the application sentinel from an RPC failure.
// Anything that did not come back as a classified server answer is a
// transient network error.
func FromConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return errors.Join(models.ErrNetwork, err)
	}

	name := connectErr.Meta().Get(ErrorKindHeader)
	for _, kind := range errorKinds {
		if name == kind.name {
			return errors.Join(kind.sentinel, errors.New(connectErr.Message()))
		}
	}

	switch connectErr.Code() {
	case connect.CodeUnauthenticated:
		return errors.Join(models.ErrAuth, err)
	case connect.CodePermissionDenied:
		return errors.Join(models.ErrSessionInactive, err)
	case connect.CodeFailedPrecondition:
		return errors.Join(models.ErrInvalidState, err)
	case connect.CodeNotFound:
		return errors.Join(models.ErrNotFound, err)
	case connect.CodeInvalidArgument:
		return errors.Join(models.ErrInvalidArgument, err)
	default:
		return errors.Join(models.ErrNetwork, err)
	}
}
