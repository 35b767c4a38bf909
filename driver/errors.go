package driver

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/lib/cursor"
	"github.com/ValentinKolb/dQL/rpc/client"
	"github.com/ValentinKolb/dQL/rpc/common"
)

// SQLError is the error returned for every failed operation, it carries the
// SQLSTATE reported by the server or assigned by the driver
type SQLError = client.SQLError

var (
	// ErrTxNotSupported is returned by BeginTx
	ErrTxNotSupported = client.NewSQLError(common.SQLStateNotImplemented, "transactions are not supported")
	// ErrNamedArgs is returned for named arguments
	ErrNamedArgs = client.NewSQLError(common.SQLStateNotImplemented, "named arguments are not supported")
	// ErrConnClosed is returned when a closed connection is used
	ErrConnClosed = client.NewSQLError(common.SQLStateConnectionFailure, "connection closed")
)

// mapError converts cursor usage errors into SQL errors, other errors are returned unchanged
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var sqlErr *SQLError
	switch {
	case errors.As(err, &sqlErr):
		return err
	case errors.Is(err, cursor.ErrForwardOnly):
		return client.WrapSQLError(common.SQLStateNotImplemented, err)
	case errors.Is(err, cursor.ErrClosed), errors.Is(err, cursor.ErrNoRow), errors.Is(err, cursor.ErrNoOutputParameters):
		return client.WrapSQLError(common.SQLStateInvalidCursor, err)
	case errors.Is(err, batch.ErrContractViolation):
		return client.WrapSQLError(common.SQLStateGeneral, err)
	case errors.Is(err, context.DeadlineExceeded):
		return client.WrapSQLError(common.SQLStateTimeout, err)
	}
	return err
}
