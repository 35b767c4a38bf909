package client

import (
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
)

// SQLError is an error reported by the server or the driver, classified by its SQLSTATE
type SQLError struct {
	SQLState string
	Msg      string
	cause    error
}

func newSQLError(sqlState, msg string) *SQLError {
	if sqlState == "" {
		sqlState = common.SQLStateGeneral
	}
	return &SQLError{SQLState: sqlState, Msg: msg}
}

// NewSQLError creates an error with the given SQLSTATE
func NewSQLError(sqlState, format string, args ...any) *SQLError {
	return newSQLError(sqlState, fmt.Sprintf(format, args...))
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("[%s] %s", e.SQLState, e.Msg)
}

// Unwrap returns the transport error behind a connection failure, if any
func (e *SQLError) Unwrap() error {
	return e.cause
}

// Is reports SQL errors with the same SQLSTATE as equal
func (e *SQLError) Is(target error) bool {
	t, ok := target.(*SQLError)
	return ok && t.SQLState == e.SQLState && (t.Msg == "" || t.Msg == e.Msg)
}

// WrapSQLError classifies err with a SQLSTATE, err stays reachable through errors.Is
func WrapSQLError(sqlState string, err error) *SQLError {
	e := newSQLError(sqlState, err.Error())
	e.cause = err
	return e
}
