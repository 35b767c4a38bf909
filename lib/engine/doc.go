// Package engine defines the query engines a query server executes statements
// with. An Engine turns a statement into a Result, a forward-only row stream the
// server side result registry pages through on behalf of the clients.
//
// Implementations:
//
//   - memengine: embedded in-memory tables with a small SQL dialect and the
//     SERIES(n) table function.
//
//   - sqlengine: pass-through to a database/sql backend (mysql, postgres, sqlite3).
//
// Errors:
//
//	Engines wrap ErrSyntax, ErrUnknownTable and ErrArgs so the server can report
//	the matching SQLSTATE. Every other error is reported as a general error.
package engine
