// Package sqlengine implements a query engine passing statements through to a
// database/sql backend. The mysql (go-sql-driver/mysql), postgres (lib/pq) and
// sqlite3 (mattn/go-sqlite3) drivers are registered by this package.
//
// Statements starting with a row returning keyword (SELECT, WITH, SHOW, CALL,
// VALUES, EXPLAIN, PRAGMA, DESCRIBE) are run as queries, everything else as
// an update reporting the affected rows. Text values are returned as strings,
// binary columns as bytes.
//
// Open results hold a connection of the backend pool until they are closed.
package sqlengine
