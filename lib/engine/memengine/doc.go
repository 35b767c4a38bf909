// Package memengine implements an embedded in-memory query engine. It backs
// the "mem" virtual databases of the query server and the dql:mem driver DSN.
//
// Supported statements (keywords are case-insensitive, ? binds the next argument):
//
//	CREATE TABLE t (col TYPE, ...)
//	DROP TABLE t
//	INSERT INTO t [(col, ...)] VALUES (v, ...), ...
//	DELETE FROM t [WHERE col op v [AND ...]]
//	SELECT * | col, ... FROM t | SERIES(n) [WHERE col op v [AND ...]] [ORDER BY col [ASC|DESC]] [LIMIT n]
//	CALL SERIES(n)
//
// SERIES(n) is a table function producing the rows 1..n on demand. CALL SERIES(n)
// returns the rows (i, running total) followed by one output parameter row
// (n, total).
//
// Strings are ordered with a locale collator (golang.org/x/text/collate), the
// language is taken from Options. Rows appended to a table are never modified,
// so open results keep a consistent snapshot of the table.
package memengine
