// Package driver is the database/sql driver of dQL. It is registered as "dql".
//
// Usage:
//
//	db, err := sql.Open("dql", "dql://localhost:8080/shop?fetchSize=500")
//	rows, err := db.QueryContext(ctx, "SELECT id, name FROM items")
//
// Data source names:
//
//	dql://host:port[,host:port]/<db>?<key>=<value>&...   remote server(s)
//	dql:mem[/<db>]?script=seed.sql                       in-process server with an in-memory database
//	dql:mdns[/<db>]                                      first server announcing <db> via mDNS
//
// Properties (see the Prop constants) are read from the DSN, from DQL_<KEY>
// environment variables and from a named section of an ini profile file
// (~/.dql/profiles.ini or the profiles property), in this order of priority.
//
// Rows returned through database/sql are forward-only. QueryCursor exposes
// the underlying scrollable cursor of package cursor:
//
//	cur, err := driver.QueryCursor(ctx, conn, "SELECT * FROM items", driver.CursorOptions{Scrollable: true})
//	ok, err := cur.Last(ctx)
//	ok, err = cur.Absolute(ctx, 42)
//
// Transactions and named parameters are not supported. Errors of the server
// and of the cursor are returned as *SQLError carrying a SQLSTATE code.
package driver
