// Package results implements the server side registry of open results. The
// query server keeps the result of every executed statement here until the
// client closes it, so clients can page through it batch by batch, in any
// order.
//
// Rows are pulled from the engine lazily. A fetch materializes rows up to the
// end of the requested window plus one row of look ahead, which tells whether
// the window is the last one. Materialized rows stay buffered until the
// result is closed, so earlier windows can be served again when a scrollable
// client moves backwards.
//
// Fetching from batch.RowEnd drains the result and returns the trailing window
// together with the final row number. A window starting after the final row is
// answered with the empty final batch.
//
// Results not fetched for a while are released by CloseIdle.
package results
