// Package cursor implements the result set state machine on top of the batch
// cache of package batch.
//
// A Cursor starts before the first row. Next is available on every cursor,
// the remaining movements (Previous, First, Last, Absolute, Relative,
// BeforeFirst, AfterLast) only on scrollable cursors. Forward-only cursors
// return ErrForwardOnly for them.
//
// Positions:
//
//	row:      0        1 .. N        N+1
//	       before      data         after
//	       first       rows         last
//
// A result of a procedure call may carry one trailing output parameter row.
// It is never visited by navigation and is read with OutputParameters. On a
// forward-only cursor this is only possible once every data row was read.
//
// Close releases the server side result through the Closer given in Options.
package cursor
