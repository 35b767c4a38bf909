package cursor

import (
	"errors"
	"github.com/ValentinKolb/dQL/lib/batch"
)

var (
	// ErrForwardOnly is returned by every movement except Next on a forward-only cursor
	ErrForwardOnly = batch.ErrForwardOnly

	// ErrClosed is returned by every operation on a closed cursor
	ErrClosed = errors.New("cursor: closed")

	// ErrNoRow is returned when row data is read while the cursor is not on a row
	ErrNoRow = errors.New("cursor: not on a row")

	// ErrNoOutputParameters is returned by OutputParameters for results without them
	ErrNoOutputParameters = errors.New("cursor: result has no output parameters")

	// ErrColumnIndex is returned for a column index outside the result
	ErrColumnIndex = errors.New("cursor: column index out of range")
)
