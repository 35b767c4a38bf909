package common

import (
	"encoding/json"
	"fmt"
)

// NoFinalRow is the FinalRow of a response that does not know the end of the result
const NoFinalRow int64 = -1

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	Query     string  `json:"query,omitempty"`     // Used for: Execute
	Args      []Value `json:"args,omitempty"`      // Used for: Execute
	ResultID  uint64  `json:"resultId,omitempty"`  // Used for: Fetch, Close (request), Execute (response)
	BeginRow  int64   `json:"beginRow,omitempty"`  // Used for: Fetch (request), Execute and Fetch (response)
	FetchSize int64   `json:"fetchSize,omitempty"` // Used for: Execute, Fetch

	// Result fields
	Columns     []ColumnInfo `json:"columns,omitempty"`     // Used for: Execute
	Rows        [][]Value    `json:"rows,omitempty"`        // Used for: Execute, Fetch
	IsLast      bool         `json:"isLast,omitempty"`      // Used for: Execute, Fetch
	FinalRow    int64        `json:"finalRow,omitempty"`    // Used for: Execute, Fetch. NoFinalRow if unknown
	ParamRows   int64        `json:"paramRows,omitempty"`   // Used for: Execute, trailing output parameter rows
	UpdateCount int64        `json:"updateCount,omitempty"` // Used for: Execute, -1 for queries

	// Response only fields
	SQLState string `json:"sqlState,omitempty"` // SQLSTATE of the error, if any
	Err      string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
}

// ColumnInfo describes one column of a result
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // database type name, e.g. INTEGER or VARCHAR
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewExecuteRequest creates a new Execute request
func NewExecuteRequest(query string, args []Value, fetchSize int64) *Message {
	return &Message{
		MsgType:   MsgTExecute,
		Query:     query,
		Args:      args,
		FetchSize: fetchSize,
	}
}

// NewExecuteResponse creates a new Execute response carrying the first batch of a result
func NewExecuteResponse(resultID uint64, columns []ColumnInfo, rows [][]Value, isLast bool, finalRow, paramRows, updateCount int64) *Message {
	return &Message{
		MsgType:     MsgTExecute,
		ResultID:    resultID,
		Columns:     columns,
		Rows:        rows,
		BeginRow:    1,
		IsLast:      isLast,
		FinalRow:    finalRow,
		ParamRows:   paramRows,
		UpdateCount: updateCount,
	}
}

// NewFetchRequest creates a new Fetch request
func NewFetchRequest(resultID uint64, beginRow, fetchSize int64) *Message {
	return &Message{
		MsgType:   MsgTFetch,
		ResultID:  resultID,
		BeginRow:  beginRow,
		FetchSize: fetchSize,
	}
}

// NewFetchResponse creates a new Fetch response
func NewFetchResponse(rows [][]Value, beginRow int64, isLast bool, finalRow int64) *Message {
	return &Message{
		MsgType:  MsgTFetch,
		Rows:     rows,
		BeginRow: beginRow,
		IsLast:   isLast,
		FinalRow: finalRow,
	}
}

// NewCloseRequest creates a new Close request
func NewCloseRequest(resultID uint64) *Message {
	return &Message{
		MsgType:  MsgTClose,
		ResultID: resultID,
	}
}

// NewCloseResponse creates a new Close response
func NewCloseResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTClose,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewPingRequest creates a new Ping request
func NewPingRequest() *Message {
	return &Message{
		MsgType: MsgTPing,
	}
}

// NewPingResponse creates a new Ping response
func NewPingResponse() *Message {
	return &Message{
		MsgType: MsgTPing,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(sqlState, err string) *Message {
	return &Message{
		MsgType:  MsgTError,
		SQLState: sqlState,
		Err:      err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTExecute:
		return "execute"
	case MsgTFetch:
		return "fetch"
	case MsgTClose:
		return "close"
	case MsgTPing:
		return "ping"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "execute":
		*t = MsgTExecute
	case "fetch":
		*t = MsgTFetch
	case "close":
		*t = MsgTClose
	case "ping":
		*t = MsgTPing
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Query operations

	MsgTExecute // Execute a statement and return the first batch
	MsgTFetch   // Fetch a batch of an open result
	MsgTClose   // Release an open result

	// Session operations

	MsgTPing // Check that the database is reachable
)
