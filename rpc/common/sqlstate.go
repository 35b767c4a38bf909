package common

// SQLSTATE codes exchanged between server and driver
const (
	SQLStateGeneral           = "HY000" // general error
	SQLStateInvalidCursor     = "24000" // invalid cursor state
	SQLStateNotImplemented    = "HYC00" // optional feature not implemented
	SQLStateSyntax            = "42000" // syntax error or access rule violation
	SQLStateUndefinedTable    = "42S02" // base table or view not found
	SQLStateConnectionFailure = "08006" // connection failure
	SQLStateRejected          = "08004" // server rejected the connection
	SQLStateInvalidParameter  = "HY024" // invalid attribute value
	SQLStateTimeout           = "HYT00" // timeout expired
)
