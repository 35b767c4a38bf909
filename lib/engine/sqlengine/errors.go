package sqlengine

import (
	"errors"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLState extracts the SQLSTATE reported by a backend driver, ok is false
// for errors that carry none
func SQLState(err error) (state string, ok bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.SQLState != [5]byte{} {
		return string(mysqlErr.SQLState[:]), true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code != "" {
		return string(pqErr.Code), true
	}

	// SQLite reports result codes only
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return "23000", true
		case sqlite3.ErrError:
			return "42000", true
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return "40001", true
		}
	}
	return "", false
}
