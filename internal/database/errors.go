package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the application reacts to.
const (
	ErrNumDuplicateEntry  = 1062
	ErrNumLockWaitTimeout = 1205
	ErrNumDeadlock        = 1213
	ErrNumRowIsReferenced = 1451
	ErrNumNoReferencedRow = 1452
)

func mysqlErrNum(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// IsLockContention reports deadlocks and lock wait timeouts.
func IsLockContention(err error) bool {
	n := mysqlErrNum(err)
	return n == ErrNumDeadlock || n == ErrNumLockWaitTimeout
}

func IsDuplicate(err error) bool { return mysqlErrNum(err) == ErrNumDuplicateEntry }

// IsForeignKeyViolation covers both deleting a referenced row and pointing
// at a missing parent.
func IsForeignKeyViolation(err error) bool {
	n := mysqlErrNum(err)
	return n == ErrNumRowIsReferenced || n == ErrNumNoReferencedRow
}

// IsRowReferenced reports a delete blocked by child rows.
func IsRowReferenced(err error) bool { return mysqlErrNum(err) == ErrNumRowIsReferenced }
