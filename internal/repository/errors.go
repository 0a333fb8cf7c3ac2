// Package repository implements the durable seat map, seat lock ledger
// and booking records on MySQL.  Errors returned from this package are
// translated into the sentinel kinds of the model package where the
// database reports a business condition (duplicate active lock,
// duplicate idempotency key) and marked transient with txn.Transient
// where the database reports a coordination failure.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/seat-booking/internal/txn"
)

// MySQL server error numbers the repository reacts to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

func mysqlErrNumber(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

// isDuplicateKey reports whether err is a unique key violation.
func isDuplicateKey(err error) bool {
	n, ok := mysqlErrNumber(err)
	return ok && n == errDupEntry
}

// isCoordinationFailure reports whether err is a deadlock or lock wait
// timeout, both of which abort the transaction and are safe to replay.
func isCoordinationFailure(err error) bool {
	n, ok := mysqlErrNumber(err)
	return ok && (n == errLockDeadlock || n == errLockWaitTimeout)
}

// classify marks coordination failures as transient and leaves every
// other error unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isCoordinationFailure(err) {
		return txn.Transient(err)
	}
	return err
}
