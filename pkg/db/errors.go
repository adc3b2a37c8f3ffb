package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether err is a unique violation, optionally on a
// specific constraint. SQLite errors are matched on their message text.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pkgerrors.PGCode(err) == sqlStateUniqueViolation {
		return constraintName == "" || pkgerrors.PGConstraint(err) == constraintName ||
			strings.Contains(err.Error(), constraintName)
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err is a CHECK constraint failure.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if pkgerrors.PGCode(err) == sqlStateCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// IsRetryableTxError reports deadlock victims and serialization failures.
func IsRetryableTxError(err error) bool {
	switch pkgerrors.PGCode(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}
