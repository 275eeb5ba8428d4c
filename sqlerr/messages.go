package sqlerr

// The engine reports some conditions only through message text. Every piece of
// text matching lives here; nothing outside this file inspects messages.

import "strings"

// IsNoActiveTransaction reports the engine's complaint that a commit or
// rollback was issued with no transaction open. Callers treat it as a benign
// double-commit/rollback during error recovery.
func IsNoActiveTransaction(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no transaction is active")
}

// IsMissingSavepoint reports a release or rollback that names a savepoint the
// engine no longer holds. Tolerated as an at-least-once release.
func IsMissingSavepoint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such savepoint")
}

// sniffConstraintKind resolves a constraint subkind from message text when the
// extended result code did not already decide it.
func sniffConstraintKind(msg string) ConstraintKind {
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "PRIMARY KEY must be unique"):
		return ConstraintUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ConstraintForeignKey
	default:
		return ConstraintGeneric
	}
}
