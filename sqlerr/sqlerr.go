package sqlerr

// Package sqlerr defines the error taxonomy every public operation in this
// module resolves to, and the single mapping point that translates engine
// errors into it. Classification prefers the engine's extended result codes;
// message-text inspection is a best-effort fallback kept in messages.go so no
// other package pattern-matches on error text.

import (
	"errors"
	"fmt"

	"github.com/ncruces/go-sqlite3"
)

// ConstraintKind distinguishes the constraint-violation subkinds callers
// dispatch on.
type ConstraintKind int

const (
	ConstraintGeneric ConstraintKind = iota
	ConstraintUnique
	ConstraintForeignKey
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign key"
	default:
		return "constraint"
	}
}

// PrepareError reports SQL text the engine could not compile.
type PrepareError struct {
	SQL     string
	Message string
	Code    int
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("preparing %q: %s", e.SQL, e.Message)
}

// BindError reports a parameter count or type mismatch while binding.
type BindError struct {
	SQL     string
	Message string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding parameters for %q: %s", e.SQL, e.Message)
}

// StepError reports an execution fault mid-statement.
type StepError struct {
	SQL     string
	Message string
	Code    int
}

func (e *StepError) Error() string {
	return fmt.Sprintf("executing %q: %s", e.SQL, e.Message)
}

// ConstraintError reports a constraint violation, with the subkind resolved
// from the engine's extended result code or, failing that, its message text.
type ConstraintError struct {
	Kind    ConstraintKind
	Message string
	Code    int
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint violated: %s", e.Kind, e.Message)
}

// TimeoutError reports busy/locked contention, distinct from hard failures so
// callers can retry.
type TimeoutError struct {
	Message string
	Code    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("database timed out: %s", e.Message)
}

// IsolationError reports a transaction isolation level the engine does not
// support.
type IsolationError struct {
	Level string
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("unsupported isolation level %q", e.Level)
}

// OpenError reports a failure to open the target database.
type OpenError struct {
	Target  string
	Message string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening database %q: %s", e.Target, e.Message)
}

// Error is the generic database error fallback.
type Error struct {
	Message string
	Code    int
}

func (e *Error) Error() string {
	return "database error: " + e.Message
}

// Open translates an engine open failure.
func Open(err error, target string) error {
	if err == nil {
		return nil
	}
	return &OpenError{Target: target, Message: err.Error()}
}

// Prepare translates an engine prepare failure, carrying the offending SQL.
func Prepare(err error, sql string) error {
	if err == nil {
		return nil
	}
	if mapped, ok := classify(err); ok {
		return mapped
	}
	return &PrepareError{SQL: sql, Message: err.Error(), Code: engineCode(err)}
}

// Bind translates a parameter-binding failure.
func Bind(err error, sql string) error {
	if err == nil {
		return nil
	}
	if mapped, ok := classify(err); ok {
		return mapped
	}
	return &BindError{SQL: sql, Message: err.Error()}
}

// Step translates an execution failure, adding the constraint and timeout
// classes when the engine's codes identify them.
func Step(err error, sql string) error {
	if err == nil {
		return nil
	}
	if mapped, ok := classify(err); ok {
		return mapped
	}
	return &StepError{SQL: sql, Message: err.Error(), Code: engineCode(err)}
}

// Exec translates a failure from a raw multi-statement script.
func Exec(err error, sql string) error {
	return Step(err, sql)
}

// Generic wraps any remaining engine error in the fallback class.
func Generic(err error) error {
	if err == nil {
		return nil
	}
	if mapped, ok := classify(err); ok {
		return mapped
	}
	return &Error{Message: err.Error(), Code: engineCode(err)}
}

// classify maps engine result codes onto the constraint and timeout classes.
// Everything else stays with the calling phase's error type.
func classify(err error) (error, bool) {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return nil, false
	}
	code := int(serr.ExtendedCode())
	switch serr.ExtendedCode() {
	case sqlite3.CONSTRAINT_UNIQUE, sqlite3.CONSTRAINT_PRIMARYKEY:
		return &ConstraintError{Kind: ConstraintUnique, Message: serr.Error(), Code: code}, true
	case sqlite3.CONSTRAINT_FOREIGNKEY:
		return &ConstraintError{Kind: ConstraintForeignKey, Message: serr.Error(), Code: code}, true
	}
	switch serr.Code() {
	case sqlite3.CONSTRAINT:
		return &ConstraintError{Kind: sniffConstraintKind(serr.Error()), Message: serr.Error(), Code: code}, true
	case sqlite3.BUSY, sqlite3.LOCKED:
		return &TimeoutError{Message: serr.Error(), Code: code}, true
	}
	return nil, false
}

func engineCode(err error) int {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return int(serr.ExtendedCode())
	}
	return 0
}
