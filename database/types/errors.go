//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the expression tree, the compilers and the query builder.
// These can be used with errors.Is() for programmatic error checking.
var (
	// ErrInvalidArgument is returned for malformed call shapes, empty required sets and bad ranges.
	// It is always raised before anything reaches a backend.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingTable is returned when a tree is compiled or executed without a table.
	ErrMissingTable = fmt.Errorf("%w: table name cannot be empty", ErrInvalidArgument)

	// ErrUnsupported is returned when a dialect cannot express a clause (e.g. FULL JOIN on MySQL).
	ErrUnsupported = errors.New("unsupported by dialect")

	// ErrModelNotFound is raised by the *OrFail family when no row matches.
	ErrModelNotFound = errors.New("model not found")

	// ErrQueryExecution marks backend failures for a well-formed request.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrTransaction marks commit/rollback failures.
	ErrTransaction = errors.New("transaction failed")

	// ErrNestedTransaction is returned when a transaction is started from a builder already bound to one.
	ErrNestedTransaction = fmt.Errorf("%w: nested transactions are not supported", ErrTransaction)
)

// InvalidArgumentf formats a message and wraps ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// QueryExecutionError wraps a backend error together with the compiled request that caused it.
type QueryExecutionError struct {
	Request *Request
	Err     error
}

func (e *QueryExecutionError) Error() string {
	if e.Request == nil {
		return fmt.Sprintf("%s: %v", ErrQueryExecution, e.Err)
	}
	return fmt.Sprintf("%s: %v (request: %s)", ErrQueryExecution, e.Err, e.Request)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Is reports ErrQueryExecution so callers can match without errors.As.
func (e *QueryExecutionError) Is(target error) bool {
	return target == ErrQueryExecution
}

// NewQueryExecutionError wraps err unless it already is a QueryExecutionError.
func NewQueryExecutionError(req *Request, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryExecutionError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryExecutionError{Request: req, Err: err}
}

// ModelNotFoundError is returned by FindOrFail, FirstOrFail and LastOrFail.
type ModelNotFoundError struct {
	Table string
	ID    any
}

func (e *ModelNotFoundError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s: %s with id %v", ErrModelNotFound, e.Table, e.ID)
	}
	return fmt.Sprintf("%s: %s", ErrModelNotFound, e.Table)
}

func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}

// TransactionError wraps a failed commit or rollback. It is always fatal to the scope.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransaction, e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}

// NewTransactionError wraps err as a failure of the named transaction step.
func NewTransactionError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransactionError{Op: op, Err: err}
}
