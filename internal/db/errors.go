package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEntityAlreadyExists indicates a record with the same ID or a unique
	// index key already exists.
	ErrEntityAlreadyExists = errors.New("entity already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict, or a
	// conditional write that lost a race against a concurrent writer.
	// Callers may retry the whole operation.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("entity not found")
)

// notFoundMarker is thrown from SurrealQL blocks that verify a record first.
const notFoundMarker = "histograph: record not found"

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Returns the original error
// if it's not a QueryError or doesn't match known patterns.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		return classifyMessage(queryErr.Message, err)
	}
	return err
}

func classifyMessage(msg string, err error) error {
	switch {
	case strings.Contains(msg, notFoundMarker):
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "already contains"):
		return fmt.Errorf("%w: %s", ErrEntityAlreadyExists, msg)
	case strings.Contains(msg, "Transaction conflict"):
		return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
	}
	return err
}
