package actions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// ErrInvalidActionKind is returned when the kind is not one of models.Kinds.
// Nothing is recorded and the store is never queried.
var ErrInvalidActionKind = errors.New("invalid action kind")

// ErrNotFound is matched by *NotFoundError.
var ErrNotFound = db.ErrNotFound

// Steps of an action, used to locate a StoreError.
const (
	StepResolve    = "resolve identifiers"
	StepIntent     = "record intent"
	StepMutate     = "mutate"
	StepCompletion = "record completion"
)

// FieldError is one rule a details field broke.
type FieldError struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

// ValidationError reports malformed details. No action is recorded.
type ValidationError struct {
	Kind   models.Kind  `json:"kind"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Problem)
	}
	return fmt.Sprintf("invalid %s details: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ValidationError) add(field, problem string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Problem: problem})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NotFoundError reports records missing at identifier resolution. The intent
// is recorded but the mutation is skipped.
type NotFoundError struct {
	Kind  models.Kind
	Table string
	UUIDs []string
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s (%s) not found", e.Table, e.UUIDs[0])
	}
	return fmt.Sprintf("%s (%s) not found", e.Table, strings.Join(e.UUIDs, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StoreError wraps a store failure with the step it happened in. When
// ActionID is set the intent was recorded and the action is left without
// performedAt.
type StoreError struct {
	ActionID string
	Step     string
	Err      error
}

func (e *StoreError) Error() string {
	if e.ActionID == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("action %s: %s: %v", e.ActionID, e.Step, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
