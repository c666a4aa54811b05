package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports every problem found while loading a dataset definition.
// It is fatal to the dataset binding.
type SchemaError struct {
	Dataset  string
	Problems []string
}

func (e *SchemaError) Error() string {
	name := e.Dataset
	if name == "" {
		name = "dataset"
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid schema %s: %s", name, e.Problems[0])
	}
	return fmt.Sprintf("invalid schema %s: %d problems:\n  - %s", name, len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// FieldError is one validation failure, addressed by the request field path
// (e.g. "filters[2].range").
type FieldError struct {
	Path    string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"reason"`
}

func (e FieldError) Error() string {
	return e.Path + ": " + e.Message
}

// ValidationErrors is the full list of problems with a request.
type ValidationErrors struct {
	Errors []FieldError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return "invalid query: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid query: %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// PlanningConflictError reports a request that is well formed but
// semantically contradictory, such as mixing an ungrouped column with
// aggregations.
type PlanningConflictError struct {
	Path    string
	Message string
}

func (e *PlanningConflictError) Error() string {
	if e.Path == "" {
		return "planning conflict: " + e.Message
	}
	return fmt.Sprintf("planning conflict at %s: %s", e.Path, e.Message)
}

// ErrPlanningConflict creates a PlanningConflictError with a formatted message.
func ErrPlanningConflict(path, format string, args ...any) *PlanningConflictError {
	return &PlanningConflictError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// ErrContractViolation marks adapter output that does not match the plan.
var ErrContractViolation = errors.New("adapter result violates response contract")

// AdapterError wraps a failure raised while executing a plan.
type AdapterError struct {
	Adapter string
	Op      string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on retry. Contract
// violations and cancellations are deterministic.
func (e *AdapterError) Retryable() bool {
	return !errors.Is(e.Err, ErrContractViolation) && !errors.Is(e.Err, context.Canceled)
}

// NotFoundError indicates a dataset, table or hierarchy was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrorClass groups errors by how callers should react to them.
type ErrorClass int

const (
	// ClassInternal is anything unclassified.
	ClassInternal ErrorClass = iota
	// ClassValidation is malformed caller input.
	ClassValidation
	// ClassPlanning is a semantic conflict in otherwise valid input.
	ClassPlanning
	// ClassNotFound is an unknown dataset or resource.
	ClassNotFound
	// ClassAdapter is an execution failure, possibly transient.
	ClassAdapter
	// ClassSchema is a broken dataset definition.
	ClassSchema
)

// String returns the class name used in error payloads.
func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation_error"
	case ClassPlanning:
		return "planning_conflict"
	case ClassNotFound:
		return "not_found"
	case ClassAdapter:
		return "adapter_error"
	case ClassSchema:
		return "schema_error"
	default:
		return "internal_error"
	}
}

// Classify maps an error onto its class.
func Classify(err error) ErrorClass {
	var validation *ValidationErrors
	var planning *PlanningConflictError
	var notFound *NotFoundError
	var adapterErr *AdapterError
	var schemaErr *SchemaError

	switch {
	case err == nil:
		return ClassInternal
	case errors.As(err, &validation):
		return ClassValidation
	case errors.As(err, &planning):
		return ClassPlanning
	case errors.As(err, &notFound):
		return ClassNotFound
	case errors.As(err, &adapterErr):
		return ClassAdapter
	case errors.As(err, &schemaErr):
		return ClassSchema
	default:
		return ClassInternal
	}
}
