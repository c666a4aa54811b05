package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassInternal},
		{"validation", &ValidationErrors{Errors: []FieldError{{Path: "table_name", Code: "table_not_found", Message: "unknown"}}}, ClassValidation},
		{"planning", ErrPlanningConflict("order_by[0]", "not grouped"), ClassPlanning},
		{"not found", ErrNotFound("dataset %q not found", "cc/v1"), ClassNotFound},
		{"wrapped adapter", fmt.Errorf("query: %w", &AdapterError{Adapter: "postgres", Op: "execute", Err: errors.New("boom")}), ClassAdapter},
		{"schema", &SchemaError{Dataset: "cc", Problems: []string{"bad"}}, ClassSchema},
		{"plain", errors.New("x"), ClassInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	one := &ValidationErrors{Errors: []FieldError{{Path: "pagination.limit", Message: "must be greater than 0"}}}
	assert.Equal(t, "invalid query: pagination.limit: must be greater than 0", one.Error())

	two := &ValidationErrors{Errors: []FieldError{
		{Path: "pagination.offset", Message: "must not be negative"},
		{Path: "pagination.limit", Message: "must be greater than 0"},
	}}
	assert.Contains(t, two.Error(), "2 errors")
	assert.Contains(t, two.Error(), "pagination.offset")
}

func TestSchemaError_Error(t *testing.T) {
	err := &SchemaError{Dataset: "cc", Problems: []string{"a", "b"}}
	assert.Contains(t, err.Error(), "2 problems")
	assert.Contains(t, err.Error(), "- b")
}

func TestAdapterError_Retryable(t *testing.T) {
	transient := &AdapterError{Adapter: "postgres", Op: "execute", Err: errors.New("connection refused")}
	assert.True(t, transient.Retryable())

	canceled := &AdapterError{Adapter: "postgres", Op: "execute", Err: fmt.Errorf("query: %w", context.Canceled)}
	assert.False(t, canceled.Retryable())
}
