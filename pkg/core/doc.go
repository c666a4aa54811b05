// Package core defines the shared language of the AnySet query engine.
//
// This package contains:
//   - Column kinds, data types and aggregation functions with their legality rules
//   - The execution plan handed to adapters (Plan, ColumnRef, HierarchyExpansion)
//   - The normalized columnar response contract (Resultset)
//   - The error taxonomy (SchemaError, ValidationErrors, PlanningConflictError, AdapterError)
//   - Adapter and dialect configuration types
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
