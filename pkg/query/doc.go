// Package query defines the abstract, backend-agnostic query request that
// callers send for a dataset, and its JSON wire form.
//
// A request names one table and lists selected columns, aggregations,
// filters, ordering, pagination and an optional breakdown column. Nothing in
// this package consults a schema: a decoded request is only well formed, not
// valid. Use package validator to check it against a registry and package
// planner to lower it into a core.Plan.
package query
