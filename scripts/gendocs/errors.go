package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/anyset/pkg/validator"
)

type errorCode struct {
	code        string
	status      int
	description string
}

var responseCodes = []errorCode{
	{"malformed_request", http.StatusBadRequest, "The body is not a JSON query request"},
	{"validation_error", http.StatusBadRequest, "The request breaks the dataset schema; see errors"},
	{"planning_conflict", http.StatusUnprocessableEntity, "Validated, but no plan satisfies the request"},
	{"not_found", http.StatusNotFound, "Unknown dataset or version"},
	{"rate_limited", http.StatusTooManyRequests, "The client exceeded its request rate"},
	{"adapter_error", http.StatusBadGateway, "The database rejected or failed the query"},
	{"timeout", http.StatusGatewayTimeout, "The query ran past query.timeout"},
	{"internal_error", http.StatusInternalServerError, "Anything else"},
}

var fieldCodes = []errorCode{
	{validator.CodeTableNotFound, 0, "A referenced table is not in the dataset"},
	{validator.CodeColumnNotFound, 0, "A referenced column is not in its table"},
	{validator.CodeUnknownAggregation, 0, "The aggregation name is neither built in nor declared"},
	{validator.CodeAggregationNotAllowed, 0, "The aggregation does not apply to the column's kind"},
	{validator.CodeFilterKindMismatch, 0, "The filter kind does not fit the column's kind"},
	{validator.CodeUnknownFilterKind, 0, "The filter kind is not recognised"},
	{validator.CodeRangeUnbounded, 0, "A range filter has neither bound"},
	{validator.CodeRangeOrder, 0, "A range filter's lower bound exceeds its upper bound"},
	{validator.CodeInvalidRangeBound, 0, "A range bound does not parse for the column's data type"},
	{validator.CodeEmptyFilterValues, 0, "A value filter lists no values"},
	{validator.CodeDuplicateAlias, 0, "Two outputs share an alias"},
	{validator.CodeAliasRequired, 0, "An aggregation lacks an alias"},
	{validator.CodePaginationOffset, 0, "The offset is negative"},
	{validator.CodePaginationLimit, 0, "The limit is not positive"},
	{validator.CodePaginationLimitCeiling, 0, "The limit exceeds query.max_limit"},
	{validator.CodeEmptyProjection, 0, "The request selects nothing"},
	{validator.CodeInvalidDirection, 0, "A sort direction is neither asc nor desc"},
	{validator.CodeBreakdownKind, 0, "A breakdown column is not a category or date column"},
}

// generateErrorDocs writes the error code reference.
func generateErrorDocs(outDir string) error {
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Errors", "HTTP error responses and validation codes")
	w.GeneratedMarker()

	w.Header(1, "Errors")
	w.Paragraph("Failed requests return a JSON body with " + InlineCode("code") + ", " + InlineCode("message") +
		" and the request ID. Validation failures also list every problem found under " + InlineCode("errors") + ".")

	w.Header(2, "Response codes")
	rows := make([][]string, 0, len(responseCodes))
	for _, c := range responseCodes {
		rows = append(rows, []string{InlineCode(c.code), fmt.Sprintf("%d", c.status), c.description})
	}
	w.Table([]string{"Code", "Status", "Meaning"}, rows)

	w.Header(2, "Validation codes")
	w.Paragraph("Each entry in " + InlineCode("errors") + " carries the request field it refers to and one of these codes.")
	rows = rows[:0]
	for _, c := range fieldCodes {
		rows = append(rows, []string{InlineCode(c.code), c.description})
	}
	w.Table([]string{"Code", "Meaning"}, rows)

	w.CodeBlock("json", `{
  "code": "validation_error",
  "message": "invalid query: projection[0].column: column amount not found in cc_transactions",
  "request_id": "host/abc-000001",
  "errors": [
    {"field": "projection[0].column", "code": "column_not_found", "reason": "column amount not found in cc_transactions"}
  ]
}`)

	filename := filepath.Join(outDir, "errors.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
