package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/validator"
)

// ErrInvalidRequest is returned when validation reports problems, so the
// process exits non-zero after the report is printed.
var ErrInvalidRequest = errors.New("request is invalid")

// validateOutput is the JSON output of the validate command.
type validateOutput struct {
	Dataset string            `json:"dataset"`
	Valid   bool              `json:"valid"`
	Errors  []core.FieldError `json:"errors"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dataset> <request.json|->",
		Short: "Validate a query request against a dataset schema",
		Long: `Check a query request against a dataset schema without planning or
executing it. Every problem is reported with the request field it refers to.

The dataset is <path_prefix>[/v<version>]; without a version the latest is used.
The request is a file path, "-" for stdin, or inline JSON.`,
		Example: `  # Validate a request file
  anyset validate cc/v1 request.json

  # Validate inline JSON
  anyset validate cc '{"table_name":"cc_transactions","select":[{"column_name":"state"}]}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], args[1])
		},
	}
}

func runValidate(cmd *cobra.Command, ref, src string) error {
	cc := NewCommandContext(cmd)
	reg, err := cc.LoadDataset(ref)
	if err != nil {
		return err
	}
	req, err := readRequest(cmd, src)
	if err != nil {
		return err
	}

	res := validator.Validate(req, reg, validator.WithMaxLimit(cc.Cfg.Query.MaxLimit))
	r := cc.Renderer

	switch r.EffectiveMode() {
	case output.ModeJSON:
		errs := res.Errors
		if errs == nil {
			errs = []core.FieldError{}
		}
		if err := r.JSON(validateOutput{Dataset: reg.Key(), Valid: res.OK(), Errors: errs}); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Header(1, "Validation: "+reg.Key())
		if res.OK() {
			r.Println("Request is valid.")
			break
		}
		r.Println("| Field | Code | Reason |")
		r.Println("| --- | --- | --- |")
		for _, fe := range res.Errors {
			r.Printf("| `%s` | %s | %s |\n", fe.Path, fe.Code, fe.Message)
		}
	default:
		if res.OK() {
			r.Success(fmt.Sprintf("request is valid for %s", reg.Key()))
			break
		}
		styles := r.Styles()
		r.Fail(fmt.Sprintf("%d problem(s) for %s", len(res.Errors), reg.Key()))
		for _, fe := range res.Errors {
			r.Printf("  %s %s %s\n", styles.Bold.Render(fe.Path), styles.Muted.Render("["+fe.Code+"]"), fe.Message)
		}
	}

	if !res.OK() {
		return ErrInvalidRequest
	}
	return nil
}
