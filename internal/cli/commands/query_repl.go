package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/internal/service"
	"github.com/leapstack-labs/anyset/pkg/query"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

const (
	replPrompt      = "anyset> "
	replContinue    = "   ...> "
	replHistoryFile = ".anyset_history"
)

func runQueryREPL(cmd *cobra.Command, ref string, format output.TableFormat) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	catalog, reg, err := cc.OpenDataset(ctx, ref)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	// History is project-local; without a project root it is not kept.
	historyFile := ""
	if cc.Cfg.ProjectRoot != "" {
		historyFile = filepath.Join(cc.Cfg.ProjectRoot, replHistoryFile)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newRequestCompleter(reg),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "AnySet query shell (%s)\n", reg.Key())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Enter a JSON request, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	s := newReplSession(ctx, catalog, reg, cmd.OutOrStdout(), cmd.ErrOrStderr(), format)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		prompt, quit := s.feed(line)
		if quit {
			break
		}
		rl.SetPrompt(prompt)
	}
	return nil
}

// replSession holds the state of one interactive shell: the dataset and a
// request that may span several lines.
type replSession struct {
	ctx     context.Context
	catalog *service.Catalog
	reg     *schema.Registry
	out     io.Writer
	errOut  io.Writer
	format  output.TableFormat
	buf     strings.Builder
}

func newReplSession(ctx context.Context, catalog *service.Catalog, reg *schema.Registry, out, errOut io.Writer, format output.TableFormat) *replSession {
	return &replSession{ctx: ctx, catalog: catalog, reg: reg, out: out, errOut: errOut, format: format}
}

func (s *replSession) reset() {
	s.buf.Reset()
}

// feed consumes one input line and returns the prompt for the next one.
// A request runs once the accumulated text is complete JSON.
func (s *replSession) feed(line string) (prompt string, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		if s.buf.Len() > 0 {
			return replContinue, false
		}
		return replPrompt, false
	}

	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return replPrompt, s.handleDotCommand(line)
	}

	s.buf.WriteString(line)
	s.buf.WriteByte('\n')
	body := s.buf.String()
	if !json.Valid([]byte(body)) {
		if strings.Count(body, "{") > strings.Count(body, "}") {
			return replContinue, false
		}
		s.reset()
		s.fail(fmt.Errorf("malformed request: not valid JSON"))
		return replPrompt, false
	}
	s.reset()

	if err := s.execute(body); err != nil {
		s.fail(err)
	}
	_, _ = fmt.Fprintln(s.out)
	return replPrompt, false
}

func (s *replSession) execute(body string) error {
	req, err := query.Parse([]byte(body))
	if err != nil {
		return err
	}
	rs, err := s.catalog.Query(s.ctx, s.reg.PathPrefix, s.reg.Version, req)
	if err != nil {
		return err
	}
	return renderResultset(s.out, rs, s.format)
}

func (s *replSession) fail(err error) {
	_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
}

// handleDotCommand runs a shell command and reports whether to quit.
func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".tables":
		for _, t := range s.reg.Tables() {
			_, _ = fmt.Fprintln(s.out, t.Name)
		}

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .schema <table>")
			return false
		}
		t, err := s.reg.LookupTable(parts[1])
		if err != nil {
			s.fail(err)
			return false
		}
		rows := make([][]any, 0, len(t.Columns()))
		for _, c := range t.Columns() {
			rows = append(rows, []any{c.Name, c.Kind, c.DataType})
		}
		output.WriteTable(s.out, s.tableFormat(), []string{"column", "kind", "data type"}, rows)

	case ".hierarchies":
		for _, h := range s.reg.Hierarchies() {
			levels := make([]string, len(h.Levels))
			for i, l := range h.Levels {
				levels[i] = l.Column
			}
			_, _ = fmt.Fprintf(s.out, "%s: %s\n", h.Name, strings.Join(levels, " > "))
		}

	case ".options":
		opts, err := s.catalog.FilterOptions(s.ctx, s.reg.PathPrefix, s.reg.Version)
		if err != nil {
			s.fail(err)
			return false
		}
		for _, opt := range opts {
			_, _ = fmt.Fprintf(s.out, "%s (%s): %s\n", opt.Name, opt.Kind, summarizeValues(opt))
		}

	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "format: %s\n", s.format)
			return false
		}
		f, err := output.ParseTableFormat(parts[1])
		if err != nil {
			s.fail(err)
			return false
		}
		s.format = f

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

// tableFormat is the format for listings; JSON output still lists as a table.
func (s *replSession) tableFormat() output.TableFormat {
	if s.format == output.TableJSON {
		return output.TableText
	}
	return s.format
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .tables           List the dataset's tables
  .schema <table>   Show the columns of a table
  .hierarchies      List hierarchies
  .options          Show filter options
  .format <fmt>     Switch output: table, md, csv, json
  .quit / .exit     Exit the shell

Tips:
  - A request may span lines; it runs once the JSON is complete
  - Ctrl-C discards a partial request
  - Tab completion works for commands, tables and columns
`
	_, _ = fmt.Fprintln(w, help)
}

// newRequestCompleter completes dot-commands, table names and column names.
func newRequestCompleter(reg *schema.Registry) *readline.PrefixCompleter {
	var tables []readline.PrefixCompleterInterface
	var items []readline.PrefixCompleterInterface
	for _, t := range reg.Tables() {
		tables = append(tables, readline.PcItem(t.Name))
		for _, c := range t.Columns() {
			items = append(items, readline.PcItem(c.Name))
		}
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema", tables...),
		readline.PcItem(".hierarchies"),
		readline.PcItem(".options"),
		readline.PcItem(".format",
			readline.PcItem("table"), readline.PcItem("md"), readline.PcItem("csv"), readline.PcItem("json")),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
