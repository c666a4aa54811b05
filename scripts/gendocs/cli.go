package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/anyset/internal/cli"
	"github.com/leapstack-labs/anyset/internal/config"
)

// generateCLIDocs writes an index page plus one page per command. Nested
// commands such as "schema check" get their own page named schema-check.md.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	cmds := documented(root)

	if err := writePage(outDir, "index.md", cliIndex(root, cmds)); err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := writePage(outDir, pageName(cmd)+".md", commandPage(cmd)); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", cmd.CommandPath(), err)
		}
	}
	return nil
}

// documented returns every visible command below root, depth first.
func documented(root *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || strings.HasPrefix(cmd.Name(), "__") {
			continue
		}
		out = append(out, cmd)
		out = append(out, documented(cmd)...)
	}
	return out
}

// pageName is the command path without the binary name, dash-joined.
func pageName(cmd *cobra.Command) string {
	parts := strings.Fields(cmd.CommandPath())
	return strings.Join(parts[1:], "-")
}

func writePage(dir, name string, w *MarkdownWriter) error {
	log.Printf("  %s", name)
	return os.WriteFile(filepath.Join(dir, name), w.Bytes(), 0600)
}

func cliIndex(root *cobra.Command, cmds []*cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for AnySet")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("The anyset command serves datasets over HTTP and validates, plans and runs query requests from the shell.")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/anyset/cmd/anyset@latest\nanyset <command> [options]")

	w.Header(2, "Commands")
	rows := make([][]string, 0, len(cmds))
	for _, cmd := range cmds {
		name := strings.TrimPrefix(cmd.CommandPath(), root.Name()+" ")
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(name), pageName(cmd)),
			cleanDescription(cmd.Short),
		})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	flagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment")
	w.Paragraph(fmt.Sprintf("Every configuration key has an environment variable: prefix %s, upper case, "+
		"and a double underscore between nesting levels. Flags win over the environment, which wins over %s. "+
		"See the [configuration reference](/concepts/configuration).",
		InlineCode(config.EnvPrefix), InlineCode(config.ConfigFileName)))
	w.Table([]string{"Variable", "Key"}, [][]string{
		{InlineCode(envName("datasets_dir")), InlineCode("datasets_dir")},
		{InlineCode(envName("server.port")), InlineCode("server.port")},
		{InlineCode(envName("query.max_limit")), InlineCode("query.max_limit")},
		{InlineCode(envName("log.level")), InlineCode("log.level")},
	})
	w.Paragraph(InlineCode("NO_COLOR") + " turns off styled output.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Any failure, including invalid requests and failed checks; details go to stderr"},
	})
	return w
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(strings.TrimPrefix(cmd.CommandPath(), "anyset "), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.CommandPath())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	w.Header(2, "Usage")
	use := cmd.UseLine()
	if cmd.HasAvailableSubCommands() {
		use = cmd.CommandPath() + " <subcommand>"
	}
	w.CodeBlock("bash", use)

	if len(cmd.Aliases) > 0 {
		w.Paragraph("Aliases: " + InlineCode(strings.Join(cmd.Aliases, "`, `")))
	}

	if cmd.HasAvailableSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if !sub.Hidden {
				rows = append(rows, []string{
					fmt.Sprintf("[%s](/cli/%s)", InlineCode(sub.Name()), pageName(sub)),
					cleanDescription(sub.Short),
				})
			}
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		flagsTable(w, cmd.LocalNonPersistentFlags())
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}
	return w
}

func flagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := "--" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", " + name
		}
		def := f.DefValue
		if def != "" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode(name), def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Flag", "Default", "Description"}, rows)
}

// dedent strips the indentation shared by every non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common > 0 {
		for i, l := range lines {
			if len(l) >= common {
				lines[i] = l[common:]
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
