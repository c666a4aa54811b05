package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/pkg/adapter"
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

// versionInfo is the JSON output of the version command.
type versionInfo struct {
	Version  string   `json:"version"`
	Go       string   `json:"go"`
	Commit   string   `json:"commit,omitempty"`
	Adapters []string `json:"adapters"`
	Dialects []string `json:"dialects"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the AnySet version, the Go toolchain it was built with and the adapters and SQL dialects compiled in.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{
				Version:  version,
				Go:       runtime.Version(),
				Commit:   vcsRevision(),
				Adapters: adapter.ListAdapters(),
				Dialects: dialect.List(),
			}

			r := NewCommandContext(cmd).Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Printf("AnySet v%s\n", info.Version)
			build := info.Go
			if info.Commit != "" {
				build += ", " + info.Commit
			}
			r.Printf("Query planning engine for declared datasets (%s)\n", build)
			if len(info.Adapters) > 0 {
				r.Printf("Adapters: %s\n", strings.Join(info.Adapters, ", "))
			}
			if len(info.Dialects) > 0 {
				r.Printf("Dialects: %s\n", strings.Join(info.Dialects, ", "))
			}
			return nil
		},
	}
}

// vcsRevision returns the short commit the binary was built from, if the
// toolchain stamped one.
func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return fmt.Sprintf("%.12s", s.Value)
		}
	}
	return ""
}
