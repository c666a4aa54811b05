package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/internal/cli/commands"
	clitestutil "github.com/leapstack-labs/anyset/internal/cli/testutil"
	"github.com/leapstack-labs/anyset/internal/config"
)

func runRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	want := []string{"serve", "validate", "plan", "query", "options", "schema", "load", "doctor", "version", "completion"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	for _, flag := range []string{"config", "datasets", "log-level", "log-format", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_Version(t *testing.T) {
	out, _, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "AnySet v"+Version)
}

func TestRootCmd_ValidateThroughConfig(t *testing.T) {
	root := clitestutil.SetupTestProject(t)
	cfgPath := filepath.Join(root, config.ConfigFileName)
	req := `{"table_name": "cc_transactions", "select": [{"column_name": "zip"}]}`

	out, _, err := runRoot(t, "--config", cfgPath, "-o", "json", "validate", "cc", req)
	require.ErrorIs(t, err, commands.ErrInvalidRequest)

	var got struct {
		Dataset string `json:"dataset"`
		Valid   bool   `json:"valid"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "cc/v1", got.Dataset)
	assert.False(t, got.Valid)
}

func TestRootCmd_QueryMarkdown(t *testing.T) {
	root := clitestutil.SetupTestProject(t)
	req := `{"table_name": "cc_transactions", "select": [{"column_name": "state"}], "aggregations": [{"column_name": "amt", "aggregation_function": "COUNT", "alias": "n"}], "order_by": [{"column_name": "state"}]}`

	out, _, err := runRoot(t, "--config", filepath.Join(root, config.ConfigFileName), "-o", "markdown", "query", "cc/v1", req)
	require.NoError(t, err)

	clitestutil.AssertNoANSI(t, out)
	clitestutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "CA")
	assert.Contains(t, out, "18")
	assert.Contains(t, out, "(3 of 3 rows)")
}

func TestRootCmd_DatasetsFlagOverridesConfig(t *testing.T) {
	root := clitestutil.SetupTestProject(t)
	empty := t.TempDir()

	_, _, err := runRoot(t, "--config", filepath.Join(root, config.ConfigFileName), "--datasets", empty, "schema", "show", "cc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRootCmd_InvalidOutputMode(t *testing.T) {
	root := clitestutil.SetupTestProject(t)

	_, _, err := runRoot(t, "--config", filepath.Join(root, config.ConfigFileName), "-o", "yaml", "schema", "check")
	assert.Error(t, err)
}

func TestRootCmd_VerbosePrintsConfigFile(t *testing.T) {
	root := clitestutil.SetupTestProject(t)
	cfgPath := filepath.Join(root, config.ConfigFileName)

	_, errOut, err := runRoot(t, "--config", cfgPath, "-v", "-o", "json", "schema", "check")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Using config file: "+cfgPath)
}

func TestRootCmd_Completion(t *testing.T) {
	out, _, err := runRoot(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "anyset")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept", "dataset", "cc/v1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "cc/v1", entry["dataset"])

	_, err = newLogger(&buf, config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
