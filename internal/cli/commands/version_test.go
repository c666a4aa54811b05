package commands

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/internal/config"

	_ "github.com/leapstack-labs/anyset/pkg/adapters/memory"
)

func TestVersionCommand(t *testing.T) {
	cfg := &config.Config{}

	tests := []struct {
		version string
		want    []string
	}{
		{"0.1.0", []string{"AnySet v0.1.0", "planning engine", runtime.Version()}},
		{"1.2.3", []string{"AnySet v1.2.3"}},
		{"dev", []string{"AnySet vdev"}},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			out, err := execute(t, NewVersionCommand(tt.version), cfg, output.ModeText)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
			assert.Contains(t, out, "Adapters: ")
			assert.Contains(t, out, "memory")
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, NewVersionCommand("0.3.0"), &config.Config{}, output.ModeJSON)
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "0.3.0", info.Version)
	assert.Equal(t, runtime.Version(), info.Go)
	assert.Contains(t, info.Adapters, "memory")
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test")
	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.Nil(t, cmd.Args)
}
