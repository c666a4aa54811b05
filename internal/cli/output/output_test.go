package output

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeJSON, true, ModeJSON},
		{ModeText, false, ModeText},
		{ModeMarkdown, true, ModeMarkdown},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "json": ModeJSON, "md": ModeMarkdown, "text": ModeText} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("yaml")
	assert.ErrorContains(t, err, "invalid output mode")
}

func TestRenderer_MarkdownHasNoANSI(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeAuto, false)

	r.Header(1, "Datasets")
	r.StatusLine("Adapter", "memory")
	r.Success("loaded")
	r.Warning("watch disabled")

	assert.False(t, ansiPattern.MatchString(out.String()+errOut.String()))
	assert.Contains(t, out.String(), "# Datasets\n")
	assert.Contains(t, out.String(), "- **Adapter**: memory")
	assert.Contains(t, out.String(), "ok loaded")
	assert.Contains(t, errOut.String(), "Warning: watch disabled")
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"rows": 2}))
	assert.Equal(t, "{\n  \"rows\": 2\n}\n", out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Tables", FormatHeader(2, "Tables"))
	assert.Equal(t, "# Top", FormatHeader(0, "Top"))
	assert.Equal(t, "- **Version**: 3", FormatKeyValue("Version", 3))
	assert.Equal(t, "```json\n{}\n```", FormatCodeBlock("json", "{}\n"))
}

func TestWriteTable(t *testing.T) {
	header := []string{"state", "total"}
	rows := [][]any{{"CA", 1255.5}, {"NY", nil}}

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		WriteTable(&buf, TableCSV, header, rows)
		assert.Contains(t, buf.String(), "state,total\n")
		assert.Contains(t, buf.String(), "CA,1255.5\n")
		assert.Contains(t, buf.String(), "NY,NULL")
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		WriteTable(&buf, TableMarkdown, header, rows)
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], "state")
		assert.Contains(t, lines[2], "CA")
		assert.Contains(t, lines[2], "1255.5")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		WriteTable(&buf, TableText, header, rows)
		assert.Contains(t, buf.String(), "STATE")
		assert.Contains(t, buf.String(), "│ CA")
	})
}

func TestParseTableFormat(t *testing.T) {
	got, err := ParseTableFormat("markdown")
	require.NoError(t, err)
	assert.Equal(t, TableMarkdown, got)

	_, err = ParseTableFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, TableJSON, TableFormatFor(ModeJSON))
	assert.Equal(t, TableText, TableFormatFor(ModeText))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "2024-01-05", FormatValue(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-05T10:30:00Z", FormatValue(time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "4000", FormatValue(4000.0))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "raw", FormatValue([]byte("raw")))
}

func TestRenderer_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	r, out, _ := newTestRenderer(ModeText, true)
	r.Success("done")

	assert.Equal(t, ModeText, r.EffectiveMode())
	assert.Equal(t, "ok done\n", out.String())
}
