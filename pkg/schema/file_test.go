package schema_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/internal/testutil"
	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestParse_OrderedMaps(t *testing.T) {
	def, err := schema.Parse([]byte(testutil.CCTransactionsYAML))
	require.NoError(t, err)
	require.Len(t, def.Tables, 1)
	assert.Equal(t, "cc_transactions", def.Tables[0].Name)
	assert.Equal(t, "trans_num", def.Tables[0].Columns[0].Name)
	assert.Equal(t, "city_pop", def.Tables[0].Columns[len(def.Tables[0].Columns)-1].Name)
	require.Len(t, def.Hierarchies, 1)
	assert.Equal(t, []string{"cc_transactions.state", "cc_transactions.city"}, def.Hierarchies[0].Levels)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: "empty dataset document"},
		{name: "unknown field", doc: "name: x\nowner: me\n", want: "owner"},
		{name: "tables not a mapping", doc: "dataset_tables: [a, b]\n", want: "dataset_tables must be a mapping"},
		{
			name: "duplicate column",
			doc:  "dataset_tables:\n  t:\n    columns:\n      a: {column_type: fact}\n      a: {column_type: fact}\n",
			want: `duplicate key "a"`,
		},
		{
			name: "bad hierarchy level",
			doc:  "category_hierarchies:\n  geo:\n    - [t, a, b]\n",
			want: "level must be [table, column]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cc.yaml", testutil.CCTransactionsYAML)
	writeFile(t, dir, "README.md", "not a dataset")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o750))

	regs, err := schema.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "cc/v1", regs[0].Key())
}

func TestLoadDir_DuplicateKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", testutil.CCTransactionsYAML)
	writeFile(t, dir, "b.yml", testutil.CCTransactionsYAML)

	_, err := schema.LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already defined in")
}

func TestLoadFile_SchemaError(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bad.yaml", "kind: Dataset\nname: Bad\npath_prefix: bad\ndataset_tables:\n  t:\n    columns:\n      a: {column_type: blob}\n")

	_, err := schema.LoadFile(p)
	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "bad.yaml")

	p = writeFile(t, dir, "broken.yaml", "name: [unclosed\n")
	_, err = schema.LoadFile(p)
	require.ErrorAs(t, err, &se, "decode failures are schema errors too")
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cc.yaml", testutil.CCTransactionsYAML)

	var mu sync.Mutex
	var applied []*schema.Registry
	w := &schema.Watcher{
		Dir:      dir,
		Debounce: 20 * time.Millisecond,
		Logger:   testutil.NewTestLogger(t),
		Apply: func(reg *schema.Registry) error {
			mu.Lock()
			defer mu.Unlock()
			applied = append(applied, reg)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	// A broken edit is skipped.
	require.NoError(t, os.WriteFile(p, []byte("name: [unclosed\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, applied)
	mu.Unlock()

	updated := testutil.CCTransactionsYAML + "  avg_ticket: \"AVG(amt)\"\n"
	require.NoError(t, os.WriteFile(p, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		if len(applied) == 0 {
			return false
		}
		_, ok := applied[len(applied)-1].CustomAggregation("avg_ticket")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
