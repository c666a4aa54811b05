package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/pkg/core"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    map[string]string
		wantErr string
	}{
		{name: "empty", raw: nil},
		{
			name: "weakly typed values",
			raw:  map[string]any{"pragmas": map[string]any{"busy_timeout": 5000, "foreign_keys": true, "cache_size": -2000}},
			want: map[string]string{"busy_timeout": "5000", "foreign_keys": "1", "cache_size": "-2000"},
		},
		{
			name:    "unknown key",
			raw:     map[string]any{"pragma": map[string]any{"journal_mode": "wal"}},
			wantErr: "invalid sqlite params",
		},
		{
			name:    "name with spaces",
			raw:     map[string]any{"pragmas": map[string]any{"journal_mode; DROP TABLE t": "wal"}},
			wantErr: `pragma "journal_mode; DROP TABLE t"`,
		},
		{
			name:    "value with parenthesis",
			raw:     map[string]any{"pragmas": map[string]any{"journal_mode": "wal)&_pragma=x(1"}},
			wantErr: "pragma journal_mode value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseParams(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, p.Pragmas)
				return
			}
			assert.Equal(t, tt.want, p.Pragmas)
		})
	}
}

func TestDataSource(t *testing.T) {
	assert.Equal(t, "cc.db", dataSource("cc.db", nil))
	assert.Equal(t,
		"cc.db?_pragma=busy_timeout%285000%29&_pragma=journal_mode%28wal%29",
		dataSource("cc.db", map[string]string{"journal_mode": "wal", "busy_timeout": "5000"}))
}

func TestAdapter_PragmasReachEveryConnection(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{
		Path:   filepath.Join(t.TempDir(), "cc.db"),
		Params: map[string]any{"pragmas": map[string]any{"busy_timeout": 4321, "foreign_keys": "on"}},
	}))
	defer func() { _ = adp.Close() }()

	// Hold several connections at once so the pool has to open new ones.
	conns := make([]*sql.Conn, 3)
	for i := range conns {
		conn, err := adp.DB.Conn(ctx)
		require.NoError(t, err)
		conns[i] = conn
	}
	for i, conn := range conns {
		var timeout, fk int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 4321, timeout, "connection %d", i)
		assert.Equal(t, 1, fk, "connection %d", i)
		require.NoError(t, conn.Close())
	}
}

func TestAdapter_ConnectRejectsBadPragma(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), core.AdapterConfig{
		Params: map[string]any{"pragmas": map[string]any{"journal mode": "wal"}},
	})
	require.Error(t, err)
	assert.Nil(t, adp.DB)
}
