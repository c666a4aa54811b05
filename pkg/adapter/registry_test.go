package adapter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nilFactory(*slog.Logger) Adapter { return nil }

var seq atomic.Int64

// uniq keeps registrations distinct across -count runs.
func uniq(name string) string {
	return fmt.Sprintf("%s_%d", name, seq.Add(1))
}

func TestUnknownAdapterError(t *testing.T) {
	err := &UnknownAdapterError{Type: "fake_db", Available: []string{"duckdb", "postgres"}}

	msg := err.Error()
	assert.Contains(t, msg, `"fake_db"`)
	assert.Contains(t, msg, "available: duckdb, postgres")
	assert.Contains(t, msg, "anyset.yaml")
}

func TestRegister_Aliases(t *testing.T) {
	name, a, b := uniq("Test_Aliased"), uniq("test_alias"), uniq("TEST_ALIAS")
	Register(name, nilFactory, a, b)

	for _, n := range []string{name, strings.ToLower(name), strings.ToUpper(a), strings.ToLower(b)} {
		assert.True(t, IsRegistered(n), n)
	}

	names := ListAdapters()
	assert.Contains(t, names, strings.ToLower(name))
	assert.NotContains(t, names, a)
}

func TestRegister_Duplicate(t *testing.T) {
	name := uniq("test_dup")
	Register(name, nilFactory)
	assert.Panics(t, func() { Register(name, nilFactory) })
	assert.Panics(t, func() { Register(uniq("test_other"), nilFactory, strings.ToUpper(name)) }, "aliases collide too")
}

func TestNewAdapter_Logger(t *testing.T) {
	var got *slog.Logger
	alias := uniq("test_logger_alias")
	Register(uniq("test_logger"), func(l *slog.Logger) Adapter {
		got = l
		return nil
	}, alias)

	_, err := NewAdapter(Config{Type: alias}, nil)
	require.NoError(t, err)
	assert.NotNil(t, got, "nil logger is replaced before reaching the factory")
}

func TestNewAdapter_EmptyType(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	assert.ErrorIs(t, err, ErrNoAdapterType)
}
