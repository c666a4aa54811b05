package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/internal/service"
	"github.com/leapstack-labs/anyset/internal/testutil"
	"github.com/leapstack-labs/anyset/pkg/core"

	_ "github.com/leapstack-labs/anyset/pkg/adapters/memory"
)

func newCatalog(t *testing.T) *service.Catalog {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteCCTransactionsCSV(t, dir)

	resolve := func(ref string, _ map[string]any) (config.TargetConfig, error) {
		return config.TargetConfig{Type: ref, Path: dir}, nil
	}
	c := service.NewCatalog(config.QueryConfig{DefaultLimit: 25, MaxLimit: 500, Timeout: 5 * time.Second}, resolve, nil)
	require.NoError(t, c.Add(context.Background(), testutil.CCTransactions(t)))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()
	return New(newCatalog(t), cfg, testutil.NewTestLogger(t))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const caCities = `{
	"table_name": "cc_transactions",
	"select": [{"column_name": "city"}],
	"filters": [{"kind": "category", "column_name": "state", "values": ["CA"]}]
}`

func TestServer_Query(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	w := do(t, h, http.MethodPost, "/api/cc/v1/query", caCities)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	rs := decodeBody[core.Resultset](t, w)
	assert.Equal(t, "Credit Card Transactions", rs.Dataset)
	assert.Equal(t, 1, rs.Version)
	assert.Equal(t, 18, rs.RecordCountTotal)
	assert.Equal(t, 18, rs.RecordCountCurrentPage)
	require.Len(t, rs.Columns, 1)
	assert.Equal(t, "city", rs.Columns[0].Alias)
}

func TestServer_QueryAggregated(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	body := `{
		"table_name": "cc_transactions",
		"select": [{"column_name": "category"}],
		"aggregations": [{"column_name": "amt", "aggregation_function": "SUM", "alias": "total"}],
		"order_by": [{"column_name": "category", "direction": "ASC"}]
	}`
	w := do(t, h, http.MethodPost, "/api/cc/v1/query", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rs := decodeBody[core.Resultset](t, w)
	require.Len(t, rs.Columns, 2)
	assert.Equal(t, []any{"food", "gas", "shopping", "travel"}, rs.Columns[0].Data)
	assert.Equal(t, []any{1255.5, 1262.5, 1075.0, 905.0}, rs.Columns[1].Data)
}

func TestServer_Errors(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		status    int
		code      string
		fieldCode string
	}{
		{
			name:   "unknown dataset",
			method: http.MethodPost, path: "/api/nope/v1/query", body: caCities,
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name:   "version without v",
			method: http.MethodPost, path: "/api/cc/1/query", body: caCities,
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name:   "malformed body",
			method: http.MethodPost, path: "/api/cc/v1/query", body: `{"table_name": `,
			status: http.StatusBadRequest, code: "malformed_request",
		},
		{
			name:   "empty body",
			method: http.MethodPost, path: "/api/cc/v1/query",
			status: http.StatusBadRequest, code: "malformed_request",
		},
		{
			name:   "unknown column",
			method: http.MethodPost, path: "/api/cc/v1/query",
			body:   `{"table_name": "cc_transactions", "select": [{"column_name": "zip"}]}`,
			status: http.StatusBadRequest, code: "validation_error", fieldCode: "column_not_found",
		},
		{
			name:   "average of a category",
			method: http.MethodPost, path: "/api/cc/v1/plan",
			body:   `{"table_name": "cc_transactions", "aggregations": [{"column_name": "state", "aggregation_function": "AVG", "alias": "a"}]}`,
			status: http.StatusBadRequest, code: "validation_error", fieldCode: "aggregation_not_allowed",
		},
		{
			name:   "non-finite range bound",
			method: http.MethodPost, path: "/api/cc/v1/plan",
			body:   `{"table_name": "cc_transactions", "select": [{"column_name": "city"}], "filters": [{"kind": "fact", "column_name": "amt", "range": ["NaN", "Inf"]}]}`,
			status: http.StatusBadRequest, code: "validation_error", fieldCode: "invalid_range_bound",
		},
		{
			name:   "custom aggregation unsupported by adapter",
			method: http.MethodPost, path: "/api/cc/v1/query",
			body:   `{"table_name": "cc_transactions", "aggregations": [{"kind": "custom", "aggregation_function": "fraud_rate", "alias": "fr"}]}`,
			status: http.StatusBadGateway, code: "adapter_error",
		},
		{
			name:   "unknown route",
			method: http.MethodGet, path: "/api/cc/v1/nothing",
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name:   "wrong method",
			method: http.MethodGet, path: "/api/cc/v1/query",
			status: http.StatusMethodNotAllowed, code: "method_not_allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			body := decodeBody[errorBody](t, w)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
			if tt.fieldCode != "" {
				require.NotEmpty(t, body.Errors)
				assert.Equal(t, tt.fieldCode, body.Errors[0].Code)
			}
		})
	}
}

func TestServer_Validate(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	t.Run("valid", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/api/cc/v1/validate", caCities)
		require.Equal(t, http.StatusOK, w.Code)
		res := decodeBody[validateResponse](t, w)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
		assert.Contains(t, w.Body.String(), `"errors":[]`)
	})

	t.Run("invalid is still 200", func(t *testing.T) {
		body := `{
			"table_name": "cc_transactions",
			"select": [{"column_name": "zip"}],
			"filters": [{"kind": "fact", "column_name": "amt", "range": [100, 10]}]
		}`
		w := do(t, h, http.MethodPost, "/api/cc/v1/validate", body)
		require.Equal(t, http.StatusOK, w.Code)
		res := decodeBody[validateResponse](t, w)
		assert.False(t, res.Valid)

		codes := make([]string, len(res.Errors))
		for i, fe := range res.Errors {
			codes[i] = fe.Code
		}
		assert.ElementsMatch(t, []string{"column_not_found", "range_order"}, codes)
	})
}

func TestServer_Plan(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	w := do(t, h, http.MethodPost, "/api/cc/v1/plan", `{
		"table_name": "cc_transactions",
		"select": [{"column_name": "city"}],
		"filters": [{"kind": "category", "column_name": "state", "values": ["CA"]}]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	plan := decodeBody[core.Plan](t, w)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "cc_transactions", plan.Table)
	assert.Equal(t, 25, plan.Limit)
	require.Len(t, plan.Expansions, 1)
	assert.Equal(t, "geo", plan.Expansions[0].Hierarchy)
}

func TestServer_FilterOptions(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	w := do(t, h, http.MethodGet, "/api/cc/v1/filter-options", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	opts := decodeBody[[]core.FilterOption](t, w)
	byName := make(map[string]core.FilterOption, len(opts))
	for _, o := range opts {
		byName[o.Name] = o
	}
	require.Contains(t, byName, "amt")
	assert.Equal(t, core.FilterOptionKind("min_max"), byName["amt"].Kind)
	require.Contains(t, byName, "geo")
	assert.Len(t, byName["geo"].Values, 3)
}

func TestServer_SchemaAndDatasets(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	w := do(t, h, http.MethodGet, "/api/cc/v1/schema", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"path_prefix":"cc"`)
	assert.NotContains(t, w.Body.String(), "CASE WHEN")

	w = do(t, h, http.MethodGet, "/api/datasets", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[[]datasetSummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, datasetSummary{
		Key:         "cc/v1",
		Name:        "Credit Card Transactions",
		Description: "Card transactions with merchant and location attributes",
		PathPrefix:  "cc",
		Version:     1,
		Adapter:     "memory",
	}, list[0])

	w = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","datasets":1}`, w.Body.String())
}

func TestServer_RequestID(t *testing.T) {
	h := newServer(t, config.ServerConfig{}).Handler()

	w := do(t, h, http.MethodGet, "/healthz", "")
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	require.NoError(t, err, "generated request IDs are UUIDs")

	r := httptest.NewRequest(http.MethodGet, "/api/nope/v1/schema", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", decodeBody[errorBody](t, w).RequestID)
}

func TestServer_CORS(t *testing.T) {
	cfg := config.ServerConfig{CORS: config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}}
	h := newServer(t, cfg).Handler()

	r := httptest.NewRequest(http.MethodOptions, "/api/cc/v1/query", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&core.ValidationErrors{}, http.StatusBadRequest, "validation_error"},
		{core.ErrPlanningConflict("select[0]", "not grouped"), http.StatusUnprocessableEntity, "planning_conflict"},
		{core.ErrNotFound("missing"), http.StatusNotFound, "not_found"},
		{&core.AdapterError{Adapter: "postgres", Op: "execute", Err: errors.New("boom")}, http.StatusBadGateway, "adapter_error"},
		{&core.AdapterError{Adapter: "postgres", Op: "execute", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "timeout"},
		{&malformedError{errors.New("bad json")}, http.StatusBadRequest, "malformed_request"},
		{&core.SchemaError{Dataset: "cc"}, http.StatusInternalServerError, "schema_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T/%s", tt.err, tt.code), func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	writeError(w, r, errors.New("dial tcp 10.0.0.3:5432: secret"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestWriteJSON_EncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	err := writeJSON(w, http.StatusOK, map[string]float64{"bound": math.NaN()})
	require.Error(t, err)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "internal_error", decodeBody[errorBody](t, w).Code)
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, writeJSON(w, http.StatusCreated, map[string]int{"n": 1}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"n": 1}`, w.Body.String())
}

func TestServer_ServeListener(t *testing.T) {
	s := newServer(t, config.ServerConfig{ShutdownTimeout: time.Second, MaxConnections: 4})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln, "") }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
