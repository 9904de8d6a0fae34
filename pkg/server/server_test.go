package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/graphforge/pkg/engine"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	eng, err := engine.Open(engine.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	srv, err := New(eng, DefaultConfig())
	require.NoError(t, err)
	return srv, srv.buildRouter()
}

func doQuery(t *testing.T, h http.Handler, body QueryRequest) (*httptest.ResponseRecorder, QueryResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp QueryResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHandleQueryCreateAndMatch(t *testing.T) {
	_, h := newTestServer(t)

	rec, _ := doQuery(t, h, QueryRequest{Query: `CREATE (:Person {name: "Alice"})`})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doQuery(t, h, QueryRequest{Query: "MATCH (n:Person) RETURN n.name AS name"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"name"}, resp.Columns)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Alice", resp.Rows[0][0])
}

func TestHandleQueryWithParams(t *testing.T) {
	_, h := newTestServer(t)

	rec, _ := doQuery(t, h, QueryRequest{
		Query:  `CREATE (:Person {name: $name, age: $age})`,
		Params: map[string]interface{}{"name": "Bob", "age": float64(30)},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := doQuery(t, h, QueryRequest{Query: "MATCH (n:Person) RETURN n.name AS name, n.age AS age"})
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Bob", resp.Rows[0][0])
	assert.Equal(t, float64(30), resp.Rows[0][1])
}

func TestHandleQueryInvalidSyntaxReturnsBadRequest(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(`{"query":"MATCH (n RETURN n"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp QueryErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestHandleQueryRejectsGet(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleQueryRejectsEmptyQuery(t *testing.T) {
	_, h := newTestServer(t)
	rec, _ := doQuery(t, h, QueryRequest{Query: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthAndDiscovery(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerStartStopAndAddr(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.config.Port = 0 // let the OS pick a free port

	require.NoError(t, srv.Start())
	assert.NotEmpty(t, srv.Addr())

	assert.NoError(t, srv.Stop(req(t).Context()))
	assert.NoError(t, srv.Stop(req(t).Context())) // idempotent
}

func req(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/", nil)
}
