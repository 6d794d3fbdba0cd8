package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

// headerAuth: тестовая замена JWT-middleware: идентичность из заголовка, без него 401.
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Agent-ID")
		if id == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(domain.ContextWithIdentity(r.Context(), domain.Identity{AgentID: id})))
	})
}

func post(t *testing.T, h http.Handler, agent, session string, msg map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp/notes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if agent != "" {
		req.Header.Set("X-Agent-ID", agent)
	}
	if session != "" {
		req.Header.Set(server.HeaderKeySessionID, session)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPServer_Health(t *testing.T) {
	f := newFixture(t)

	ok := NewHTTPServer([]*Gateway{f.gw}, zap.NewNop())
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewHTTPServer([]*Gateway{f.gw}, zap.NewNop(), WithHealthCheck(func(context.Context) error {
		return errors.New("db down")
	}))
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPServer_Metrics(t *testing.T) {
	f := newFixture(t)

	h := NewHTTPServer([]*Gateway{f.gw}, zap.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = NewHTTPServer([]*Gateway{f.gw}, zap.NewNop(), WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("gateway_tool_calls_total 1\n"))
	})))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gateway_tool_calls_total")
}

func TestHTTPServer_AuthGuardsMCPOnly(t *testing.T) {
	f := newFixture(t)
	h := NewHTTPServer([]*Gateway{f.gw}, zap.NewNop(), WithAuth(headerAuth))

	rec := post(t, h, "", "", map[string]any{"jsonrpc": "2.0", "id": 1, "method": "ping"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPServer_ToolCallUsesTokenIdentity(t *testing.T) {
	f := newFixture(t)
	h := NewHTTPServer([]*Gateway{f.gw}, zap.NewNop(), WithAuth(headerAuth))

	rec := post(t, h, "writer", "", map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := rec.Header().Get(server.HeaderKeySessionID)
	require.NotEmpty(t, session)

	// agent_id в аргументах нет: идентичность приходит из auth-слоя
	rec = post(t, h, "writer", session, map[string]any{
		"jsonrpc": "2.0", "id": 2, "method": "tools/call",
		"params": map[string]any{
			"name":      "create_note",
			"arguments": map[string]any{"title": "from http"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Result struct {
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, 1, f.count(t))

	require.Len(t, f.audit.all(), 1)
	assert.Equal(t, "writer", f.audit.all()[0].AgentID)
}
