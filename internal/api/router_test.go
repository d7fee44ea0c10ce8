package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confdrift/confdrift/internal/engine"
	"github.com/confdrift/confdrift/internal/tools"
	"github.com/confdrift/confdrift/internal/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, []tools.Tool) {
	t.Helper()
	registry := tools.AllIn(t.TempDir())
	eng := engine.NewWithTools(t.TempDir(), registry)
	require.NoError(t, eng.Init())

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(NewRouter(eng, hub))
	t.Cleanup(srv.Close)
	return srv, registry
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestHealthAndVersion(t *testing.T) {
	srv, _ := newTestServer(t)

	var health map[string]any
	resp := getJSON(t, srv.URL+"/api/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health["status"])

	var version map[string]string
	getJSON(t, srv.URL+"/api/version", &version)
	assert.NotEmpty(t, version["version"])
}

func TestToolsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var out []map[string]any
	resp := getJSON(t, srv.URL+"/api/tools", &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out, 3)

	ids := make([]string, 0, 3)
	for _, info := range out {
		ids = append(ids, info["id"].(string))
	}
	assert.Contains(t, ids, "claude-code")
	assert.Contains(t, ids, "codex")
	assert.Contains(t, ids, "gemini-cli")
}

func TestProfileEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/profiles",
		`{"tool_id":"claude-code","name":"work","api_key":"sk-work-1234567890","base_url":"https://work.example.com"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	getJSON(t, srv.URL+"/api/profiles?tool=claude-code", &list)
	require.Len(t, list, 1)
	assert.Equal(t, "work", list[0]["name"])

	resp = postJSON(t, srv.URL+"/api/profiles/activate",
		`{"tool_id":"claude-code","name":"work"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/profiles/activate",
		`{"tool_id":"claude-code","name":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/profiles?tool=claude-code&name=work", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	getJSON(t, srv.URL+"/api/profiles?tool=claude-code", &list)
	assert.Empty(t, list)
}

func TestProfileValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/profiles", `{"tool_id":"claude-code","name":"work"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing credentials must 400")

	resp = postJSON(t, srv.URL+"/api/profiles", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	getResp := getJSON(t, srv.URL+"/api/profiles", nil)
	assert.Equal(t, http.StatusBadRequest, getResp.StatusCode, "missing tool param must 400")
}

func TestWatchEndpoints(t *testing.T) {
	srv, registry := newTestServer(t)

	var cfg map[string]any
	resp := getJSON(t, srv.URL+"/api/watch/config", &cfg)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, cfg["enabled"])
	assert.Equal(t, "default", cfg["mode"])

	// Drive a real drift through the HTTP surface.
	resp = postJSON(t, srv.URL+"/api/profiles",
		`{"tool_id":"claude-code","name":"work","api_key":"sk-work-1234567890","base_url":"https://work.example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tool, _ := tools.ByIDIn(registry, tools.ClaudeCode)
	require.NoError(t, os.WriteFile(tool.FilePath("settings.json"),
		[]byte(`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-tampered","ANTHROPIC_BASE_URL":"https://work.example.com"}}`), 0600))

	resp = postJSON(t, srv.URL+"/api/watch/scan?tool=claude-code", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var pending map[string]any
	getJSON(t, srv.URL+"/api/watch/pending?tool=claude-code", &pending)
	require.NotNil(t, pending["pending"])

	resp = postJSON(t, srv.URL+"/api/watch/block", `{"tool_id":"claude-code"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getJSON(t, srv.URL+"/api/watch/pending?tool=claude-code", &pending)
	assert.Nil(t, pending["pending"])

	var page map[string]any
	getJSON(t, srv.URL+"/api/changes?page=1&page_size=10", &page)
	assert.Equal(t, float64(1), page["total"])
	records := page["records"].([]any)
	record := records[0].(map[string]any)
	assert.Equal(t, "block", record["action"])
}

func TestResolutionBroadcastToWebSocketClients(t *testing.T) {
	srv, registry := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, wsResp, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	// Wait for the hub to register the client so the broadcast cannot
	// slip past it.
	require.Eventually(t, func() bool {
		var health map[string]any
		getJSON(t, srv.URL+"/api/health", &health)
		return health["ws_clients"] == float64(1)
	}, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, srv.URL+"/api/profiles",
		`{"tool_id":"claude-code","name":"work","api_key":"sk-work-1234567890","base_url":"https://work.example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tool, _ := tools.ByIDIn(registry, tools.ClaudeCode)
	require.NoError(t, os.WriteFile(tool.FilePath("settings.json"),
		[]byte(`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-tampered","ANTHROPIC_BASE_URL":"https://work.example.com"}}`), 0600))

	resp = postJSON(t, srv.URL+"/api/watch/scan?tool=claude-code", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = postJSON(t, srv.URL+"/api/watch/block", `{"tool_id":"claude-code"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "change-resolved", msg.Type)
	assert.Equal(t, "claude-code", msg.Data["tool_id"])
	assert.Equal(t, "blocked", msg.Data["action"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/watch/pending?tool=codex", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/profiles", strings.NewReader("{}"))
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, putResp.StatusCode)
}
