package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mendbots/server/catalog"
	"mendbots/server/internal/hub"
	"mendbots/server/internal/world"
)

func newTestHub(t *testing.T) *hub.Hub {
	t.Helper()
	health := 400.0
	scenario := world.Scenario{
		Structures: []world.ScenarioStructure{{ID: "relay-1", Kind: "relay", Col: 52, Row: 50, Health: &health}},
		Containers: []world.ScenarioContainer{{ID: "chest-1", Col: 40, Row: 40, Packs: 8}},
	}
	data, err := json.Marshal(scenario)
	if err != nil {
		t.Fatalf("marshal scenario: %v", err)
	}
	path := filepath.Join(t.TempDir(), "scenario.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	worldCfg := world.DefaultConfig()
	worldCfg.ScenarioPath = path
	w, err := world.New(worldCfg, world.Deps{Kinds: []world.StructureKind{{Kind: "relay", MaxHealth: 500}}})
	if err != nil {
		t.Fatalf("build world: %v", err)
	}
	h, err := hub.NewHub(hub.Config{}, hub.Deps{World: w})
	if err != nil {
		t.Fatalf("build hub: %v", err)
	}
	return h
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "ok" {
		t.Fatalf("expected body ok, got %q", body)
	}
}

func TestJoinEndpointReturnsSnapshot(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode join payload: %v", err)
	}
	if id, ok := payload["id"].(string); !ok || id != "owner-1" {
		t.Fatalf("expected first owner id owner-1, got %v", payload["id"])
	}
	if ver, ok := payload["ver"].(float64); !ok || int(ver) != hub.ProtocolVersion {
		t.Fatalf("expected protocol version %d, got %v", hub.ProtocolVersion, payload["ver"])
	}
	structures, ok := payload["structures"].([]any)
	if !ok || len(structures) != 1 {
		t.Fatalf("expected one structure in snapshot, got %v", payload["structures"])
	}
}

func TestJoinEndpointRejectsWrongMethod(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405 Method Not Allowed, got %d", resp.Code)
	}
}

func TestToggleEndpointQueuesCommand(t *testing.T) {
	h := newTestHub(t)
	handler := NewHTTPHandler(h, HTTPHandlerConfig{})
	join := h.Join()

	body, _ := json.Marshal(toggleRequest{ID: join.ID})
	req := httptest.NewRequest(http.MethodPost, "/bots/toggle", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	var payload toggleResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode toggle payload: %v", err)
	}
	if payload.Status != "queued" {
		t.Fatalf("expected queued status, got %+v", payload)
	}

	h.Advance()
	if _, ok := h.BotStatus(join.ID); !ok {
		t.Fatalf("expected bot session after queued toggle was applied")
	}
}

func TestToggleEndpointValidatesPayload(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/bots/toggle", bytes.NewBufferString("{"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed payload, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/bots/toggle", bytes.NewBufferString("{}"))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing id, got %d", resp.Code)
	}
}

func TestStructuresCatalogEndpoint(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{Catalog: catalog.MustLoad()})

	req := httptest.NewRequest(http.MethodGet, "/structures/catalog", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode catalog payload: %v", err)
	}
	kinds, ok := payload["structureCatalog"].([]any)
	if !ok || len(kinds) == 0 {
		t.Fatalf("expected non-empty structureCatalog, got %v", payload["structureCatalog"])
	}
	first, ok := kinds[0].(map[string]any)
	if !ok {
		t.Fatalf("expected catalog entries to decode as objects, got %T", kinds[0])
	}
	if _, ok := first["kind"].(string); !ok {
		t.Fatalf("expected kind field in catalog entry, got %v", first)
	}
}

func TestDiagnosticsEndpointReportsHubState(t *testing.T) {
	h := newTestHub(t)
	handler := NewHTTPHandler(h, HTTPHandlerConfig{})
	h.Join()

	req := httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics payload: %v", err)
	}
	if status, ok := payload["status"].(string); !ok || status != "ok" {
		t.Fatalf("expected ok status, got %v", payload["status"])
	}
	hubValue, ok := payload["hub"].(map[string]any)
	if !ok {
		t.Fatalf("expected hub object in diagnostics payload, got %T", payload["hub"])
	}
	owners, ok := hubValue["owners"].([]any)
	if !ok || len(owners) != 1 {
		t.Fatalf("expected one owner entry in diagnostics, got %v", hubValue["owners"])
	}
}

func TestWebsocketSessionLifecycle(t *testing.T) {
	h := newTestHub(t)
	handler := NewHTTPHandler(h, HTTPHandlerConfig{})
	server := httptest.NewServer(handler)
	defer server.Close()

	join := h.Join()
	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/ws?id=" + join.ID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// The subscription triggers an immediate broadcast; that frame must
	// arrive before anything the read loop replies with.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("failed to read initial state frame: %v", err)
	}
	if frameType, ok := frame["type"].(string); !ok || frameType != "state" {
		t.Fatalf("expected state frame, got %v", frame["type"])
	}
	owners, ok := frame["owners"].([]any)
	if !ok || len(owners) != 1 {
		t.Fatalf("expected one owner in state frame, got %v", frame["owners"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "heartbeat", "sentAt": 123}); err != nil {
		t.Fatalf("failed to send heartbeat: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack map[string]any
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("failed to read heartbeat ack: %v", err)
	}
	if ackType, ok := ack["type"].(string); !ok || ackType != "heartbeat" {
		t.Fatalf("expected heartbeat ack, got %v", ack["type"])
	}
	if clientTime, ok := ack["clientTime"].(float64); !ok || int64(clientTime) != 123 {
		t.Fatalf("expected client time echoed, got %v", ack["clientTime"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "toggle-bot"}); err != nil {
		t.Fatalf("failed to send toggle: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.DiagnosticsSnapshot().PendingCommands > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h.DiagnosticsSnapshot().PendingCommands == 0 {
		t.Fatalf("expected toggle command staged in the queue")
	}
	h.Advance()
	if _, ok := h.BotStatus(join.ID); !ok {
		t.Fatalf("expected bot session after toggle command applied")
	}
}

func TestWebsocketRejectsUnknownOwner(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/ws?id=ghost"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestPprofRoutesMountedWhenEnabled(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{Pprof: true})

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index to be mounted, got %d", resp.Code)
	}

	handler = NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})
	req = httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof disabled by default, got %d", resp.Code)
	}
}
