package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vendwatch/vendwatch-core/internal/device"
	"github.com/vendwatch/vendwatch-core/internal/hub"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/config"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
	"github.com/vendwatch/vendwatch-core/internal/ingest"
	"github.com/vendwatch/vendwatch-core/internal/telemetry"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE devices (
			device_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'offline',
			last_seen TEXT,
			sensors_enabled INTEGER NOT NULL DEFAULT 1,
			coin_rejection INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE sales_reports (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			interval TEXT NOT NULL,
			amount REAL NOT NULL CHECK (amount >= 0),
			timestamp TEXT NOT NULL
		) STRICT;

		CREATE TABLE intrusion_alerts (
			id TEXT PRIMARY KEY,
			device_id TEXT,
			triggered_by TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			timestamp TEXT NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// newTestServer builds a fully wired server backed by an in-memory store
// and returns it with an httptest listener in front of its router.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWS(t, config.WebSocketConfig{
		Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10,
	})
}

func newTestServerWS(t *testing.T, wsCfg config.WebSocketConfig) (*Server, *httptest.Server) {
	t.Helper()

	db := setupTestDB(t)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	store := telemetry.NewSQLiteStore(db)
	aggregator := telemetry.NewAggregator(store, time.UTC)

	h := hub.New(wsCfg, log)
	gateway := ingest.NewGateway(registry, store, h, nil, log)

	srv, err := New(Deps{
		Config:     config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:         wsCfg,
		Logger:     log,
		Registry:   registry,
		Store:      store,
		Aggregator: aggregator,
		Gateway:    gateway,
		Hub:        h,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestSalesReport_EndToEnd(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/sales-report", map[string]any{
		"device_id":    "vm-001",
		"interval":     "daily",
		"sales_amount": 55.25,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["amount"] != 55.25 {
		t.Errorf("amount = %v, want 55.25", body["amount"])
	}

	// The device now exists and is online.
	resp, err := http.Get(ts.URL + "/api/devices")
	if err != nil {
		t.Fatalf("GET /api/devices: %v", err)
	}
	devices := decodeBody(t, resp)
	if devices["count"] != float64(1) {
		t.Fatalf("device count = %v, want 1", devices["count"])
	}
}

func TestSalesReport_Invalid(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing device", map[string]any{"interval": "daily", "sales_amount": 1}},
		{"bad interval", map[string]any{"device_id": "vm-001", "interval": "yearly", "sales_amount": 1}},
		{"negative amount", map[string]any{"device_id": "vm-001", "interval": "daily", "sales_amount": -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/sales-report", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSalesReport_MalformedJSON(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/sales-report", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	_, ts := newTestServer(t)

	// Seed today's sales.
	postJSON(t, ts.URL+"/api/sales-report", map[string]any{
		"device_id": "vm-002", "interval": "daily", "sales_amount": 10.0,
	}).Body.Close()
	postJSON(t, ts.URL+"/api/sales-report", map[string]any{
		"device_id": "vm-002", "interval": "daily", "sales_amount": 5.5,
	}).Body.Close()

	resp := postJSON(t, ts.URL+"/api/dashboard", map[string]any{"device_id": "vm-002"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["daily_sales"] != 15.5 {
		t.Errorf("daily_sales = %v, want 15.5", body["daily_sales"])
	}
	if body["sensors_enabled"] != true {
		t.Errorf("sensors_enabled = %v, want default true", body["sensors_enabled"])
	}
	if body["coin_rejection"] != false {
		t.Errorf("coin_rejection = %v, want default false", body["coin_rejection"])
	}
}

func TestDashboard_UnknownDeviceRegisters(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/dashboard", map[string]any{"device_id": "vm-new"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["daily_sales"] != float64(0) {
		t.Errorf("daily_sales = %v, want 0", body["daily_sales"])
	}
}

func TestSalesStats(t *testing.T) {
	_, ts := newTestServer(t)

	postJSON(t, ts.URL+"/api/sales-report", map[string]any{
		"device_id": "vm-003", "interval": "daily", "sales_amount": 20.0,
	}).Body.Close()

	resp, err := http.Get(ts.URL + "/api/sales/stats?device_id=vm-003&period=daily")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	body := decodeBody(t, resp)
	if body["success"] != true || body["total"] != 20.0 || body["count"] != float64(1) {
		t.Errorf("stats = %v, want success/total=20/count=1", body)
	}
	if body["period"] != "daily" {
		t.Errorf("period = %v, want daily", body["period"])
	}
}

func TestSalesStats_UnknownPeriodFallsBackToDaily(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/sales/stats?device_id=vm-003&period=fortnightly")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	body := decodeBody(t, resp)
	if body["period"] != "daily" {
		t.Errorf("period = %v, want daily fallback", body["period"])
	}
}

func TestSalesStats_RequiresDeviceID(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/sales/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeviceSettings_PartialUpdate(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/device/settings", map[string]any{
		"device_id":      "vm-004",
		"coin_rejection": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	dev := body["device"].(map[string]any)
	settings := dev["settings"].(map[string]any)
	if settings["coin_rejection"] != true {
		t.Errorf("coin_rejection = %v, want true", settings["coin_rejection"])
	}
	if settings["sensors_enabled"] != true {
		t.Errorf("sensors_enabled = %v, want untouched default true", settings["sensors_enabled"])
	}
}

func TestIntrusionAndDisableAlarm(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/intrusion-alert", map[string]any{
		"device_id":    "vm-005",
		"triggered_by": "door_sensor",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("raise status = %d, want 200", resp.StatusCode)
	}
	raised := decodeBody(t, resp)
	if raised["alert_id"] == "" {
		t.Error("alert_id should be set")
	}

	resp, err := http.Get(ts.URL + "/api/recent-alerts")
	if err != nil {
		t.Fatalf("GET /api/recent-alerts: %v", err)
	}
	alerts := decodeBody(t, resp)
	if alerts["count"] != float64(1) {
		t.Fatalf("alert count = %v, want 1", alerts["count"])
	}

	resp = postJSON(t, ts.URL+"/api/disable-alarm", map[string]any{"device_id": "vm-005"})
	cleared := decodeBody(t, resp)
	if cleared["resolved"] != float64(1) {
		t.Errorf("resolved = %v, want 1", cleared["resolved"])
	}

	resp, err = http.Get(ts.URL + "/api/recent-alerts")
	if err != nil {
		t.Fatalf("GET /api/recent-alerts: %v", err)
	}
	alerts = decodeBody(t, resp)
	if alerts["count"] != float64(0) {
		t.Errorf("alert count after clear = %v, want 0", alerts["count"])
	}
}

func TestIntrusionAlert_Unscoped(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/intrusion-alert", map[string]any{
		"triggered_by": "panel_button",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 for unscoped alert", resp.StatusCode)
	}
}

func TestWebSocket_ReceivesBroadcasts(t *testing.T) {
	srv, ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer conn.Close()

	// Wait for the hub to register the client before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	postJSON(t, ts.URL+"/api/sales-report", map[string]any{
		"device_id": "vm-009", "interval": "weekly", "sales_amount": 300.0,
	}).Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var got hub.Message
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reading broadcast: %v", err)
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if got.Type == hub.EventSalesUpdate {
			break
		}
	}

	data := got.Data.(map[string]any)
	if data["weekly"] != 300.0 {
		t.Errorf("weekly = %v, want 300", data["weekly"])
	}
	if _, present := data["daily"]; present {
		t.Error("daily should be omitted for a weekly report")
	}
}

func TestWebSocket_ConfiguredPath(t *testing.T) {
	srv, ts := newTestServerWS(t, config.WebSocketConfig{
		Path: "/live", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial on configured path failed: %v", err)
	}
	conn.Close()
}

func TestWebSocket_DisconnectSelfHeals(t *testing.T) {
	srv, ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.hub.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", srv.hub.ClientCount())
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.hub.ClientCount() != 0 {
		t.Error("disconnected client still in hub membership")
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	if _, err := New(Deps{}); err == nil {
		t.Error("New() should fail without logger")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() should fail without registry")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("X-Request-ID", "test-id-123")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "test-id-123" {
		t.Errorf("X-Request-ID = %q, want test-id-123", got)
	}

	// Generated when absent.
	resp2, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated when absent")
	}
}

func TestMethodHandling(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/sales-report")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET on POST route status = %d, want 405", resp.StatusCode)
	}
}
