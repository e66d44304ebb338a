package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tempest_bridge/internal/models"
	"tempest_bridge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// --- parseInterval unit tests ---

func TestParseInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil, nil)

	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"default_when_missing", "/ws", 1 * time.Second},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_large", "/ws?interval=20s", 1 * time.Second},
		{"interval_ms_too_large", "/ws?interval_ms=20000", 1 * time.Second},
		{"interval_invalid_string", "/ws?interval=bogus", 1 * time.Second},
		{"interval_ms_invalid", "/ws?interval_ms=NaN", 1 * time.Second},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
		{"both_present_invalid_interval_ms_used", "/ws?interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.u, nil)
			c, _ := gin.CreateTestContext(w)
			c.Request = req
			got := h.parseInterval(c)
			if got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

// --- websocket integration tests ---

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func dialWS(t *testing.T, s *service.Service, intervalMs string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil, nil)
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	if intervalMs != "" {
		q := u.Query()
		q.Set("interval_ms", intervalMs)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocket_StatusThenRecords(t *testing.T) {
	mon := &mockMonitoring{status: models.SessionStatus{State: "ACTIVE", DeviceID: "1234"}}
	conn := dialWS(t, &service.Service{Monitoring: mon}, "20")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "status" || len(env.Data) == 0 {
		t.Fatalf("bad envelope: %+v", env)
	}
	var st models.SessionStatus
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.State != "ACTIVE" || st.DeviceID != "1234" {
		t.Fatalf("unexpected status: %+v", st)
	}

	for _, ts := range []int64{1700000000, 1700000003} {
		mon.setLatest(models.ObservationRecord{
			DateTime: ts,
			USUnits:  models.UnitsMetricWX,
			Fields:   map[string]float64{models.FieldWindSpeed: 1.5},
		})
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		env = envelope{}
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read record: %v", err)
		}
		if env.Type != "record" {
			t.Fatalf("expected type=record, got %+v", env)
		}
		var rec models.ObservationRecord
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		if rec.DateTime != ts {
			t.Fatalf("dateTime = %d, want %d", rec.DateTime, ts)
		}
	}
}

func TestWebSocket_SameRecordSentOnce(t *testing.T) {
	mon := &mockMonitoring{}
	mon.setLatest(models.ObservationRecord{DateTime: 1700000000, Fields: map[string]float64{"windDir": 90}})
	conn := dialWS(t, &service.Service{Monitoring: mon}, "10")

	var env envelope
	for _, want := range []string{"status", "record"} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		env = envelope{}
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if env.Type != want {
			t.Fatalf("got %q, want %q", env.Type, want)
		}
	}

	// several ticks pass with no new record
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := conn.ReadJSON(&env); err == nil {
		t.Fatalf("unexpected repeat: %+v", env)
	}
}

func TestWebSocket_InitialGetStatusError_Closes(t *testing.T) {
	conn := dialWS(t, &service.Service{Monitoring: &mockMonitoring{err: errors.New("boom")}}, "")

	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var raw json.RawMessage
	if err := conn.ReadJSON(&raw); err == nil {
		t.Fatalf("expected read error (closed), got message: %s", string(raw))
	}
}
