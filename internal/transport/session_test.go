package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tempest_bridge/internal/feedsim"
	"tempest_bridge/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	testToken   = "secret-token"
	testDevice  = "1234"
	testStation = "5678"
)

// --- helpers ---

type recorder struct {
	mu          sync.Mutex
	transitions []State
	mismatches  []protocol.CommandType
	malformed   int
	attempts    []int
}

func (r *recorder) StateChanged(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, to)
}

func (r *recorder) AckMismatch(cmd protocol.Command, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mismatches = append(r.mismatches, cmd.Type)
}

func (r *recorder) MalformedFrame(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed++
}

func (r *recorder) ReconnectAttempt(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, n)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func startFeed(t *testing.T, opts feedsim.Options) (*feedsim.Server, string) {
	t.Helper()
	if opts.Token == "" {
		opts.Token = testToken
	}
	sim := feedsim.NewServer(opts, nil)
	srv := httptest.NewServer(sim)
	t.Cleanup(srv.Close)
	return sim, "ws" + strings.TrimPrefix(srv.URL, "http") + "/swd/data"
}

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		Token:      testToken,
		TokenParam: "token",
		DeviceID:   testDevice,
		StationID:  testStation,
		AckTimeout: 2 * time.Second,
	}
}

func newTestSession(cfg Config, opts ...Option) *Session {
	opts = append([]Option{WithSleep(noSleep)}, opts...)
	return NewSession(cfg, NewWebsocketDialer(), nil, opts...)
}

func wantTypes(t *testing.T, got []string, want ...protocol.CommandType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != string(want[i]) {
			t.Fatalf("command[%d] = %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}
}

// failingDialer fails the first fail dials and then delegates.
type failingDialer struct {
	mu    sync.Mutex
	fail  int
	calls int
	inner Dialer
}

func (d *failingDialer) Dial(ctx context.Context, uri string) (Conn, error) {
	d.mu.Lock()
	d.calls++
	n := d.calls
	d.mu.Unlock()
	if n <= d.fail || d.inner == nil {
		return nil, errors.New("connection refused")
	}
	return d.inner.Dial(ctx, uri)
}

// --- tests ---

func TestSession_SubscribeSequenceReachesActive(t *testing.T) {
	sim, endpoint := startFeed(t, feedsim.Options{})
	rec := &recorder{}
	s := newTestSession(testConfig(endpoint), WithObserver(rec))
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s.State() != StateAwaitingWelcome {
		t.Fatalf("state after connect = %s", s.State())
	}
	if err := s.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s, want ACTIVE", s.State())
	}

	wantTypes(t, sim.CommandTypes(), protocol.StartRapid, protocol.StartListen, protocol.StartStationEvents)
	cmds := sim.Commands()
	if cmds[0].DeviceID.String() != testDevice || cmds[1].DeviceID.String() != testDevice {
		t.Fatalf("device commands target %q/%q", cmds[0].DeviceID, cmds[1].DeviceID)
	}
	if cmds[2].StationID.String() != testStation {
		t.Fatalf("station command targets %q", cmds[2].StationID)
	}
	seen := map[string]bool{}
	for _, c := range cmds {
		if c.ID == "" || seen[c.ID] {
			t.Fatalf("correlation id %q empty or reused", c.ID)
		}
		seen[c.ID] = true
	}
	if len(rec.mismatches) != 0 {
		t.Fatalf("unexpected ack mismatches: %v", rec.mismatches)
	}

	wantStates := []State{StateConnecting, StateAwaitingWelcome, StateSubscribing, StateActive}
	if len(rec.transitions) != len(wantStates) {
		t.Fatalf("transitions = %v, want %v", rec.transitions, wantStates)
	}
	for i := range wantStates {
		if rec.transitions[i] != wantStates[i] {
			t.Fatalf("transition[%d] = %s, want %s", i, rec.transitions[i], wantStates[i])
		}
	}
	_ = s.Close(ctx)
}

func TestSession_ReceiveDeliversPushedFrames(t *testing.T) {
	sim, endpoint := startFeed(t, feedsim.Options{})
	s := newTestSession(testConfig(endpoint))
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close(ctx) }()

	want := feedsim.RapidWindFrame(testDevice, 1700000000, 2.5, 180)
	sim.Push(want)

	got, err := s.Receive(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestSession_DataDuringAckWaitIsKeptInOrder(t *testing.T) {
	early := feedsim.RapidWindFrame(testDevice, 1700000001, 1, 90)
	sim, endpoint := startFeed(t, feedsim.Options{BeforeAck: [][]byte{early}})
	rec := &recorder{}
	s := newTestSession(testConfig(endpoint), WithObserver(rec))
	ctx := context.Background()

	start := time.Now()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close(ctx) }()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Open took %s; acks were not read", elapsed)
	}
	if len(rec.mismatches) != 0 {
		t.Fatalf("mismatches = %v, want none", rec.mismatches)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s", s.State())
	}

	later := feedsim.RapidWindFrame(testDevice, 1700000002, 2, 91)
	sim.Push(later)

	// one early frame per subscribe command, then the pushed one; no acks leak through
	for i := 0; i < 3; i++ {
		got, err := s.Receive(ctx, 2*time.Second)
		if err != nil {
			t.Fatalf("Receive %d: %v", i, err)
		}
		if string(got) != string(early) {
			t.Fatalf("frame %d = %s, want early frame", i, got)
		}
	}
	got, err := s.Receive(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != string(later) {
		t.Fatalf("got %s, want %s", got, later)
	}
}

func TestSession_CloseWithPendingFramesReadsAcks(t *testing.T) {
	early := feedsim.RapidWindFrame(testDevice, 1700000001, 1, 90)
	sim, endpoint := startFeed(t, feedsim.Options{BeforeAck: [][]byte{early}})
	rec := &recorder{}
	s := newTestSession(testConfig(endpoint), WithObserver(rec))
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// three early frames are still pending
	start := time.Now()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Close took %s", elapsed)
	}
	if len(rec.mismatches) != 0 {
		t.Fatalf("mismatches = %v, want none", rec.mismatches)
	}
	wantTypes(t, sim.CommandTypes(),
		protocol.StartRapid, protocol.StartListen, protocol.StartStationEvents,
		protocol.StopRapid, protocol.StopListen, protocol.StopStationEvents)
}

func TestSession_AckProblemsAreNotFatal(t *testing.T) {
	cases := []struct {
		name string
		mode feedsim.AckMode
	}{
		{"wrong_id", feedsim.AckWrongID},
		{"silent", feedsim.AckSilent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, endpoint := startFeed(t, feedsim.Options{AckMode: tc.mode})
			cfg := testConfig(endpoint)
			cfg.AckTimeout = 100 * time.Millisecond
			rec := &recorder{}
			s := newTestSession(cfg, WithObserver(rec))
			ctx := context.Background()

			if err := s.Open(ctx); err != nil {
				t.Fatalf("Open: %v", err)
			}
			if s.State() != StateActive {
				t.Fatalf("state = %s, want ACTIVE", s.State())
			}
			if len(rec.mismatches) != 3 {
				t.Fatalf("mismatches = %v, want one per command", rec.mismatches)
			}
			_ = s.Close(ctx)
		})
	}
}

func TestSession_BadTokenIsTransportError(t *testing.T) {
	_, endpoint := startFeed(t, feedsim.Options{})
	cfg := testConfig(endpoint)
	cfg.Token = "wrong"
	s := newTestSession(cfg)

	err := s.Connect(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if te.Op != "dial" {
		t.Fatalf("op = %q", te.Op)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state = %s", s.State())
	}
}

func TestSession_APIKeyParameter(t *testing.T) {
	_, endpoint := startFeed(t, feedsim.Options{TokenParam: "api_key"})
	cfg := testConfig(endpoint)
	cfg.TokenParam = "api_key"
	s := newTestSession(cfg)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Close(ctx)
}

func TestSession_MissingWelcomeFailsConnect(t *testing.T) {
	_, endpoint := startFeed(t, feedsim.Options{NoWelcome: true})
	cfg := testConfig(endpoint)
	cfg.AckTimeout = 100 * time.Millisecond
	s := newTestSession(cfg)

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want transport timeout", err)
	}
}

func TestSession_CloseUnsubscribesInOrder(t *testing.T) {
	sim, endpoint := startFeed(t, feedsim.Options{})
	s := newTestSession(testConfig(endpoint))
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %s", s.State())
	}
	wantTypes(t, sim.CommandTypes(),
		protocol.StartRapid, protocol.StartListen, protocol.StartStationEvents,
		protocol.StopRapid, protocol.StopListen, protocol.StopStationEvents)

	// idempotent
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(sim.Commands()) != 6 {
		t.Fatalf("second close sent commands: %v", sim.CommandTypes())
	}
	if _, err := s.Receive(ctx, time.Second); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Receive after close: %v", err)
	}
	if err := s.Connect(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Connect after close: %v", err)
	}
}

func TestSession_CloseWithoutAcksIsBounded(t *testing.T) {
	_, endpoint := startFeed(t, feedsim.Options{})
	cfg := testConfig(endpoint)
	s := newTestSession(cfg)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.cfg.AckTimeout = 50 * time.Millisecond
	s.link.conn = silentWrites{s.link.conn}

	start := time.Now()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d := time.Since(start); d > time.Second {
		t.Fatalf("close took %s", d)
	}
}

// silentWrites swallows writes so no reply ever comes.
type silentWrites struct{ Conn }

func (silentWrites) WriteMessage(int, []byte) error { return nil }

func TestSession_ReconnectAfterDrop(t *testing.T) {
	sim, endpoint := startFeed(t, feedsim.Options{})
	rec := &recorder{}
	s := newTestSession(testConfig(endpoint), WithObserver(rec))
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close(ctx) }()

	sim.DropConnections()
	_, err := s.Receive(ctx, 2*time.Second)
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Receive after drop: %v", err)
	}
	if !Recoverable(err) {
		t.Fatalf("%v should be recoverable", err)
	}

	if err := s.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state = %s", s.State())
	}
	if s.Reconnects() != 1 {
		t.Fatalf("reconnects = %d", s.Reconnects())
	}
	if sim.Connections() != 2 {
		t.Fatalf("connections = %d", sim.Connections())
	}
	wantTypes(t, sim.CommandTypes(),
		protocol.StartRapid, protocol.StartListen, protocol.StartStationEvents,
		protocol.StartRapid, protocol.StartListen, protocol.StartStationEvents)

	want := feedsim.RapidWindFrame(testDevice, 1700000003, 3, 45)
	sim.Push(want)
	got, err := s.Receive(ctx, 2*time.Second)
	if err != nil || string(got) != string(want) {
		t.Fatalf("Receive after reconnect = %s, %v", got, err)
	}
}

func TestSession_OpenRetriesUntilDialSucceeds(t *testing.T) {
	_, endpoint := startFeed(t, feedsim.Options{})
	d := &failingDialer{fail: 2, inner: NewWebsocketDialer()}
	rec := &recorder{}
	s := NewSession(testConfig(endpoint), d, nil, WithSleep(noSleep), WithObserver(rec))
	ctx := context.Background()

	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close(ctx) }()
	if d.calls != 3 {
		t.Fatalf("dials = %d, want 3", d.calls)
	}
	if len(rec.attempts) != 2 || rec.attempts[1] != 2 {
		t.Fatalf("attempts = %v", rec.attempts)
	}
}

func TestSession_MaxRetries(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/swd/data")
	cfg.MaxRetries = 3
	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	cfg.ReconnectBackoff = 5 * time.Second
	s := NewSession(cfg, &failingDialer{fail: 1 << 30}, nil, WithSleep(sleep))

	err := s.Reconnect(context.Background())
	if !errors.Is(err, ErrTooManyRetries) {
		t.Fatalf("err = %v, want ErrTooManyRetries", err)
	}
	if len(slept) != 3 {
		t.Fatalf("sleeps = %d, want 3", len(slept))
	}
	for _, d := range slept {
		if d != 5*time.Second {
			t.Fatalf("backoff = %s", d)
		}
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state = %s", s.State())
	}
}

func TestSession_ReconnectStopsOnCancel(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/swd/data")
	cfg.ReconnectBackoff = time.Hour
	s := NewSession(cfg, &failingDialer{fail: 1 << 30}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Reconnect(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reconnect did not return after cancel")
	}
}

func TestSession_ReceiveTimeoutAndCancel(t *testing.T) {
	_, endpoint := startFeed(t, feedsim.Options{})
	s := newTestSession(testConfig(endpoint))
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close(ctx) }()

	if _, err := s.Receive(ctx, 50*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	if _, err := s.Receive(cctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("Receive ignored cancellation")
	}
}

func TestBuildURI(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		param    string
		want     string
		wantErr  bool
	}{
		{"token", "wss://ws.weatherflow.com/swd/data", "token", "wss://ws.weatherflow.com/swd/data?token=abc", false},
		{"api_key", "wss://ws.weatherflow.com/swd/data", "api_key", "wss://ws.weatherflow.com/swd/data?api_key=abc", false},
		{"bad_scheme", "https://ws.weatherflow.com/swd/data", "token", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := buildURI(tc.endpoint, tc.param, "abc")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %q, %v; want %q", got, err, tc.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if StateAwaitingWelcome.String() != "AWAITING_WELCOME" || State(99).String() != "UNKNOWN" {
		t.Fatal("unexpected state names")
	}
}

// scriptConn is an in-memory feed connection. onWrite answers each command.
type scriptConn struct {
	mu      sync.Mutex
	in      chan []byte
	closed  bool
	cmds    []protocol.Command
	onWrite func(c *scriptConn, n int, cmd protocol.Command)
}

func newScriptConn(onWrite func(c *scriptConn, n int, cmd protocol.Command)) *scriptConn {
	c := &scriptConn{in: make(chan []byte, 32), onWrite: onWrite}
	c.send([]byte(`{"type":"connection_opened"}`))
	return c
}

func (c *scriptConn) send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.in <- data
	}
}

func (c *scriptConn) ack(cmd protocol.Command) {
	c.send([]byte(`{"type":"ack","id":"` + cmd.ID + `"}`))
}

// hangup ends the read side as a dropped connection would.
func (c *scriptConn) hangup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.in)
	}
}

func (c *scriptConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.in
	if !ok {
		return 0, nil, errors.New("connection reset by peer")
	}
	return websocket.TextMessage, data, nil
}

func (c *scriptConn) WriteMessage(mt int, data []byte) error {
	if mt != websocket.TextMessage {
		return nil
	}
	var cmd protocol.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}
	c.mu.Lock()
	c.cmds = append(c.cmds, cmd)
	n := len(c.cmds)
	c.mu.Unlock()
	c.onWrite(c, n, cmd)
	return nil
}

func (c *scriptConn) SetWriteDeadline(time.Time) error { return nil }

func (c *scriptConn) Close() error {
	c.hangup()
	return nil
}

func (c *scriptConn) commandTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.cmds))
	for i, cmd := range c.cmds {
		out[i] = string(cmd.Type)
	}
	return out
}

// scriptDialer hands out the given connections in order.
type scriptDialer struct {
	mu    sync.Mutex
	conns []*scriptConn
	calls int
}

func (d *scriptDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls >= len(d.conns) {
		return nil, errors.New("no more connections")
	}
	c := d.conns[d.calls]
	d.calls++
	return c, nil
}

func TestSession_DropDuringSubscribeKeepsFramesAndAckOrder(t *testing.T) {
	d1 := feedsim.RapidWindFrame(testDevice, 1700000001, 1, 10)
	d2 := feedsim.RapidWindFrame(testDevice, 1700000002, 2, 20)
	d3 := feedsim.RapidWindFrame(testDevice, 1700000003, 3, 30)

	first := newScriptConn(func(c *scriptConn, n int, cmd protocol.Command) {
		switch n {
		case 1:
			c.send(d1)
			c.ack(cmd)
		default:
			c.send(d2)
			c.hangup()
		}
	})
	second := newScriptConn(func(c *scriptConn, _ int, cmd protocol.Command) {
		c.ack(cmd)
	})
	dialer := &scriptDialer{conns: []*scriptConn{first, second}}
	rec := &recorder{}
	s := NewSession(testConfig("ws://feed.test/swd/data"), dialer, nil, WithSleep(noSleep), WithObserver(rec))
	ctx := context.Background()

	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close(ctx) }()

	if s.State() != StateActive || s.Reconnects() != 1 || dialer.calls != 2 {
		t.Fatalf("state=%s reconnects=%d dials=%d", s.State(), s.Reconnects(), dialer.calls)
	}
	if len(rec.mismatches) != 0 {
		t.Fatalf("mismatches = %v, want none", rec.mismatches)
	}
	wantTypes(t, second.commandTypes(), protocol.StartRapid, protocol.StartListen, protocol.StartStationEvents)

	second.send(d3)
	for i, want := range [][]byte{d1, d2, d3} {
		raw, err := s.Receive(ctx, 2*time.Second)
		if err != nil {
			t.Fatalf("Receive %d: %v", i, err)
		}
		if string(raw) != string(want) {
			t.Fatalf("frame %d = %s, want %s", i, raw, want)
		}
	}
}

func TestSession_WelcomeIgnoresPendingFrames(t *testing.T) {
	stale := feedsim.RapidWindFrame(testDevice, 1700000001, 1, 10)
	conn := newScriptConn(func(c *scriptConn, _ int, cmd protocol.Command) { c.ack(cmd) })
	rec := &recorder{}
	s := NewSession(testConfig("ws://feed.test/swd/data"), &scriptDialer{conns: []*scriptConn{conn}}, nil,
		WithSleep(noSleep), WithObserver(rec))
	s.stash(stale)

	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(rec.mismatches) != 0 {
		t.Fatalf("mismatches = %v", rec.mismatches)
	}
	raw, err := s.Receive(ctx, time.Second)
	if err != nil || string(raw) != string(stale) {
		t.Fatalf("Receive = %s, %v; want the stale frame", raw, err)
	}
}

func TestSession_BackoffFloor(t *testing.T) {
	cases := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero", 0, minBackoff},
		{"sub_second", 10 * time.Millisecond, minBackoff},
		{"negative", -1, defaultBackoff},
		{"configured", 3 * time.Second, 3 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("ws://127.0.0.1:1/swd/data")
			cfg.ReconnectBackoff = tc.in
			cfg.MaxRetries = 1
			var slept []time.Duration
			sleep := func(ctx context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}
			s := NewSession(cfg, &failingDialer{fail: 1 << 30}, nil, WithSleep(sleep))
			if err := s.Reconnect(context.Background()); !errors.Is(err, ErrTooManyRetries) {
				t.Fatalf("err = %v", err)
			}
			if len(slept) != 1 || slept[0] != tc.want {
				t.Fatalf("slept = %v, want [%s]", slept, tc.want)
			}
		})
	}
}
