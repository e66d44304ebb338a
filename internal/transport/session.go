// Package transport owns the feed connection and drives the subscription state machine.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tempest_bridge/internal/frame"
	"tempest_bridge/internal/logger"
	"tempest_bridge/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	inboxSize      = 64
	maxPending     = 256
	defaultBackoff = 20 * time.Second
	minBackoff     = time.Second
	defaultAckWait = 10 * time.Second
)

// Config identifies the feed subscription and its retry policy.
type Config struct {
	Endpoint         string
	Token            string
	TokenParam       string // token | api_key
	DeviceID         string
	StationID        string
	ReconnectBackoff time.Duration // raised to 1s when smaller; negative selects 20s
	MaxRetries       int // 0 = retry forever
	AckTimeout       time.Duration
}

// Observer is told about session events worth journalling or counting.
type Observer interface {
	StateChanged(from, to State)
	AckMismatch(cmd protocol.Command, err error)
	MalformedFrame(err error)
	ReconnectAttempt(attempt int)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
func (nopObserver) AckMismatch(protocol.Command, error) {}
func (nopObserver) MalformedFrame(error) {}
func (nopObserver) ReconnectAttempt(int) {}

// Option customizes a Session.
type Option func(*Session)

func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.obs = o
		}
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

func WithBuilder(b *protocol.Builder) Option {
	return func(s *Session) {
		if b != nil {
			s.builder = b
		}
	}
}

type inbound struct {
	data []byte
	err  error
}

// link is one connection handle plus the goroutine pumping its frames.
type link struct {
	conn  Conn
	inbox chan inbound
	done  chan struct{}
}

func newLink(conn Conn) *link {
	l := &link{conn: conn, inbox: make(chan inbound, inboxSize), done: make(chan struct{})}
	go l.pump(conn)
	return l
}

func (l *link) pump(conn Conn) {
	defer close(l.inbox)
	for {
		_, data, err := conn.ReadMessage()
		select {
		case l.inbox <- inbound{data: data, err: err}:
		case <-l.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (l *link) release() {
	close(l.done)
	_ = l.conn.Close()
}

// Session is one logical subscription to a device/station pair. It is not safe for
// concurrent use except for State and Reconnects.
type Session struct {
	cfg     Config
	dialer  Dialer
	log     *logger.Logger
	obs     Observer
	builder *protocol.Builder
	sleep   func(ctx context.Context, d time.Duration) error

	state      atomic.Int32
	reconnects atomic.Int64
	link       *link
	pending    [][]byte
}

func NewSession(cfg Config, dialer Dialer, log *logger.Logger, opts ...Option) *Session {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckWait
	}
	switch {
	case cfg.ReconnectBackoff < 0:
		cfg.ReconnectBackoff = defaultBackoff
	case cfg.ReconnectBackoff < minBackoff:
		cfg.ReconnectBackoff = minBackoff
	}
	if cfg.TokenParam == "" {
		cfg.TokenParam = "token"
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Session{
		cfg:     cfg,
		dialer:  dialer,
		log:     log,
		obs:     nopObserver{},
		builder: protocol.NewBuilder(cfg.DeviceID, cfg.StationID),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Reconnects returns the number of reconnect attempts made so far.
func (s *Session) Reconnects() int64 { return s.reconnects.Load() }

func (s *Session) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from != to {
		s.log.Debugw("session_state", "from", from.String(), "to", to.String())
		s.obs.StateChanged(from, to)
	}
}

// Connect opens a fresh connection and consumes the welcome frame.
func (s *Session) Connect(ctx context.Context) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	s.dropLink()
	s.setState(StateConnecting)

	uri, err := buildURI(s.cfg.Endpoint, s.cfg.TokenParam, s.cfg.Token)
	if err != nil {
		s.setState(StateDisconnected)
		return &TransportError{Op: "dial", Err: err}
	}
	conn, err := s.dialer.Dial(ctx, uri)
	if err != nil {
		s.setState(StateDisconnected)
		return &TransportError{Op: "dial", Err: err}
	}
	s.link = newLink(conn)
	s.setState(StateAwaitingWelcome)

	// the welcome is the first frame of this connection; pending frames belong to Receive
	raw, err := s.readLink(ctx, s.cfg.AckTimeout)
	if err != nil {
		s.dropLink()
		s.setState(StateDisconnected)
		return &TransportError{Op: "welcome", Err: err}
	}
	ev, err := frame.Decode(raw)
	switch {
	case err != nil:
		s.obs.MalformedFrame(err)
		s.log.Warnw("welcome_malformed", "err", err, "payload", string(raw))
	default:
		if verr := protocol.ValidateWelcome(ev); verr != nil {
			s.log.Warnw("welcome_unexpected", "err", verr, "payload", string(raw))
		}
	}
	s.log.Infow("feed_connected", "endpoint", s.cfg.Endpoint, "welcome", string(raw))
	return nil
}

// Subscribe issues the subscribe sequence, one acknowledged command at a time.
func (s *Session) Subscribe(ctx context.Context) error {
	if s.link == nil {
		return &TransportError{Op: "subscribe", Err: ErrConnectionClosed}
	}
	s.setState(StateSubscribing)
	for _, cmd := range s.builder.Subscribe() {
		if err := s.issue(ctx, cmd); err != nil {
			return err
		}
	}
	s.setState(StateActive)
	s.log.Infow("feed_subscribed", "device_id", s.cfg.DeviceID, "station_id", s.cfg.StationID)
	return nil
}

// Open connects and subscribes, falling back to Reconnect on transport failure.
func (s *Session) Open(ctx context.Context) error {
	err := s.connectAndSubscribe(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrSessionClosed) {
		return err
	}
	s.log.Warnw("feed_open_failed", "err", err)
	return s.Reconnect(ctx)
}

// Receive returns the next payload. Frames buffered while awaiting acknowledgments
// come first. It returns ErrConnectionClosed, ErrTimeout, or ctx.Err() on cancellation.
func (s *Session) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}
	return s.next(ctx, timeout)
}

// Reconnect discards the handle, waits the backoff and re-runs connect and subscribe
// until it succeeds, ctx ends, or MaxRetries attempts have failed.
func (s *Session) Reconnect(ctx context.Context) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	s.setState(StateReconnecting)
	s.dropLink()

	for attempt := 1; ; attempt++ {
		s.reconnects.Add(1)
		s.obs.ReconnectAttempt(attempt)
		s.log.Infow("feed_reconnecting", "attempt", attempt, "backoff", s.cfg.ReconnectBackoff.String())

		if err := s.sleep(ctx, s.cfg.ReconnectBackoff); err != nil {
			return err
		}
		err := s.connectAndSubscribe(ctx)
		if err == nil {
			s.log.Infow("feed_reconnected", "attempt", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSessionClosed) {
			return err
		}
		s.log.Warnw("feed_reconnect_failed", "attempt", attempt, "err", err)
		s.dropLink()
		if s.cfg.MaxRetries > 0 && attempt >= s.cfg.MaxRetries {
			s.setState(StateDisconnected)
			return fmt.Errorf("%w: %d attempts, last error: %v", ErrTooManyRetries, attempt, err)
		}
		s.setState(StateReconnecting)
	}
}

// Close unsubscribes (when ACTIVE), releases the handle and moves to CLOSED.
// Missing acknowledgments are logged, not waited on beyond the ack timeout.
func (s *Session) Close(ctx context.Context) error {
	prev := s.State()
	if prev == StateClosed {
		return nil
	}
	s.setState(StateClosing)

	if prev == StateActive && s.link != nil {
		for _, cmd := range s.builder.Unsubscribe() {
			if err := s.issue(ctx, cmd); err != nil {
				s.log.Warnw("unsubscribe_failed", "command", cmd.Type, "err", err)
				break
			}
		}
		s.writeCloseFrame()
	}

	s.dropLink()
	s.pending = nil
	s.setState(StateClosed)
	s.log.Infow("feed_closed", "endpoint", s.cfg.Endpoint)
	return nil
}

func (s *Session) connectAndSubscribe(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// issue sends cmd and waits for its reply.
func (s *Session) issue(ctx context.Context, cmd protocol.Command) error {
	if err := s.send(cmd); err != nil {
		return err
	}
	return s.awaitAck(ctx, cmd)
}

func (s *Session) send(cmd protocol.Command) error {
	if s.link == nil {
		return &TransportError{Op: "send " + string(cmd.Type), Err: ErrConnectionClosed}
	}
	payload, err := protocol.Encode(cmd)
	if err != nil {
		return &TransportError{Op: "send " + string(cmd.Type), Err: err}
	}
	_ = s.link.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.link.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &TransportError{Op: "send " + string(cmd.Type), Err: fmt.Errorf("%w: %v", ErrConnectionClosed, err)}
	}
	s.log.Debugw("command_sent", "command", cmd.Type, "id", cmd.ID)
	return nil
}

// awaitAck reads until a reply to cmd arrives or the ack timeout passes. Data frames
// seen meanwhile are kept for Receive. Only transport failures are returned.
func (s *Session) awaitAck(ctx context.Context, cmd protocol.Command) error {
	deadline := time.Now().Add(s.cfg.AckTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			err := fmt.Errorf("%w: no reply to %s within %s", protocol.ErrAckMismatch, cmd.Type, s.cfg.AckTimeout)
			s.log.Warnw("command_ack_missing", "command", cmd.Type, "id", cmd.ID)
			s.obs.AckMismatch(cmd, err)
			return nil
		}

		raw, err := s.readLink(ctx, remaining)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			return &TransportError{Op: "ack " + string(cmd.Type), Err: err}
		}

		ev, err := frame.Decode(raw)
		if err != nil {
			s.obs.MalformedFrame(err)
			s.log.Errorw("command_reply_malformed", "command", cmd.Type, "err", err, "payload", string(raw))
			continue
		}
		if !ev.IsReply() {
			s.stash(raw)
			continue
		}

		s.log.Infow("command_reply", "command", cmd.Type, "reply", string(raw))
		if err := protocol.ValidateAck(ev, cmd.ID); err != nil {
			s.log.Warnw("command_ack_mismatch", "command", cmd.Type, "id", cmd.ID, "err", err)
			s.obs.AckMismatch(cmd, err)
		}
		return nil
	}
}

func (s *Session) stash(raw []byte) {
	if len(s.pending) >= maxPending {
		s.log.Warnw("pending_frame_dropped", "capacity", maxPending)
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, raw)
}

// next returns a buffered frame or waits on the connection.
func (s *Session) next(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if len(s.pending) > 0 {
		raw := s.pending[0]
		s.pending = s.pending[1:]
		return raw, nil
	}
	return s.readLink(ctx, timeout)
}

// readLink waits on the current connection only.
func (s *Session) readLink(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.link == nil {
		return nil, ErrConnectionClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case in, ok := <-s.link.inbox:
		if !ok {
			return nil, ErrConnectionClosed
		}
		if in.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, in.err)
		}
		return in.data, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) writeCloseFrame() {
	if s.link == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.link.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.link.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		s.log.Debugw("close_frame_failed", "err", err)
	}
}

// dropLink releases the current handle; it is never reused.
func (s *Session) dropLink() {
	if s.link == nil {
		return
	}
	s.link.release()
	s.link = nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
