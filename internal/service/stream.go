package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tempest_bridge/internal/frame"
	"tempest_bridge/internal/logger"
	"tempest_bridge/internal/metric"
	"tempest_bridge/internal/models"
	"tempest_bridge/internal/protocol"
	"tempest_bridge/internal/repository"
	"tempest_bridge/internal/translator"
	"tempest_bridge/internal/transport"

	"github.com/google/uuid"
)

const (
	defaultReceiveTimeout = 90 * time.Second
	journalTimeout        = 2 * time.Second
)

// ErrStreamClosed is returned by Start and Next once Stop has been called.
var ErrStreamClosed = errors.New("stream closed")

// StreamConfig configures a StreamService.
type StreamConfig struct {
	Session        transport.Config
	ReceiveTimeout time.Duration
}

// StreamOption customizes a StreamService.
type StreamOption func(*StreamService)

func WithEventRepo(r repository.EventRepo) StreamOption {
	return func(s *StreamService) { s.events = r }
}

func WithMetrics(m *metric.Metrics) StreamOption {
	return func(s *StreamService) { s.metrics = m }
}

func WithLogger(l *logger.Logger) StreamOption {
	return func(s *StreamService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSessionOptions passes options through to the transport session.
func WithSessionOptions(opts ...transport.Option) StreamOption {
	return func(s *StreamService) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// StreamService turns the feed session into a sequence of observation records.
// Next is meant for one consumer goroutine; Stop may be called from any goroutine.
type StreamService struct {
	cfg         StreamConfig
	session     *transport.Session
	tr          *translator.Translator
	events      repository.EventRepo
	metrics     *metric.Metrics
	log         *logger.Logger
	sessionOpts []transport.Option

	mu      sync.Mutex // held by Start, Next and the closing half of Stop
	started bool
	closed  bool

	stopped    atomic.Bool
	stopCtx    context.Context
	stopSignal context.CancelFunc

	records   atomic.Int64
	malformed atomic.Int64

	statusMu     sync.RWMutex
	latest       models.ObservationRecord
	hasLatest    bool
	lastRecordAt time.Time
	lastErr      string
}

func NewStreamService(cfg StreamConfig, dialer transport.Dialer, tr *translator.Translator, opts ...StreamOption) *StreamService {
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = defaultReceiveTimeout
	}
	s := &StreamService{
		cfg: cfg,
		tr:  tr,
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stopCtx, s.stopSignal = context.WithCancel(context.Background())

	sessionOpts := append([]transport.Option{transport.WithObserver(s)}, s.sessionOpts...)
	s.session = transport.NewSession(cfg.Session, dialer, s.log.Named("session"), sessionOpts...)
	return s
}

// Start connects and subscribes, retrying per the session policy. Calling it again
// after success is a no-op.
func (s *StreamService) Start(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, release := s.interruptible(ctx)
	defer release()
	return s.startLocked(ctx)
}

func (s *StreamService) startLocked(ctx context.Context) error {
	if s.closed {
		return ErrStreamClosed
	}
	if s.started {
		return nil
	}
	s.log.Infow("stream_starting",
		"endpoint", s.cfg.Session.Endpoint,
		"device_id", s.cfg.Session.DeviceID,
		"station_id", s.cfg.Session.StationID,
		"field_map", s.tr.Version(),
	)
	if err := s.session.Open(ctx); err != nil {
		s.setLastErr(err)
		return s.stopAware(err)
	}
	s.started = true
	return nil
}

// Next blocks until a non-empty record is available. Transport failures are
// absorbed by reconnecting; only a retry ceiling, ctx and Stop end the call.
func (s *StreamService) Next(ctx context.Context) (models.ObservationRecord, error) {
	if s.stopped.Load() {
		return models.ObservationRecord{}, ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, release := s.interruptible(ctx)
	defer release()

	if err := s.startLocked(ctx); err != nil {
		return models.ObservationRecord{}, err
	}

	for {
		raw, err := s.session.Receive(ctx, s.cfg.ReceiveTimeout)
		if err != nil {
			if ctx.Err() != nil || !transport.Recoverable(err) {
				return models.ObservationRecord{}, s.stopAware(err)
			}
			s.setLastErr(err)
			s.log.Warnw("stream_receive_failed", "err", err)
			s.journal(models.EventTransportFailed, err.Error(), nil)
			if err := s.session.Reconnect(ctx); err != nil {
				s.setLastErr(err)
				return models.ObservationRecord{}, s.stopAware(err)
			}
			continue
		}

		ev, err := frame.Decode(raw)
		if err != nil {
			s.MalformedFrame(err)
			s.log.Errorw("frame_malformed", "err", err, "payload", string(raw))
			continue
		}
		s.metrics.FrameDecoded(ev.Kind.String())

		switch {
		case ev.IsInformational():
			s.recordNotice(ev)
			continue
		case ev.Kind == frame.KindAcknowledgment:
			s.log.Debugw("late_reply_ignored", "type", ev.Type, "id", ev.ID)
			continue
		case ev.Kind == frame.KindUnrecognized:
			s.log.Debugw("frame_unrecognized", "err", ev.Err(), "payload", string(raw))
			continue
		}

		rec, ok := s.tr.Translate(ev)
		if !ok {
			s.log.Debugw("frame_without_measurements", "type", ev.Type)
			continue
		}
		s.remember(rec, ev.Kind)
		return rec, nil
	}
}

// Stop interrupts a blocked Next, unsubscribes and closes the session. Later Start
// and Next calls return ErrStreamClosed. Stop is idempotent.
func (s *StreamService) Stop(ctx context.Context) error {
	s.stopped.Store(true)
	s.stopSignal()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Infow("stream_stopping")
	return s.session.Close(ctx)
}

// State is the session lifecycle state.
func (s *StreamService) State() transport.State { return s.session.State() }

// FieldMapVersion is the translator table in use.
func (s *StreamService) FieldMapVersion() string { return s.tr.Version() }

// Snapshot returns counters and the last error for the status API.
func (s *StreamService) Snapshot() models.SessionStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return models.SessionStatus{
		State:           s.session.State().String(),
		Endpoint:        s.cfg.Session.Endpoint,
		DeviceID:        s.cfg.Session.DeviceID,
		StationID:       s.cfg.Session.StationID,
		FieldMap:        s.tr.Version(),
		Reconnects:      s.session.Reconnects(),
		RecordsEmitted:  s.records.Load(),
		MalformedFrames: s.malformed.Load(),
		LastRecordAt:    s.lastRecordAt,
		LastError:       s.lastErr,
		UpdatedAt:       time.Now().UTC(),
	}
}

// Latest returns the most recent record handed to the consumer.
func (s *StreamService) Latest() (models.ObservationRecord, bool) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.latest, s.hasLatest
}

// StateChanged journals the lifecycle milestones.
func (s *StreamService) StateChanged(from, to transport.State) {
	s.metrics.SetState(int(to))
	meta := map[string]any{"from": from.String(), "to": to.String()}
	switch to {
	case transport.StateAwaitingWelcome:
		s.journal(models.EventConnected, "connected to "+s.cfg.Session.Endpoint, meta)
	case transport.StateActive:
		s.journal(models.EventSubscribed, "subscriptions active", meta)
	case transport.StateClosed:
		s.journal(models.EventClosed, "session closed", meta)
	}
}

func (s *StreamService) AckMismatch(cmd protocol.Command, err error) {
	s.metrics.AckMismatch()
	s.journal(models.EventAckMismatch, err.Error(), map[string]any{
		"command": string(cmd.Type),
		"id":      cmd.ID,
	})
}

func (s *StreamService) MalformedFrame(error) {
	s.malformed.Add(1)
	s.metrics.MalformedFrame()
}

func (s *StreamService) ReconnectAttempt(attempt int) {
	s.metrics.Reconnect()
	s.journal(models.EventReconnecting, fmt.Sprintf("reconnect attempt %d", attempt), map[string]any{
		"attempt": attempt,
	})
}

var noticeTypes = map[frame.Kind]string{
	frame.KindPrecipitationStart: models.EventPrecipStart,
	frame.KindStationOnline:      models.EventStationOnline,
	frame.KindStationOffline:     models.EventStationOffline,
	frame.KindDeviceOnline:       models.EventDeviceOnline,
	frame.KindDeviceOffline:      models.EventDeviceOffline,
}

func (s *StreamService) recordNotice(ev frame.Event) {
	s.log.Infow("feed_notice", "type", ev.Type, "device_id", ev.DeviceID, "station_id", ev.StationID)
	meta := map[string]any{}
	if ev.DeviceID != "" {
		meta["device_id"] = ev.DeviceID
	}
	if ev.StationID != "" {
		meta["station_id"] = ev.StationID
	}
	if ev.Timestamp != 0 {
		meta["timestamp"] = ev.Timestamp
	}
	s.journal(noticeTypes[ev.Kind], ev.Type, meta)
}

func (s *StreamService) journal(typ, description string, meta map[string]any) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	e := models.SessionEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: description,
	}
	if len(meta) > 0 {
		e.Metadata = meta
	}
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warnw("journal_append_failed", "type", typ, "err", err)
	}
}

func (s *StreamService) remember(rec models.ObservationRecord, kind frame.Kind) {
	s.records.Add(1)
	s.metrics.RecordEmitted(kind.String(), rec.DateTime)

	s.statusMu.Lock()
	s.latest = rec
	s.hasLatest = true
	s.lastRecordAt = time.Unix(rec.DateTime, 0).UTC()
	s.statusMu.Unlock()
}

func (s *StreamService) setLastErr(err error) {
	s.statusMu.Lock()
	s.lastErr = err.Error()
	s.statusMu.Unlock()
}

// interruptible derives a context that Stop also cancels.
func (s *StreamService) interruptible(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	unhook := context.AfterFunc(s.stopCtx, cancel)
	return ctx, func() {
		unhook()
		cancel()
	}
}

// stopAware maps failures caused by Stop to ErrStreamClosed.
func (s *StreamService) stopAware(err error) error {
	if s.stopped.Load() {
		return ErrStreamClosed
	}
	return err
}
