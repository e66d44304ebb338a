// Package tempest_bridge exposes the Tempest websocket feed to a host application
// as a pull-based sequence of observation records.
package tempest_bridge

import (
	"context"
	"fmt"

	"tempest_bridge/internal/config"
	"tempest_bridge/internal/logger"
	"tempest_bridge/internal/metric"
	"tempest_bridge/internal/models"
	"tempest_bridge/internal/repository"
	"tempest_bridge/internal/service"
	"tempest_bridge/internal/translator"
	"tempest_bridge/internal/transport"
)

// Record is one normalized observation: dateTime, usUnits and the measurements
// the source frame carried.
type Record = models.ObservationRecord

// Device is the contract a host driver loop consumes.
type Device interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	NextRecord(ctx context.Context) (Record, error)
}

var _ Device = (*Bridge)(nil)

// Option customizes a Bridge.
type Option func(*options)

type options struct {
	log         *logger.Logger
	metrics     *metric.Metrics
	journal     repository.EventRepo
	dialer      transport.Dialer
	sessionOpts []transport.Option
}

func WithLogger(l *logger.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *metric.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithJournal records session lifecycle events.
func WithJournal(r repository.EventRepo) Option { return func(o *options) { o.journal = r } }

// WithDialer replaces the websocket dialer.
func WithDialer(d transport.Dialer) Option { return func(o *options) { o.dialer = d } }

// WithSessionOptions passes options through to the transport session.
func WithSessionOptions(opts ...transport.Option) Option {
	return func(o *options) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// Bridge is the host-facing facade over the stream.
type Bridge struct {
	stream *service.StreamService
}

// New validates cfg and builds a Bridge. Nothing connects until Start or the
// first NextRecord.
func New(cfg *config.Config, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{log: logger.Nop(), dialer: transport.NewWebsocketDialer()}
	for _, opt := range opts {
		opt(&o)
	}

	table, err := translator.Lookup(cfg.Feed.FieldMapVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	table, err = table.WithOverrides(cfg.Feed.FieldOverrides)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	streamCfg := service.StreamConfig{
		Session: transport.Config{
			Endpoint:         cfg.Feed.Endpoint,
			Token:            cfg.Feed.PersonalToken,
			TokenParam:       cfg.Feed.TokenParam,
			DeviceID:         cfg.Feed.DeviceID,
			StationID:        cfg.Feed.StationID,
			ReconnectBackoff: cfg.Feed.ReconnectBackoff(),
			MaxRetries:       cfg.Feed.MaxRetries,
			AckTimeout:       cfg.Feed.AckTimeout,
		},
		ReceiveTimeout: cfg.Feed.ReceiveTimeout,
	}
	streamOpts := []service.StreamOption{
		service.WithLogger(o.log),
		service.WithMetrics(o.metrics),
		service.WithSessionOptions(o.sessionOpts...),
	}
	if o.journal != nil {
		streamOpts = append(streamOpts, service.WithEventRepo(o.journal))
	}
	stream := service.NewStreamService(streamCfg, o.dialer, translator.New(table), streamOpts...)
	return &Bridge{stream: stream}, nil
}

// Start connects and subscribes. Calling it more than once is harmless.
func (b *Bridge) Start(ctx context.Context) error { return b.stream.Start(ctx) }

// Stop unsubscribes, closes the connection and makes NextRecord return
// service.ErrStreamClosed. It may be called from any goroutine.
func (b *Bridge) Stop(ctx context.Context) error { return b.stream.Stop(ctx) }

// NextRecord blocks until the feed yields a record with at least one measurement.
// Connection failures are retried internally.
func (b *Bridge) NextRecord(ctx context.Context) (Record, error) { return b.stream.Next(ctx) }

// Stream exposes the underlying service for the status API.
func (b *Bridge) Stream() *service.StreamService { return b.stream }
