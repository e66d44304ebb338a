// Package sink forwards observation records to external systems.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tempest_bridge/internal/logger"
	"tempest_bridge/internal/metric"
	"tempest_bridge/internal/models"
)

// Publisher delivers records to one destination.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, rec models.ObservationRecord) error
	Close(ctx context.Context) error
}

func encode(rec models.ObservationRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// Fanout publishes each record to every publisher. A failing publisher does not stop
// the others; failures are counted and joined.
type Fanout struct {
	pubs    []Publisher
	metrics *metric.Metrics
	log     *logger.Logger
}

func NewFanout(log *logger.Logger, m *metric.Metrics, pubs ...Publisher) *Fanout {
	if log == nil {
		log = logger.Nop()
	}
	return &Fanout{pubs: pubs, metrics: m, log: log}
}

// Len is the number of configured publishers.
func (f *Fanout) Len() int { return len(f.pubs) }

func (f *Fanout) Publish(ctx context.Context, rec models.ObservationRecord) error {
	var errs []error
	for _, p := range f.pubs {
		if err := p.Publish(ctx, rec); err != nil {
			f.metrics.SinkError(p.Name())
			f.log.Warnw("sink_publish_failed", "sink", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close(ctx context.Context) error {
	var errs []error
	for _, p := range f.pubs {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each record to the logger.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, rec models.ObservationRecord) error {
	s.log.Infow("observation", "dateTime", rec.DateTime, "fields", rec.Fields)
	return nil
}

func (s *LogSink) Close(context.Context) error { return nil }
