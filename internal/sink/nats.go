package sink

import (
	"context"
	"fmt"
	"time"

	"tempest_bridge/internal/logger"
	"tempest_bridge/internal/models"

	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 2 * time.Second

// natsConn is the part of *nats.Conn the sink uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// NATSSink publishes records as JSON on one subject.
type NATSSink struct {
	conn    natsConn
	subject string
}

func NewNATSSink(url, subject string, log *logger.Logger) (*NATSSink, error) {
	if log == nil {
		log = logger.Nop()
	}
	nc, err := nats.Connect(url,
		nats.Name("tempest-bridge"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warnw("nats_disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infow("nats_reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return newNATSSink(nc, subject), nil
}

func newNATSSink(conn natsConn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Publish(ctx context.Context, rec models.ObservationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, payload)
}

// Close flushes pending messages and drains the connection.
func (s *NATSSink) Close(context.Context) error {
	if err := s.conn.FlushTimeout(natsFlushTimeout); err != nil {
		_ = s.conn.Drain()
		return err
	}
	return s.conn.Drain()
}
