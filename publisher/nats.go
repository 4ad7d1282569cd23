package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject readings are published on
const DefaultSubject = "heat_exchanger.readings"

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSSink publishes JSON encoded messages to a NATS subject
type NATSSink struct {
	conn    natsConn
	subject string
	logger  *zap.Logger
}

// NewNATSSink connects to url. The connection reconnects indefinitely once
// established; only the initial connect can fail.
func NewNATSSink(url, subject string, logger *zap.Logger) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("heat-exchanger-monitor"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}

	logger.Info("connected to nats",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("subject", subject))

	return newNATSSink(conn, subject, logger), nil
}

func newNATSSink(conn natsConn, subject string, logger *zap.Logger) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, logger: logger}
}

// Name implements Sink
func (s *NATSSink) Name() string {
	return "nats"
}

// Subject returns the subject messages are published on
func (s *NATSSink) Subject() string {
	return s.subject
}

// Publish implements Sink
func (s *NATSSink) Publish(_ context.Context, msg Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
