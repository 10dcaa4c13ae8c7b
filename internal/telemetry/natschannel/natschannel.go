// Package natschannel implements telemetry.Channel on NATS core subjects.
package natschannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/tacmap/internal/telemetry"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/nats-io/nats.go"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "tacmap.telemetry"

// Channel subscribes to <prefix>.<topic>.
type Channel struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials the NATS server at url.
func Connect(url, prefix string, timeout time.Duration, logger *slog.Logger) (*Channel, error) {
	nc, err := nats.Connect(url,
		nats.Name("tacmap"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return New(nc, prefix, logger), nil
}

// New wraps an established connection.
func New(nc *nats.Conn, prefix string, logger *slog.Logger) *Channel {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{conn: nc, prefix: prefix, logger: logger}
}

// Subject returns the NATS subject for topic.
func (c *Channel) Subject(topic string) string {
	return c.prefix + "." + topic
}

// Subscribe registers h on the topic's subject. Malformed payloads are logged and skipped.
func (c *Channel) Subscribe(_ context.Context, topic string, h telemetry.Handler) (telemetry.Subscription, error) {
	if c.conn == nil {
		return nil, errors.New("nats connection not established")
	}
	subject := c.Subject(topic)
	sub, err := c.conn.Subscribe(subject, c.handler(subject, h))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// Publish sends rec on the topic's subject.
func (c *Channel) Publish(topic string, rec core.TelemetryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}
	if err := c.conn.Publish(c.Subject(topic), data); err != nil {
		return fmt.Errorf("failed to publish telemetry: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (c *Channel) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Channel) handler(subject string, h telemetry.Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		rec, err := Decode(msg.Data)
		if err != nil {
			c.logger.Warn("Dropping malformed telemetry", "subject", subject, "error", err)
			return
		}
		h(rec)
	}
}

// Decode parses one JSON telemetry payload. Records without a serial or with
// out-of-range coordinates are rejected.
func Decode(data []byte) (core.TelemetryRecord, error) {
	var rec core.TelemetryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.TelemetryRecord{}, fmt.Errorf("failed to unmarshal telemetry: %w", err)
	}
	if rec.Serial == "" {
		return core.TelemetryRecord{}, errors.New("telemetry without aircraftSerial")
	}
	if !rec.Position.Valid() {
		return core.TelemetryRecord{}, fmt.Errorf("telemetry for %s has invalid position %s", rec.Serial, rec.Position)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return rec, nil
}
