package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/appbuilder/internal/config"
)

// NATSEmitter publishes build events to a NATS JetStream subject.
type NATSEmitter struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSEmitter connects to NATS using the events configuration.
func NewNATSEmitter(cfg config.EventsConfig) (*NATSEmitter, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("event publishing is disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS emitter initialized",
		"url", cfg.NATSURL,
		"subject", cfg.Subject)

	return &NATSEmitter{conn: conn, js: js, subject: cfg.Subject}, nil
}

// Emit publishes a build lifecycle event.
func (e *NATSEmitter) Emit(event *BuildEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := e.js.Publish(ctx, e.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published build event",
		"type", event.Type,
		"task", event.Task,
		"round", event.Round)

	return nil
}

// Close closes the NATS connection.
func (e *NATSEmitter) Close() error {
	if e.conn != nil {
		e.conn.Close()
	}
	return nil
}
