package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/logger"
)

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

// NATSPublisher publishes events to <subject>.<event type>.
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  *logger.Logger
}

func NewNATSPublisher(cfg config.NotifyConfig, log *logger.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(3),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected from NATS server", "error", err)
			}
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password.Value()))
	}

	log.Debug("connecting to NATS server", "url", cfg.URL)
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	return newNATSPublisher(conn, cfg.Subject, log), nil
}

func newNATSPublisher(conn natsConn, subject string, log *logger.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, logger: log}
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	subject := subjectFor(p.subject, event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("published event",
		"subject", subject,
		"type", event.Type,
		"payloadSize", len(payload))
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}
