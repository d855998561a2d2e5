package notify

import (
	"context"
	"fmt"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/logger"
)

// Publisher delivers audit events. Callers log publish failures and carry on;
// an unreachable broker never fails a classification or a rule update.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// New connects the publisher selected by cfg.Driver.
func New(cfg config.NotifyConfig, log *logger.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "nats":
		return NewNATSPublisher(cfg, log)
	case "mqtt":
		return NewMQTTPublisher(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported notify driver: %s", cfg.Driver)
	}
}
