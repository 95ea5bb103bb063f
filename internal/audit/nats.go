package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject is used when NewNATSSink gets an empty subject.
const DefaultNATSSubject = "pmscan.audit"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event as JSON on a NATS subject. Publish errors are
// logged and dropped; audit delivery never blocks authentication.
type NATSSink struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewNATSSink wraps an existing publisher.
func NewNATSSink(pub Publisher, subject string, logger *slog.Logger) *NATSSink {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{pub: pub, subject: subject, logger: logger}
}

// ConnectNATSSink dials url and returns a sink plus the connection so the
// caller can drain it on shutdown.
func ConnectNATSSink(url, subject string, logger *slog.Logger) (*NATSSink, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("pmscan-audit"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSSink(nc, subject, logger), nc, nil
}

func (s *NATSSink) Emit(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WarnContext(ctx, "pmscanauth: audit encode failed", "event_type", event.EventType, "error", err)
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.logger.WarnContext(ctx, "pmscanauth: audit publish failed", "subject", s.subject, "event_type", event.EventType, "error", err)
	}
}
