package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects for pipeline audit events.
const (
	SubjectQuestionAnswered = "sibyl.question.answered"
	SubjectSQLBlocked       = "sibyl.sql.blocked"
	SubjectInjectionBlocked = "sibyl.injection.blocked"
)

// Event is the common audit payload. SQL is only set for database-branch
// events; Reason only for blocked ones.
type Event struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent,omitempty"`
	SQL       string `json:"sql,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Publisher emits fire-and-forget audit events. Like the rest of the
// pipeline's side channels it must never fail a user-facing reply, so
// publish errors are logged and dropped.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

func (p *Publisher) Publish(subject string, evt Event) {
	if p == nil {
		return
	}
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("marshal audit event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("publish audit event failed", "subject", subject, "error", err)
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}
