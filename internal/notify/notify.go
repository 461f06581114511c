// Package notify announces completed builds on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/postbuilder/internal/config"
	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
)

// Event is the JSON payload published after each build.
type Event struct {
	BuildID    string        `json:"build_id"`
	Version    string        `json:"version"`
	Mode       string        `json:"mode"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Built      []string      `json:"built"`
	Skipped    int           `json:"skipped"`
	Failed     []Failure     `json:"failed,omitempty"`
	Aggregates []string      `json:"aggregates"`
}

// Failure names a post that could not be built.
type Failure struct {
	Post  string `json:"post"`
	Error string `json:"error"`
}

// Publisher sends build events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// conn is the subset of *nats.Conn used here.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes events on a core NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// New returns a Noop publisher when no NATS URL is configured and a
// connected NATSPublisher otherwise.
func New(cfg config.NotifyConfig, logger *slog.Logger) (Publisher, error) {
	if cfg.NATSURL == "" {
		return Noop{}, nil
	}
	return Connect(cfg, logger)
}

// Connect dials the configured NATS server.
func Connect(cfg config.NotifyConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("postbuilder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryNotify, "connect to NATS").
			WithContext("url", cfg.NATSURL).Build()
	}
	logger.Info("NATS publisher connected",
		slog.String("url", cfg.NATSURL),
		slog.String("subject", cfg.Subject))
	return &NATSPublisher{conn: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish marshals ev and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return perrors.WrapError(err, perrors.CategoryInternal, "marshal build event").Build()
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return perrors.WrapError(err, perrors.CategoryNotify, "publish build event").
			WithContext("subject", p.subject).Build()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return perrors.WrapError(err, perrors.CategoryNotify, "flush build event").
			WithContext("subject", p.subject).Build()
	}

	p.logger.Debug("Published build event",
		logfields.BuildID(ev.BuildID),
		slog.String("subject", p.subject))
	return nil
}

// Close drops the connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
