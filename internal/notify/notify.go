// Package notify publishes compile outcomes to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/logfields"
	"git.home.luguber.info/inful/sassc/internal/retry"
)

// CompileEvent is the JSON payload published for every per-file outcome.
type CompileEvent struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Source     string    `json:"source"`
	Output     string    `json:"output"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewCompileEvent converts an outcome into its wire form.
func NewCompileEvent(o compile.Outcome) CompileEvent {
	ts := o.Started
	if ts.IsZero() {
		ts = time.Now()
	}
	return CompileEvent{
		RunID:      o.RunID,
		Trigger:    string(o.Trigger),
		Source:     filepath.ToSlash(o.Source),
		Output:     filepath.ToSlash(o.Output),
		Success:    o.Succeeded(),
		Message:    o.Message(),
		DurationMS: o.Duration.Milliseconds(),
		Timestamp:  ts.UTC(),
	}
}

// Publisher is the slice of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier publishes CompileEvents on a subject.
type Notifier struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
	closeFn func()
}

// New wraps an existing publisher.
func New(pub Publisher, subject string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, subject: subject, logger: logger, closeFn: func() {}}
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*Notifier, error) {
	if url == "" {
		return nil, errors.ConfigError("nats url is required").Build()
	}
	conn, err := nats.Connect(url, nats.Name("sassc"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	n := New(conn, subject, logger)
	n.closeFn = func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}
	n.logger.Info("NATS notifications enabled", "url", url, "subject", subject)
	return n, nil
}

// ConnectWithRetry is Connect retried under policy, for daemons that may start
// before the NATS server.
func ConnectWithRetry(ctx context.Context, url, subject string, policy retry.Policy, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var n *Notifier
	err := policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			logger.Debug("Retrying NATS connection", slog.Int("attempt", attempt), slog.String("url", url))
		}
		var err error
		n, err = Connect(url, subject, logger)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Publish sends one event.
func (n *Notifier) Publish(ev CompileEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// OnCompile implements compile.Observer. Publish failures are logged only.
func (n *Notifier) OnCompile(o compile.Outcome) {
	if err := n.Publish(NewCompileEvent(o)); err != nil {
		n.logger.Warn("Compile notification failed", logfields.File(o.Source), logfields.Error(err))
		return
	}
	n.logger.Debug("Published compile event", logfields.File(o.Source), logfields.Trigger(string(o.Trigger)))
}

// Close drains the connection when the notifier owns one.
func (n *Notifier) Close() {
	n.closeFn()
}
