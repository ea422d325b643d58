package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/resilience"
)

// Notifier publishes a workflow-advance event once a response is
// submitted. It implements ports.WorkflowNotifier.
type Notifier struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Notifier, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ora-responder"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Notifier{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
		}
	}
}

type advanceMessage struct {
	ProblemName string    `json:"problem_name"`
	ExecutorID  string    `json:"executor_id"`
	FileCount   int       `json:"file_count"`
	Duplicate   bool      `json:"duplicate"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func encodeEvent(event domain.SubmissionEvent) ([]byte, error) {
	return json.Marshal(advanceMessage{
		ProblemName: event.ProblemName,
		ExecutorID:  event.Language,
		FileCount:   event.FileCount,
		Duplicate:   event.Duplicate,
		SubmittedAt: event.SubmittedAt.UTC(),
	})
}

func (n *Notifier) Advance(ctx context.Context, event domain.SubmissionEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode workflow event: %w", err)
	}
	call := func(_ context.Context) error {
		if err := n.conn.Publish(n.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if n.executor != nil {
		// nats.go buffers publishes across reconnects, so a second try here
		// could deliver the event twice.
		err = n.executor.Execute(ctx, resilience.Write("nats.publish"), call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	n.logger.Info("workflow_advanced", "subject", n.subject, "problem", event.ProblemName, "duplicate", event.Duplicate)
	return nil
}
