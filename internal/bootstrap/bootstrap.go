package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/ora-response-client/internal/adapters/cli"
	"github.com/kirillkom/ora-response-client/internal/config"
	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/core/ports"
	"github.com/kirillkom/ora-response-client/internal/core/usecase"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/ora"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/resilience"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/ora-response-client/internal/infrastructure/storage/presigned"
	"github.com/kirillkom/ora-response-client/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Policy domain.QuestionPolicy

	Editor   *usecase.Editor
	Metrics  *metrics.ResponderMetrics
	Executor *resilience.Executor

	closeFn func()
}

// IO carries the terminal streams used by the confirmation gate and the
// presenter.
type IO struct {
	In  io.Reader
	Out io.Writer
}

func New(ctx context.Context, cfg config.Config, streams IO, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	question, err := config.LoadQuestion(cfg.QuestionFile, cfg.Question)
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	policy, err := question.Policy()
	if err != nil {
		return nil, fmt.Errorf("question policy: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)
	responderMetrics := metrics.NewResponderMetrics("ora-responder")

	server := ora.New(cfg.ServerBaseURL, ora.Options{
		Timeout:            cfg.ServerTimeout,
		PollInterval:       cfg.PollInterval,
		PollTimeout:        cfg.PollTimeout,
		RateLimit:          cfg.RateLimitRPS,
		RateBurst:          cfg.RateLimitBurst,
		CSRFToken:          cfg.ServerCSRFToken,
		SessionID:          cfg.ServerSessionID,
		ResilienceExecutor: executor,
		Logger:             logger,
	})

	files, err := localfs.New(cfg.FilesBasePath)
	if err != nil {
		return nil, fmt.Errorf("init file source: %w", err)
	}

	gate, err := cli.NewGate(cfg.ConfirmMode, streams.In, streams.Out)
	if err != nil {
		return nil, fmt.Errorf("init confirmation gate: %w", err)
	}

	notifier, closeNotifier, err := newNotifier(cfg, executor, logger)
	if err != nil {
		return nil, fmt.Errorf("init workflow notifier: %w", err)
	}

	var observer ports.Observer
	if cfg.MetricsEnabled {
		observer = responderMetrics
	}

	editor := usecase.NewEditor(policy, usecase.EditorDeps{
		Server:    server,
		Transfer:  presigned.New(cfg.TransferTimeout),
		Files:     files,
		Gate:      gate,
		Presenter: cli.NewPresenter(streams.Out, logger),
		Notifier:  notifier,
		Observer:  observer,
		Logger:    logger,
	}, cfg.AutosaveInterval)

	if err := editor.Load(ctx, question.Text, question.Language); err != nil {
		logger.Warn("initial_render_failed", "error", err)
	}

	return &App{
		Config:   cfg,
		Policy:   policy,
		Editor:   editor,
		Metrics:  responderMetrics,
		Executor: executor,
		closeFn:  closeNotifier,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.Retry.Attempts = cfg.RetryMaxAttempts
	if cfg.RetryBackoff > 0 {
		out.Retry.Backoff = cfg.RetryBackoff
	}
	out.Breaker.Enabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequest > 0 {
		out.Breaker.MinRequests = uint32(cfg.BreakerMinRequest)
	}
	return out
}

func newNotifier(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.WorkflowNotifier, func(), error) {
	if cfg.NATSURL == "" {
		return logNotifier{logger: logger}, func() {}, nil
	}
	notifier, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return notifier, notifier.Close, nil
}

// logNotifier records workflow advancement when no broker is configured.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Advance(_ context.Context, event domain.SubmissionEvent) error {
	n.logger.Info("workflow_advanced",
		"problem_name", event.ProblemName,
		"language", event.Language,
		"file_count", event.FileCount,
		"duplicate", event.Duplicate,
	)
	return nil
}
