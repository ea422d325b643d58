package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/ora-response-client/internal/adapters/http"
	"github.com/kirillkom/ora-response-client/internal/bootstrap"
	"github.com/kirillkom/ora-response-client/internal/config"
	"github.com/kirillkom/ora-response-client/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "ora-responder", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.IO{In: os.Stdin, Out: os.Stdout}, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	var metricsProvider httpadapter.MetricsProvider
	if cfg.MetricsEnabled {
		metricsProvider = app.Metrics
	}
	router := httpadapter.NewRouter(app.Editor, httpadapter.Options{
		Metrics:        metricsProvider,
		Health:         app.Executor.States,
		Logger:         logger,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
	}).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.TransferTimeout + cfg.PollTimeout,
		IdleTimeout:  60 * time.Second,
	}

	scheduler := app.Editor.Scheduler()
	go scheduler.Run(ctx)

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "problem_name", app.Policy.ProblemName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
