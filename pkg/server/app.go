package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalBT/internal/usecase"
	xhttp "SignalBT/pkg/http"
	pkgkafka "SignalBT/pkg/kafka"
	applogger "SignalBT/pkg/logger"
)

// App runs the long-lived parts of the service: the HTTP API, the Kafka
// consumer of raw messages and the relay collector. The last two are optional.
type App struct {
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	collector  *usecase.MessageCollector
	closers    []namedCloser
	timeout    time.Duration
}

type namedCloser struct {
	name string
	c    io.Closer
}

type Option func(*App)

// WithConsumer enables the Kafka consumer with its message handler.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil && h != nil {
			a.consumer = c
			a.kh = h
		}
	}
}

// WithCollector enables the relay collector.
func WithCollector(c *usecase.MessageCollector) Option {
	return func(a *App) { a.collector = c }
}

// WithCloser registers a resource closed after everything else has stopped,
// in registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

// New creates the application.
func New(log *applogger.Logger, httpServer *xhttp.Server, shutdownTimeout time.Duration, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	a := &App{log: log, httpServer: httpServer, timeout: shutdownTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until SIGINT/SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Start(runCtx); err != nil {
			return err
		}
		a.log.Info("relay collector started")
	}

	if a.consumer != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			cancel()
			a.shutdown()
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		cancel()
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops inputs first, then the HTTP server, then closes resources.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	var errs []error
	if a.collector != nil {
		select {
		case <-a.collector.Done():
		case <-ctx.Done():
			a.log.Warn("relay collector did not stop in time")
		}
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("relay collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	a.log.RemoveCollector()
	return errors.Join(errs...)
}
