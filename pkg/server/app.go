package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"LevelScope/internal/domain/repository"
	"LevelScope/internal/usecase"
	"LevelScope/pkg/config"
	xhttp "LevelScope/pkg/http"
	pkgkafka "LevelScope/pkg/kafka"
	applogger "LevelScope/pkg/logger"
	"LevelScope/pkg/util"
)

// App encapsulates the application lifecycle: the HTTP API, the optional
// sentiment consumer, and the resources closed on shutdown.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	handler  xhttp.Handler
	backtest *usecase.BacktestUseCase
	consumer *pkgkafka.Consumer

	httpServer *xhttp.Server
	closers    []closer
}

type closer struct {
	name string
	fn   func() error
}

// New creates an App. consumer may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	backtest *usecase.BacktestUseCase,
	consumer *pkgkafka.Consumer,
) *App {
	return &App{
		cfg:      cfg,
		log:      log.Component("app"),
		handler:  handler,
		backtest: backtest,
		consumer: consumer,
	}
}

// OnShutdown registers fn to run after the server and consumer stop.
// Closers run in reverse registration order.
func (a *App) OnShutdown(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run serves the API and blocks until SIGINT/SIGTERM or a server failure.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(a.cfg.Metrics.Path))
	}
	a.httpServer = xhttp.NewServer([]xhttp.Handler{a.handler}, opts...)

	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
	}

	errCh := a.httpServer.Start()
	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			a.log.Error("http server error", applogger.Error(err))
			runErr = err
		}
	}
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// RunBacktest executes one backtest over the configured data window and
// writes the JSON report to w.
func (a *App) RunBacktest(ctx context.Context, w io.Writer) error {
	defer func() { _ = a.shutdown() }()

	from, to, err := util.ParseRange(a.cfg.Data.From, a.cfg.Data.To)
	if err != nil {
		return fmt.Errorf("data window: %w", err)
	}
	from, to = util.AlignFromTo(from, to, a.cfg.Data.Timeframe)

	rep, err := a.backtest.Run(ctx, usecase.BacktestParams{
		Symbol:    a.cfg.Data.Symbol,
		From:      from,
		To:        to,
		Timeframe: repository.NormalizeTimeframe(a.cfg.Data.Timeframe),
	}, nil)
	if rep == nil {
		return err
	}
	if err != nil {
		a.log.Warn("backtest interrupted, writing partial report", applogger.Error(err))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(rep); encErr != nil {
		return fmt.Errorf("write report: %w", encErr)
	}
	return err
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			firstErr = err
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.closers = nil
	a.log.Info("shutdown complete")
	return firstErr
}
