package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	svcmetrics "LevelScope/internal/service/metrics"
	"LevelScope/internal/service/ratelimit"
	"LevelScope/internal/usecase"
	xhttp "LevelScope/pkg/http"
	xlogger "LevelScope/pkg/logger"
	"LevelScope/pkg/util"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// BacktestHandler serves backtest runs, level queries and health.
type BacktestHandler struct {
	logger     *xlogger.Logger
	backtest   *usecase.BacktestUseCase
	levels     *usecase.LevelsUseCase
	limiter    *ratelimit.Limiter
	runTimeout time.Duration
	checks     map[string]HealthCheck
}

// NewBacktestHandler creates the handler. limiter may be nil to disable throttling.
func NewBacktestHandler(
	logger *xlogger.Logger,
	backtest *usecase.BacktestUseCase,
	levels *usecase.LevelsUseCase,
	limiter *ratelimit.Limiter,
	runTimeout time.Duration,
	checks map[string]HealthCheck,
) *BacktestHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	svcmetrics.Register()
	return &BacktestHandler{
		logger:     logger.Component("api"),
		backtest:   backtest,
		levels:     levels,
		limiter:    limiter,
		runTimeout: runTimeout,
		checks:     checks,
	}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.POST("/backtest", h.RunBacktest, h.rateLimit)
	g.GET("/backtest/stream", h.Stream, h.rateLimit)
	g.GET("/backtest/:run_id/trades", h.Trades)
	g.GET("/levels", h.Levels)
}

func (h *BacktestHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
			svcmetrics.APIErrors.WithLabelValues(c.Path()).Inc()
			return xhttp.TooManyRequestsResponse(c)
		}
		return next(c)
	}
}

func (h *BacktestHandler) RunBacktest(c echo.Context) error {
	start := time.Now()
	defer func() { svcmetrics.Observe("backtest", start, c.Response().Status) }()

	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, aerr := backtestParams(req)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.runTimeout)
	defer cancel()
	rep, runErr := h.backtest.Run(ctx, params, nil)
	if rep == nil {
		h.logger.Error("backtest usecase error", xlogger.String("symbol", params.Symbol), xlogger.Error(runErr))
		return xhttp.AppErrorResponse(c, toAppError(runErr))
	}
	if runErr != nil {
		h.logger.Warn("backtest cut short", xlogger.String("run_id", rep.RunID), xlogger.Error(runErr))
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *BacktestHandler) Trades(c echo.Context) error {
	runID := c.Param("run_id")
	trades, err := h.backtest.Ledger(c.Request().Context(), runID)
	if err != nil {
		h.logger.Error("ledger query error", xlogger.String("run_id", runID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("ledger unavailable").WithError(err))
	}
	if len(trades) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no trades for run").WithParam("run_id", runID))
	}
	return xhttp.SuccessResponse(c, trades)
}

func (h *BacktestHandler) Levels(c echo.Context) error {
	start := time.Now()
	defer func() { svcmetrics.Observe("levels", start, c.Response().Status) }()

	req := &models.LevelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, perr := util.ParseRange(req.From, req.To)
	if perr != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(perr.Error()))
	}
	from, to = util.AlignFromTo(from, to, req.TF)

	res, uerr := h.levels.GetLevels(c.Request().Context(), usecase.GetLevelsParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
	})
	if uerr != nil {
		h.logger.Error("levels usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(uerr))
		return xhttp.AppErrorResponse(c, toAppError(uerr))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	return xhttp.DataResponse(c, status, results)
}

func backtestParams(req *models.BacktestRequest) (usecase.BacktestParams, *xhttp.AppError) {
	from, to, err := util.ParseRange(req.From, req.To)
	if err != nil {
		return usecase.BacktestParams{}, xhttp.BadRequestError(err.Error())
	}
	from, to = util.AlignFromTo(from, to, req.TF)
	return usecase.BacktestParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Notional:  req.Notional,
		FeeRate:   req.FeeRate,
		Selection: usecase.SelectionPolicy(req.Selection),
		EndOfRun:  usecase.EndOfRunPolicy(req.EndOfRun),
	}, nil
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrSymbolRequired), errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.BadRequestError(err.Error())
	case errors.Is(err, usecase.ErrNoHistory), errors.Is(err, models.ErrNoBars):
		return xhttp.UnprocessableError(err.Error())
	case errors.Is(err, models.ErrNonIncreasingTime), errors.Is(err, models.ErrInvalidPrice), errors.Is(err, models.ErrInvalidVolume):
		return xhttp.UnprocessableError("invalid bar data").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.TimeoutError("backtest timed out")
	default:
		return xhttp.InternalError("backtest failed").WithError(err)
	}
}
