package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/usecase"
	xhttp "SignalBT/pkg/http"
	xlogger "SignalBT/pkg/logger"
)

// statsSpan is the window used by /api/stats when from is omitted.
const statsSpan = 30 * 24 * time.Hour

// BacktestHandler exposes the simulator and the stored-signal backtest.
type BacktestHandler struct {
	logger *xlogger.Logger
	uc     *usecase.BacktestUseCase
}

func NewBacktestHandler(logger *xlogger.Logger, uc *usecase.BacktestUseCase) *BacktestHandler {
	return &BacktestHandler{logger: logger, uc: uc}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/backtest/simulate", h.Simulate)
	g.POST("/backtest/run", h.Run)
	g.GET("/stats", h.Stats)
}

func (h *BacktestHandler) Simulate(c echo.Context) error {
	req := &models.SimulateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Simulate(*req)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.FieldError("tie_break", "%v", err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestHandler) Run(c echo.Context) error {
	req := &models.BacktestRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := xhttp.ParseWindow(req.From, req.To, 0)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	}

	out, err := h.uc.Run(c.Request().Context(), usecase.RunParams{
		From:    from,
		To:      to,
		Channel: req.Channel,
		Limit:   req.Limit,
		Persist: *req.Persist,
	})
	if err != nil {
		h.logger.Error("backtest run failed", xlogger.Error(err), xlogger.String("channel", req.Channel))
		return xhttp.AppErrorResponse(c, err)
	}
	h.logger.Info("backtest run finished",
		xlogger.String("run_id", out.Report.RunID),
		xlogger.Int("results", len(out.Results)),
	)
	return xhttp.SuccessResponse(c, out)
}

func (h *BacktestHandler) Stats(c echo.Context) error {
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := xhttp.ParseWindow(req.From, req.To, statsSpan)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	}

	sum, err := h.uc.Stats(c.Request().Context(), usecase.StatsParams{
		From:    from,
		To:      to,
		Channel: req.Channel,
		Top:     req.Top,
	})
	if err != nil {
		h.logger.Error("stats query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sum)
}
