package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/usecase"
	xhttp "SignalBT/pkg/http"
	xlogger "SignalBT/pkg/logger"
)

// SignalsHandler serves one-off signal resolution.
type SignalsHandler struct {
	logger *xlogger.Logger
	res    *usecase.SignalResolver
}

func NewSignalsHandler(logger *xlogger.Logger, res *usecase.SignalResolver) *SignalsHandler {
	return &SignalsHandler{logger: logger, res: res}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/signals")
	g.POST("/parse", h.Parse)
}

type parseResponse struct {
	RequestID string `json:"request_id"`
	usecase.Resolution
	Usable bool `json:"usable"`
}

func (h *SignalsHandler) Parse(c echo.Context) error {
	req := &models.ParseSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		t, ok := xhttp.ParseTime(req.Timestamp)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.FieldError("timestamp", "timestamp %q is not a valid time", req.Timestamp))
		}
		ts = t
	}

	msg := models.RawMessage{
		Source:       req.Source,
		ChannelTitle: req.ChannelTitle,
		MessageID:    req.MessageID,
		Timestamp:    ts,
		Text:         req.Text,
	}
	r := h.res.Resolve(c.Request().Context(), msg, *req.UseAI)
	if r.Failure != nil {
		h.logger.Warn("ai fallback failed",
			xlogger.String("source", req.Source),
			xlogger.String("reason", string(r.Failure.Reason)),
			xlogger.Int("attempts", r.Failure.Attempts),
		)
	}
	return xhttp.SuccessResponse(c, parseResponse{
		RequestID:  uuid.NewString(),
		Resolution: r,
		Usable:     r.Usable(),
	})
}
