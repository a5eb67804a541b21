package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "SignalBT/pkg/http"
)

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves GET /healthz. Required checks fail the probe;
// optional ones are only reported.
type HealthHandler struct {
	required map[string]HealthCheck
	optional map[string]HealthCheck
	timeout  time.Duration
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		required: map[string]HealthCheck{},
		optional: map[string]HealthCheck{},
		timeout:  2 * time.Second,
	}
}

func (h *HealthHandler) Require(name string, check HealthCheck) *HealthHandler {
	h.required[name] = check
	return h
}

func (h *HealthHandler) Report(name string, check HealthCheck) *HealthHandler {
	h.optional[name] = check
	return h
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	for name, check := range h.required {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			continue
		}
		resp.Checks[name] = "ok"
	}
	for name, check := range h.optional {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status == "unavailable" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, resp)
	}
	return xhttp.SuccessResponse(c, resp)
}
