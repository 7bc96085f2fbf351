package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/tglistener/internal/healthcheck"
)

type PingHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

type HealthResponse struct {
	Status string                    `json:"status"`
	Checks []healthcheck.CheckResult `json:"checks,omitempty"`
}

func NewPingHandler(log *slog.Logger, checkers ...healthcheck.Checker) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{
		logger:   log.With(slog.String("handler", "ping")),
		checkers: checkers,
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
	e.GET("/healthz", h.Health)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Health godoc
// @Summary Liveness plus dependency checks
// @Tags health
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /healthz [get]
func (h *PingHandler) Health(c echo.Context) error {
	checks := healthcheck.Run(c.Request().Context(), h.checkers...)
	status := healthcheck.Overall(checks)
	code := http.StatusOK
	if status == healthcheck.StatusError {
		code = http.StatusServiceUnavailable
		h.logger.Warn("health check failed", slog.Int("checks", len(checks)))
	}
	return c.JSON(code, HealthResponse{Status: status, Checks: checks})
}
