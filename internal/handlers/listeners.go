package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memohai/tglistener/internal/auth"
	"github.com/memohai/tglistener/internal/listener"
)

// ListenerRegistry is the part of listener.Registry the HTTP API drives.
type ListenerRegistry interface {
	Add(ctx context.Context, cfg listener.SessionConfig) (int64, error)
	Stop(ctx context.Context, apiID int64) error
	List() []int64
}

type ListenerHandler struct {
	registry ListenerRegistry
	logger   *slog.Logger
}

func NewListenerHandler(log *slog.Logger, registry ListenerRegistry) *ListenerHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ListenerHandler{
		registry: registry,
		logger:   log.With(slog.String("handler", "listeners")),
	}
}

func (h *ListenerHandler) Register(e *echo.Echo) {
	group := e.Group("/listeners")
	group.GET("", h.List)
	group.POST("", h.Add)
	group.DELETE("/:apiId", h.Stop)
}

type AddListenerRequest struct {
	APIID         int64  `json:"apiId"         validate:"required,gt=0"`
	APIHash       string `json:"apiHash"       validate:"required"`
	Phone         string `json:"phone"         validate:"required_without=StringSession"`
	StringSession string `json:"stringSession"`
	// Password answers the two-step challenge. A first login still reads the
	// code on the server console, since each start sends a new code.
	Password string `json:"password,omitempty"`
}

type ListenersResponse struct {
	Listeners []int64 `json:"listeners"`
}

type AddListenerResponse struct {
	APIID int64 `json:"apiId"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// List godoc
// @Summary List live listeners
// @Tags listeners
// @Success 200 {object} ListenersResponse
// @Router /listeners [get]
func (h *ListenerHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, ListenersResponse{Listeners: h.registry.List()})
}

// Add godoc
// @Summary Start listening on an account
// @Tags listeners
// @Param payload body AddListenerRequest true "Session credentials"
// @Success 201 {object} AddListenerResponse
// @Failure 400 {object} echo.HTTPError
// @Failure 401 {object} echo.HTTPError
// @Failure 409 {object} echo.HTTPError
// @Failure 429 {object} echo.HTTPError
// @Failure 502 {object} echo.HTTPError
// @Router /listeners [post]
func (h *ListenerHandler) Add(c echo.Context) error {
	operator, err := auth.Operator(c)
	if err != nil {
		return err
	}
	var req AddListenerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg := listener.SessionConfig{
		APIID:             req.APIID,
		APIHash:           req.APIHash,
		Phone:             req.Phone,
		SessionToken:      req.StringSession,
		TwoFactorPassword: req.Password,
	}
	id, err := h.registry.Add(c.Request().Context(), cfg)
	if err != nil {
		return h.mapError(err)
	}
	h.logger.Info("listener added", slog.Int64("api_id", id), slog.String("operator", operator))
	return c.JSON(http.StatusCreated, AddListenerResponse{APIID: id})
}

// Stop godoc
// @Summary Stop a listener and forget its session
// @Tags listeners
// @Param apiId path int true "API id"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} echo.HTTPError
// @Router /listeners/{apiId} [delete]
func (h *ListenerHandler) Stop(c echo.Context) error {
	operator, err := auth.Operator(c)
	if err != nil {
		return err
	}
	apiID, err := strconv.ParseInt(c.Param("apiId"), 10, 64)
	if err != nil || apiID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid api id")
	}
	if err := h.registry.Stop(c.Request().Context(), apiID); err != nil {
		return h.mapError(err)
	}
	h.logger.Info("listener stopped", slog.Int64("api_id", apiID), slog.String("operator", operator))
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (h *ListenerHandler) mapError(err error) error {
	switch {
	case errors.Is(err, listener.ErrInvalidConfig):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, listener.ErrAlreadyListening):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, listener.ErrCapacityExceeded):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, listener.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, listener.ErrRegistryClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, listener.ErrAuthFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	h.logger.Error("listener request failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
