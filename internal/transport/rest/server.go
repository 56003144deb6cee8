package rest

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServerConfig struct {
	RequestTimeout time.Duration
}

// NewEcho assembles the REST surface: middleware, scheduling routes under /v1 and the
// health endpoints.
func NewEcho(h *Handler, log *slog.Logger, cfg ServerConfig, checks ...ReadyCheck) *echo.Echo {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware("slotkeeper.http")))
	e.Use(Recovery(log))
	e.Use(RequestID())
	e.Use(Logger(log))
	e.Use(RequestTimeout(cfg.RequestTimeout))

	e.GET("/healthz", healthz)
	e.GET("/readyz", readyz(checks))

	h.RegisterRoutes(e.Group("/v1"))
	return e
}
