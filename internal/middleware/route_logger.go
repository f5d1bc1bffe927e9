package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RouteLogger logs one line per request once the chain has run, so the caller set by
// Authenticate is visible. Client errors log at info, server errors at warn.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		var ev *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = log.Warn().Err(err)
		case c.Path() == "/health/json" || c.Path() == "/metrics":
			ev = log.Debug()
		default:
			ev = log.Info()
		}
		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		ev = ev.Str("trace_id", traceID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("took", time.Since(start))
		if caller := GetCaller(c); caller != nil {
			ev = ev.Str("account_id", caller.AccountID.String()).Str("role", caller.Role)
		}
		ev.Msg("request")
		return err
	}
}
