package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	traceIDHeader = "X-Trace-Id"
	traceIDLocal  = "trace_id"
	loggerLocal   = "logger"
)

// Tracing tags the request with a trace ID (echoed in X-Trace-Id) and a child logger
// carrying it. An inbound X-Trace-Id is kept when it is a UUID.
func Tracing() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(traceIDHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.New().String()
		}
		c.Locals(traceIDLocal, traceID)
		l := log.With().Str("trace_id", traceID).Logger()
		c.Locals(loggerLocal, &l)
		c.Set(traceIDHeader, traceID)
		return c.Next()
	}
}

// GetTraceID returns the trace ID from context.
func GetTraceID(c *fiber.Ctx) string {
	if id, ok := c.Locals(traceIDLocal).(string); ok {
		return id
	}
	return ""
}

// Logger returns the request logger set by Tracing, or the global logger.
func Logger(c *fiber.Ctx) *zerolog.Logger {
	if l, ok := c.Locals(loggerLocal).(*zerolog.Logger); ok {
		return l
	}
	return &log.Logger
}
