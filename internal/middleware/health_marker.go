package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis keys for request counters, read back by the health service and cleared by /reset.
const (
	KeyReqTotal  = "health:global:req_total"
	KeyReqErrors = "health:global:req_errors"
	KeyResTime   = "health:global:res_time_total"
	KeyResCount  = "health:global:res_count"
	KeyStartTime = "health:global:start_time"
	KeyLastReq   = "health:global:last_request"
	KeyErrorLog  = "health:global:error_log"
	KeyRouteHits = "health:global:route_hits"
)

// StatKeys lists every counter key written by HealthMarker and ErrorHandler.
var StatKeys = []string{KeyReqTotal, KeyReqErrors, KeyResTime, KeyResCount, KeyStartTime, KeyLastReq, KeyErrorLog, KeyRouteHits}

func skipStats(path string) bool {
	return path == "/" ||
		strings.HasPrefix(path, "/health") ||
		strings.HasPrefix(path, "/metrics") ||
		strings.HasPrefix(path, "/favicon") ||
		strings.HasSuffix(path, "/updates/stream")
}

// HealthMarker records per-request counters in Redis after the handler chain finishes.
// Hits are bucketed by route template ("GET /api/v1/credits/listings/:id") so ids don't
// blow up the hash. Writes go out in one pipeline; Redis failures never fail the request.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipStats(c.Path()) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := "unmatched"
		if r := c.Route(); r != nil && status != fiber.StatusNotFound {
			route = r.Path
		}

		last, _ := json.Marshal(map[string]interface{}{
			"time":     start.UTC(),
			"ip":       c.IP(),
			"path":     c.OriginalURL(),
			"method":   c.Method(),
			"status":   status,
			"ms":       elapsed.Milliseconds(),
			"trace_id": GetTraceID(c),
		})

		ctx := context.Background()
		_, perr := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.Incr(ctx, KeyReqTotal)
			p.Incr(ctx, KeyResCount)
			p.IncrByFloat(ctx, KeyResTime, float64(elapsed.Milliseconds()))
			p.HIncrBy(ctx, KeyRouteHits, c.Method()+" "+route, 1)
			p.Set(ctx, KeyLastReq, last, 0)
			if status >= fiber.StatusInternalServerError {
				p.Incr(ctx, KeyReqErrors)
			}
			return nil
		})
		if perr != nil {
			log.Debug().Err(perr).Msg("health marker: redis write failed")
		}
		return err
	}
}
