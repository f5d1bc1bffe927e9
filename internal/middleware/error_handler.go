package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"csx-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const errorLogSize = 50

// ErrorHandler returns the global error handler. Fiber errors keep their code, domain errors are
// mapped by response.FromError, anything else is a 500 recorded in the health error log.
func ErrorHandler(rdb *redis.Client) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return response.Error(c, fe.Message, fe.Code, nil)
		}
		status := response.StatusOf(err)
		if status >= fiber.StatusInternalServerError {
			Logger(c).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
			recordError(rdb, c, err)
		}
		return response.FromError(c, err)
	}
}

func recordError(rdb *redis.Client, c *fiber.Ctx, err error) {
	if rdb == nil {
		return
	}
	entry, _ := json.Marshal(map[string]interface{}{
		"time":     time.Now().UTC(),
		"path":     c.OriginalURL(),
		"method":   c.Method(),
		"message":  err.Error(),
		"trace_id": GetTraceID(c),
	})
	ctx := context.Background()
	_ = rdb.LPush(ctx, KeyErrorLog, entry).Err()
	_ = rdb.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1).Err()
}
