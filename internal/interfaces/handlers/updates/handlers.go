package updates

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"csx-backend/internal/infrastructure/notify"
	"csx-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const defaultHeartbeat = 25 * time.Second

type Handlers struct {
	Broker    notify.Broker
	Heartbeat time.Duration
}

// Stream GET /api/v1/updates/stream?companyId=
// Server-sent events; each published notify.Event becomes one "event: <type>" frame.
func (h *Handlers) Stream(c *fiber.Ctx) error {
	companyID := c.Query("companyId")
	logger := middleware.Logger(c)
	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, unsubscribe := h.Broker.Subscribe(ctx)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()
		logger.Debug().Str("company_id", companyID).Msg("updates: subscriber attached")
		defer func() { logger.Debug().Msg("updates: subscriber detached") }()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if companyID != "" && ev.CompanyID != companyID {
					continue
				}
				data, err := json.Marshal(ev)
				if err != nil {
					logger.Error().Err(err).Str("event", ev.Type).Msg("updates: encode event")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				// client went away
				return
			}
		}
	}))
	return nil
}
