package middleware

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"csx-backend/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(rdb)})
	app.Get("/domain", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: listing x", domain.ErrNotFound)
	})
	app.Get("/fiber", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("db exploded")
	})

	status, out := send(t, app, "GET", "/domain", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not found: listing x", out["error"].(map[string]interface{})["message"])

	status, out = send(t, app, "GET", "/fiber", nil)
	assert.Equal(t, fiber.StatusTeapot, status)
	assert.Equal(t, "short and stout", out["error"].(map[string]interface{})["message"])

	status, _ = send(t, app, "GET", "/nowhere", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, out = send(t, app, "GET", "/boom", nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", out["error"].(map[string]interface{})["message"])

	entries, err := rdb.LRange(context.Background(), KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "db exploded")
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".csx.example", DevPassword: "letmein"}))
	app.Get("/x", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	status, _ := send(t, app, "GET", "/x", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = send(t, app, "GET", "/x", map[string]string{"Origin": "https://app.csx.example"})
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = send(t, app, "GET", "/x", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, fiber.StatusOK, status)

	status, out := send(t, app, "GET", "/x", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Not allowed by CORS", out["error"].(map[string]interface{})["message"])

	status, _ = send(t, app, "GET", "/x", map[string]string{"Origin": "https://evil.example", "dev-password": "letmein"})
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = send(t, app, "OPTIONS", "/x", map[string]string{"Origin": "https://app.csx.example"})
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestTracing(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	inbound := uuid.NewString()
	req := newRequest("GET", "/x", map[string]string{traceIDHeader: inbound})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, inbound, resp.Header.Get(traceIDHeader))

	resp, err = app.Test(newRequest("GET", "/x", map[string]string{traceIDHeader: "not-a-uuid"}))
	require.NoError(t, err)
	generated := resp.Header.Get(traceIDHeader)
	assert.NotEqual(t, "not-a-uuid", generated)
	_, err = uuid.Parse(generated)
	assert.NoError(t, err)

	bare := fiber.New()
	bare.Get("/x", func(c *fiber.Ctx) error {
		if Logger(c) == nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusOK)
	})
	resp, err = bare.Test(newRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthMarker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Use(Tracing())
	app.Use(HealthMarker(rdb))
	app.Get("/listings/:id", func(c *fiber.Ctx) error { return c.SendString(c.Params("id")) })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	send(t, app, "GET", "/listings/"+uuid.NewString(), nil)
	send(t, app, "GET", "/listings/"+uuid.NewString(), nil)
	send(t, app, "GET", "/boom", nil)
	send(t, app, "GET", "/nowhere", nil)
	send(t, app, "GET", "/health/json", nil)

	ctx := context.Background()
	total, _ := rdb.Get(ctx, KeyReqTotal).Int()
	assert.Equal(t, 4, total)
	errs, _ := rdb.Get(ctx, KeyReqErrors).Int()
	assert.Equal(t, 1, errs)

	hits, err := rdb.HGetAll(ctx, KeyRouteHits).Result()
	require.NoError(t, err)
	assert.Equal(t, "2", hits["GET /listings/:id"])
	assert.Equal(t, "1", hits["GET /boom"])
	assert.Equal(t, "1", hits["GET unmatched"])

	last, err := rdb.Get(ctx, KeyLastReq).Result()
	require.NoError(t, err)
	assert.Contains(t, last, `"status":404`)
	assert.Contains(t, last, `"trace_id"`)
}
