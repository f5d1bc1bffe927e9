// Package bootstrap builds the app for runtimes that cannot import internal packages directly.
package bootstrap

import (
	"net/http"

	"csx-backend/internal/config"
	"csx-backend/internal/interfaces/router"
	"csx-backend/internal/pkg/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// New loads config, configures logging and builds the Fiber app.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Env, cfg.LogLevel)
	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("env", cfg.Env).
		Bool("database", db != nil).
		Bool("redis", rdb != nil).
		Msg("bootstrap: app ready")
	return app, nil
}

// HTTPHandler is New adapted to net/http.
func HTTPHandler() (http.Handler, error) {
	app, err := New()
	if err != nil {
		return nil, err
	}
	return router.Handler(app), nil
}
