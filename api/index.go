package handler

import (
	"net/http"
	"sync"

	"csx-backend/bootstrap"

	"github.com/rs/zerolog/log"
)

var (
	once    sync.Once
	app     http.Handler
	initErr error
)

// Handler is the Vercel serverless entry point; every request is rewritten here.
// The app is built on the first request; if that fails every request answers 503.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		app, initErr = bootstrap.HTTPHandler()
		if initErr != nil {
			log.Error().Err(initErr).Msg("serverless: app create failed")
		}
	})
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","error":{"message":"Service unavailable","statusCode":503}}`))
		return
	}
	r.RequestURI = r.URL.String()
	app.ServeHTTP(w, r)
}
