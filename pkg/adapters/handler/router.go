package handler

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService, log logrus.FieldLogger) http.Handler {
	h := NewHTTPHandler(service, cfg.BaseURL, log)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/shorten", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/stats/{short_code}", h.Stats).Methods(http.MethodGet)

	// Must stay last: it matches every single-segment path.
	r.HandleFunc("/{short_code}", h.Redirect).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	middlewares := []func(http.Handler) http.Handler{cors, AccessLog(log)}
	// X-Forwarded-For is client controlled unless a proxy overwrites it.
	if cfg.TrustProxy {
		middlewares = append(middlewares, handlers.ProxyHeaders)
	}
	middlewares = append(middlewares,
		handlers.RecoveryHandler(handlers.RecoveryLogger(log), handlers.PrintRecoveryStack(true)),
	)
	return Chain(r, middlewares...)
}
