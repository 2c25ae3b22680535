package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlink/pkg/logging"
)

var (
	mux     http.Handler
	service *services.LinkService
)

func init() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// Note: On Vercel the local filesystem is ephemeral; point STORE_BACKEND
	// at libsql, postgres or redis for anything beyond a demo.
	store, err := repository.Open(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}

	service = services.NewLinkService(store, services.Options{
		CodeLength:   cfg.CodeLength,
		MaxRetries:   cfg.MaxRetries,
		ClickTimeout: cfg.ClickTimeout,
	}, log)
	mux = handler.NewRouter(cfg, service, log)
}

// Handler is the entrypoint for Vercel. The instance may be frozen as soon
// as Handler returns, so pending click increments are flushed first.
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
	service.Wait()
}
