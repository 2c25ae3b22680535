package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

// Chain wraps h so that the last middleware listed runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// AccessLog logs one entry per request through logrus.
func AccessLog(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
			log.WithFields(logrus.Fields{
				"method":   p.Request.Method,
				"path":     p.URL.Path,
				"status":   p.StatusCode,
				"size":     p.Size,
				"remote":   p.Request.RemoteAddr,
				"duration": time.Since(p.TimeStamp),
			}).Info("request")
		})
	}
}
