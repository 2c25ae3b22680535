package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	service ports.LinkService
	baseURL string
	log     logrus.FieldLogger
}

func NewHTTPHandler(service ports.LinkService, baseURL string, log logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{service: service, baseURL: baseURL, log: log}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	URL         string `json:"url"`
	CustomAlias string `json:"custom_alias,omitempty"`
}

// CreateLinkResponse is returned on a successful create.
type CreateLinkResponse struct {
	Success     bool      `json:"success"`
	ShortURL    string    `json:"short_url"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m, err := h.service.Create(r.Context(), ports.CreateRequest{
		OriginalURL: req.URL,
		CustomAlias: req.CustomAlias,
		ClientIP:    clientIP(r),
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.WithError(err).Error("create short link failed")
		}
		writeError(w, status, messageFor(err))
		return
	}

	writeJSON(w, http.StatusOK, CreateLinkResponse{
		Success:     true,
		ShortURL:    h.baseURL + "/" + m.ShortCode,
		ShortCode:   m.ShortCode,
		OriginalURL: m.OriginalURL,
		CreatedAt:   m.CreatedAt,
	})
}

// Redirect to original URL
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["short_code"]

	res, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		h.log.WithError(err).WithField("short_code", code).Error("resolve failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !res.Hit {
		h.renderNotFound(w, code)
		return
	}

	http.Redirect(w, r, res.OriginalURL, http.StatusFound)
}

// Get Stats for a Link
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["short_code"]

	stats, err := h.service.Stats(r.Context(), code)
	if err != nil {
		h.log.WithError(err).WithField("short_code", code).Error("stats failed")
		writeError(w, http.StatusInternalServerError, messageFor(err))
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "Short code not found")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health reports whether the store answers a trivial read.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.service.StoreHealthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"store":  "unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"store":  "ok",
	})
}

// NotFound handles paths no route matches.
func (h *HTTPHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderNotFound(w, "")
}

var notFoundPage = template.Must(template.New("not_found").Parse(`<!DOCTYPE html>
<html>
<head><title>Link not found</title></head>
<body>
<h1>Link not found</h1>
{{if .}}<p>The short link <code>{{.}}</code> does not exist or is no longer active.</p>
{{else}}<p>The page you requested does not exist.</p>
{{end}}</body>
</html>
`))

func (h *HTTPHandler) renderNotFound(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := notFoundPage.Execute(w, code); err != nil {
		h.log.WithError(err).Warn("render not found page")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrInvalidAlias):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAliasTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageFor keeps driver detail out of responses.
func messageFor(err error) string {
	for _, known := range []error{
		domain.ErrInvalidURL,
		domain.ErrInvalidAlias,
		domain.ErrAliasTaken,
		domain.ErrExhaustedRetries,
		domain.ErrStoreUnavailable,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// clientIP expects RemoteAddr to have been rewritten from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
