// Package api exposes the queue service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/goliatone/go-logger/glog"

	"github.com/roach88/taskq/internal/auth"
	"github.com/roach88/taskq/internal/logging"
	"github.com/roach88/taskq/internal/queue"
)

// BasePath prefixes every route.
const BasePath = "/api/queue/v1"

// maxBodySize bounds create-task request bodies.
const maxBodySize = 5 * 1024 * 1024

// Handler serves the queue API.
type Handler struct {
	service *queue.Service
	clients *auth.Clients
	logger  glog.Logger
	started time.Time
}

// NewHandler returns a handler for service. clients resolves bearer tokens;
// with nil clients every caller is anonymous.
func NewHandler(service *queue.Service, clients *auth.Clients, logger glog.Logger) *Handler {
	return &Handler{
		service: service,
		clients: clients,
		logger:  logging.OrNop(logger),
		started: time.Now(),
	}
}

// Routes returns the router with middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT "+BasePath+"/task/{taskId}", h.createTask)
	mux.HandleFunc("GET "+BasePath+"/task/{taskId}", h.task)
	mux.HandleFunc("GET "+BasePath+"/ping", h.ping)

	return LoggingMiddleware(h.logger)(mux)
}
