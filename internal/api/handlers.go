package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"

	"github.com/roach88/taskq/internal/auth"
	"github.com/roach88/taskq/internal/task"
)

// CreateTaskResponse is the body of a successful create.
type CreateTaskResponse struct {
	TaskID string `json:"taskId"`
}

// PingResponse is the body of the liveness endpoint.
type PingResponse struct {
	Alive  bool    `json:"alive"`
	Uptime float64 `json:"uptime"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")

	creds, err := h.credentials(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var def task.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, r, errors.NewValidation("request body too large", errors.FieldError{
				Field:   "body",
				Message: "exceeds limit",
				Value:   tooLarge.Limit,
			}))
			return
		}
		h.respondWithError(w, r, errors.NewValidation("invalid JSON payload", errors.FieldError{
			Field:   "body",
			Message: err.Error(),
		}))
		return
	}

	if _, _, err := h.service.CreateTask(r.Context(), creds, taskID, def); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, CreateTaskResponse{TaskID: taskID})
}

// task serves a stored definition. The Authorization header is ignored.
func (h *Handler) task(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.TaskBody(r.Context(), r.PathValue("taskId"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("write response failed", "error", err)
	}
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, PingResponse{
		Alive:  true,
		Uptime: time.Since(h.started).Seconds(),
	})
}

// credentials resolves the bearer token. No header, or no configured
// clients, means anonymous. An unknown token is an authentication error.
func (h *Handler) credentials(r *http.Request) (auth.Credentials, error) {
	header := r.Header.Get("Authorization")
	if header == "" || h.clients == nil {
		return auth.Credentials{ClientID: auth.Anonymous}, nil
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return auth.Credentials{}, errors.New("unsupported authorization scheme", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode("AUTHENTICATION_FAILED")
	}

	creds, ok := h.clients.Lookup(strings.TrimSpace(token))
	if !ok {
		return auth.Credentials{}, errors.New("unknown access token", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode("AUTHENTICATION_FAILED")
	}
	return creds, nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response failed", "error", err)
	}
}
