// Package handlers exposes order submission, status polling and the admin
// override over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/pipeline"
	"studio/internal/status"
)

// Orders is the lifecycle surface the handlers drive.
type Orders interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (pipeline.Submission, error)
	MarkCompleted(ctx context.Context, orderID, secret string) (domain.Order, error)
}

// StatusReader answers polling requests.
type StatusReader interface {
	StatusOf(ctx context.Context, orderID string) (status.View, error)
}

type App struct {
	Orders Orders
	Status StatusReader
	Logger infra.Logger
}

func NewApp(orders Orders, statuses StatusReader, logger *infra.Logger) *App {
	return &App{Orders: orders, Status: statuses, Logger: *infra.OrDiscard(logger)}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, code int, kind, key string, detail string) {
	a.json(w, code, errorResponse{
		Error:   kind,
		Message: printer(r).Sprintf(key),
		Detail:  detail,
	})
}

// fail maps a domain error to its HTTP status and writes it.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, kind, key := statusFor(err)
	detail := ""
	if code < http.StatusInternalServerError {
		detail = err.Error()
	} else {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("handlers: request failed")
	}
	a.error(w, r, code, kind, key, detail)
}

func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden, "quota_exceeded", msgQuotaExceeded
	case errors.Is(err, domain.ErrPolicyViolation):
		return http.StatusBadRequest, "policy_violation", msgPolicyViolation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", msgNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "forbidden", msgForbidden
	default:
		return http.StatusInternalServerError, "internal", msgInternal
	}
}
