package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/pipeline"
)

// AdminSecretHeader carries the operator secret for the manual override.
const AdminSecretHeader = "X-Admin-Secret"

type generateRequest struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Plan      string `json:"plan"`
	Prompt    string `json:"prompt"`
	Duration  int    `json:"duration"`
	VoiceText string `json:"voiceText"`
	// Older clients send the snake_case key.
	VoiceTextLegacy string `json:"voice_text"`
}

func (req generateRequest) voiceText() string {
	if req.VoiceText != "" {
		return req.VoiceText
	}
	return req.VoiceTextLegacy
}

type generateResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	ResultURL string `json:"resultUrl,omitempty"`
	Message   string `json:"message,omitempty"`
}

type markCompletedResponse struct {
	OK      bool   `json:"ok"`
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgBadRequest, "invalid payload")
		return
	}
	sub, err := a.Orders.Submit(r.Context(), pipeline.SubmitRequest{
		UserID:    req.UserID,
		Email:     req.Email,
		Plan:      req.Plan,
		Prompt:    req.Prompt,
		Duration:  req.Duration,
		VoiceText: req.voiceText(),
		Country:   middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, generateResponse{
		OrderID: sub.OrderID,
		Status:  string(sub.Status),
		Message: printer(r).Sprintf(msgAccepted),
	})
}

func (a *App) OrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	view, err := a.Status.StatusOf(r.Context(), orderID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p := printer(r)
	resp := statusResponse{OrderID: view.OrderID, Status: string(view.Status)}
	switch view.Status {
	case domain.OrderStatusPending:
		resp.Message = p.Sprintf(msgPending)
	case domain.OrderStatusProcessing:
		resp.Message = p.Sprintf(msgProcessing)
	case domain.OrderStatusCompleted:
		resp.ResultURL = view.ResultLocation
		resp.Message = p.Sprintf(msgCompleted)
	case domain.OrderStatusFailed:
		resp.Message = p.Sprintf(msgFailed, view.FailureReason)
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := a.Orders.MarkCompleted(r.Context(), orderID, r.Header.Get(AdminSecretHeader))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, markCompletedResponse{
		OK:      true,
		OrderID: order.ID,
		Status:  string(order.Status),
	})
}
