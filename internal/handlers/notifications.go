package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
)

// PushService defines the interface for device registration and sends
type PushService interface {
	Broadcast(ctx context.Context, title, body string, data map[string]string) (*models.NotificationRecord, *models.PushResult, error)
	RegisterToken(ctx context.Context, token, platform string) (*models.PushToken, error)
	UnregisterToken(ctx context.Context, token string) error
	History(ctx context.Context, limit int) ([]*models.NotificationRecord, error)
}

// NotificationHandler serves push token registration and notification sends
type NotificationHandler struct {
	service PushService
}

func NewNotificationHandler(service PushService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// RegisterTokenRequest represents the request body for device registration
type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required,max=255"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android web"`
}

// SendNotificationRequest represents the request body for a broadcast
type SendNotificationRequest struct {
	Title string            `json:"title" validate:"required,max=100"`
	Body  string            `json:"body" validate:"required,max=1000"`
	Data  map[string]string `json:"data" validate:"omitempty,max=20"`
}

// SendNotificationResponse partitions the recipients by outcome
type SendNotificationResponse struct {
	ID         string   `json:"id"`
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
}

// ListNotificationsResponse represents the send history
type ListNotificationsResponse struct {
	Notifications []*models.NotificationRecord `json:"notifications"`
}

// RegisterToken handles POST /push-tokens
func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	token, err := h.service.RegisterToken(r.Context(), req.Token, req.Platform)
	if err != nil {
		pkghttp.WriteInternalError(w, msgInternalError)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, token)
}

// UnregisterToken handles DELETE /push-tokens/{token}
func (h *NotificationHandler) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	err := h.service.UnregisterToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		pkghttp.WriteInternalError(w, msgInternalError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send handles POST /notifications
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rec, result, err := h.service.Broadcast(r.Context(), req.Title, req.Body, req.Data)
	if err != nil {
		if errors.Is(err, models.ErrNoPushRecipients) {
			pkghttp.WriteError(w, http.StatusUnprocessableEntity, "no_recipients", "No devices are registered for notifications")
			return
		}
		pkghttp.WriteInternalError(w, msgInternalError)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SendNotificationResponse{
		ID:         rec.ID,
		Successful: result.Successful,
		Failed:     result.Failed,
	})
}

// List handles GET /notifications?limit=N
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			pkghttp.WriteBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.service.History(r.Context(), limit)
	if err != nil {
		pkghttp.WriteInternalError(w, msgInternalError)
		return
	}
	if records == nil {
		records = []*models.NotificationRecord{}
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListNotificationsResponse{Notifications: records})
}
