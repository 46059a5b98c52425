package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oldrefery/summit-backend-sub001/internal/handlers"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSendNotification(t *testing.T) {
	svc := &handlers.MockPushService{
		BroadcastFunc: func(ctx context.Context, title, body string, data map[string]string) (*models.NotificationRecord, *models.PushResult, error) {
			assert.Equal(t, "Room change", title)
			assert.Equal(t, "42", data["eventId"])
			return &models.NotificationRecord{ID: "n1"}, &models.PushResult{
				Successful: []string{"a", "c"},
				Failed:     []string{"b"},
			}, nil
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/api/notifications", handlers.SendNotificationRequest{
		Title: "Room change",
		Body:  "Keynote moved to Hall B",
		Data:  map[string]string{"eventId": "42"},
	})
	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(svc).Send(w, req)

	var resp handlers.SendNotificationResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "n1", resp.ID)
	assert.Equal(t, []string{"a", "c"}, resp.Successful)
	assert.Equal(t, []string{"b"}, resp.Failed)
}

func TestSendNotification_Validation(t *testing.T) {
	req := handlers.NewTestRequest(t, "POST", "/api/notifications", handlers.SendNotificationRequest{Body: "no title"})
	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(&handlers.MockPushService{}).Send(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestSendNotification_NoRecipients(t *testing.T) {
	req := handlers.NewTestRequest(t, "POST", "/api/notifications", handlers.SendNotificationRequest{Title: "t", Body: "b"})
	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(&handlers.MockPushService{}).Send(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, "no_recipients")
}

func TestRegisterToken(t *testing.T) {
	req := handlers.NewTestRequest(t, "POST", "/api/push-tokens", handlers.RegisterTokenRequest{
		Token:    "ExponentPushToken[abc]",
		Platform: "ios",
	})
	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(&handlers.MockPushService{}).RegisterToken(w, req)

	var token models.PushToken
	handlers.AssertJSONResponse(t, w, http.StatusOK, &token)
	assert.Equal(t, "ExponentPushToken[abc]", token.Token)
}

func TestRegisterToken_BadPlatform(t *testing.T) {
	req := handlers.NewTestRequest(t, "POST", "/api/push-tokens", handlers.RegisterTokenRequest{Token: "t", Platform: "symbian"})
	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(&handlers.MockPushService{}).RegisterToken(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestUnregisterToken_MissingIsNoContent(t *testing.T) {
	svc := &handlers.MockPushService{
		UnregisterTokenFunc: func(ctx context.Context, token string) error { return models.ErrNotFound },
	}
	req := handlers.WithURLParams(httptest.NewRequest("DELETE", "/api/push-tokens/x", nil), map[string]string{"token": "x"})
	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(svc).UnregisterToken(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestListNotifications(t *testing.T) {
	var gotLimit int
	svc := &handlers.MockPushService{
		HistoryFunc: func(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	h := handlers.NewNotificationHandler(svc)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/notifications?limit=10", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, gotLimit)
	assert.JSONEq(t, `{"notifications":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/notifications?limit=abc", nil))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestListNotifications_Error(t *testing.T) {
	svc := &handlers.MockPushService{
		HistoryFunc: func(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
			return nil, errors.New("db down")
		},
	}
	w := httptest.NewRecorder()
	handlers.NewNotificationHandler(svc).List(w, httptest.NewRequest("GET", "/api/notifications", nil))
	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}
