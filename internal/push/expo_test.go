package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *ExpoClient {
	return NewExpoClient(config.PushConfig{
		GatewayURL:  url,
		AccessToken: "push-token",
		Timeout:     2 * time.Second,
	}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestExpoClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer push-token", r.Header.Get("Authorization"))

		var messages []models.PushMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&messages))
		require.Len(t, messages, 2)
		assert.Equal(t, "ExponentPushToken[a]", messages[0].Token)
		assert.Equal(t, "7", messages[0].Data["versionId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"t1"},{"status":"error","message":"DeviceNotRegistered"}]}`))
	}))
	defer srv.Close()

	tickets, err := newTestClient(srv.URL).Send(context.Background(), []models.PushMessage{
		{Token: "ExponentPushToken[a]", Title: "New content", Body: "Version 7", Data: map[string]string{"versionId": "7"}},
		{Token: "ExponentPushToken[b]", Title: "New content", Body: "Version 7"},
	})

	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "ok", tickets[0].Status)
	assert.Equal(t, "error", tickets[1].Status)
	assert.Equal(t, "DeviceNotRegistered", tickets[1].Message)
}

func TestExpoClient_RequestErrorFailsBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"VALIDATION_ERROR","message":"bad"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), []models.PushMessage{{Token: "x"}})
	assert.ErrorIs(t, err, ErrGateway)
}

func TestExpoClient_TopLevelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"code":"PUSH_TOO_MANY_EXPERIENCE_IDS","message":"mixed projects"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), []models.PushMessage{{Token: "x"}})
	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorContains(t, err, "PUSH_TOO_MANY_EXPERIENCE_IDS")
}

func TestExpoClient_FailedBatchIsPostedOnce(t *testing.T) {
	for _, status := range []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			tickets, err := newTestClient(srv.URL).Send(context.Background(), []models.PushMessage{{Token: "x"}})

			assert.ErrorIs(t, err, ErrGateway)
			assert.Nil(t, tickets)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestExpoClient_TransportErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), []models.PushMessage{{Token: "x"}})

	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExpoClient_RejectsOversizedBatch(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	_, err := c.Send(context.Background(), make([]models.PushMessage, models.MaxPushBatch+1))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestExpoClient_EmptyBatch(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	tickets, err := c.Send(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}
