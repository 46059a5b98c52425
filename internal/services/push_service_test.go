package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/oldrefery/summit-backend-sub001/internal/metrics"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeMessages(n int) []models.PushMessage {
	messages := make([]models.PushMessage, n)
	for i := range messages {
		messages[i] = models.PushMessage{Token: fmt.Sprintf("ExponentPushToken[%03d]", i), Title: "t", Body: "b"}
	}
	return messages
}

func tokensOf(messages []models.PushMessage) []string {
	tokens := make([]string, len(messages))
	for i, m := range messages {
		tokens[i] = m.Token
	}
	return tokens
}

// ============================================================================
// Chunking
// ============================================================================

func TestChunkMessages(t *testing.T) {
	tests := []struct {
		n     int
		sizes []int
	}{
		{0, []int{}},
		{1, []int{1}},
		{100, []int{100}},
		{101, []int{100, 1}},
		{250, []int{100, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d messages", tt.n), func(t *testing.T) {
			chunks := chunkMessages(makeMessages(tt.n), models.MaxPushBatch)
			sizes := make([]int, len(chunks))
			for i, c := range chunks {
				sizes[i] = len(c)
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestNewPushService_ClampsChunkSize(t *testing.T) {
	svc := NewPushService(&MockPushGateway{}, nil, nil, PushConfig{ChunkSize: 500}, testLogger(), nil)
	assert.Equal(t, models.MaxPushBatch, svc.config.ChunkSize)
	assert.Equal(t, 1, svc.config.Concurrency)
}

// ============================================================================
// Dispatch
// ============================================================================

func TestPushService_Dispatch_AllDelivered(t *testing.T) {
	var calls atomic.Int32
	gateway := &MockPushGateway{
		SendFunc: func(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
			calls.Add(1)
			assert.LessOrEqual(t, len(messages), models.MaxPushBatch)
			tickets := make([]models.PushTicket, len(messages))
			for i := range tickets {
				tickets[i] = models.PushTicket{Status: "ok"}
			}
			return tickets, nil
		},
	}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewPushService(gateway, nil, nil, PushConfig{Concurrency: 4}, testLogger(), m)

	messages := makeMessages(250)
	result := svc.Dispatch(context.Background(), messages)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, tokensOf(messages), result.Successful)
	assert.Empty(t, result.Failed)
	assert.Equal(t, float64(250), testutil.ToFloat64(m.PushMessages.WithLabelValues("ok")))
}

func TestPushService_Dispatch_ChunkFailureIsIsolated(t *testing.T) {
	gateway := &MockPushGateway{
		SendFunc: func(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
			if messages[0].Token == "ExponentPushToken[100]" {
				return nil, errors.New("gateway timeout")
			}
			tickets := make([]models.PushTicket, len(messages))
			for i := range tickets {
				tickets[i] = models.PushTicket{Status: "ok"}
			}
			return tickets, nil
		},
	}
	svc := NewPushService(gateway, nil, nil, PushConfig{Concurrency: 3}, testLogger(), nil)

	messages := makeMessages(250)
	result := svc.Dispatch(context.Background(), messages)

	assert.Equal(t, append(tokensOf(messages[:100]), tokensOf(messages[200:])...), result.Successful)
	assert.Equal(t, tokensOf(messages[100:200]), result.Failed)
}

func TestPushService_Dispatch_PerMessageErrors(t *testing.T) {
	gateway := &MockPushGateway{
		SendFunc: func(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
			tickets := make([]models.PushTicket, len(messages))
			for i := range tickets {
				tickets[i] = models.PushTicket{Status: "ok"}
				if i%2 == 1 {
					tickets[i] = models.PushTicket{Status: "error", Message: "DeviceNotRegistered"}
				}
			}
			return tickets, nil
		},
	}
	svc := NewPushService(gateway, nil, nil, PushConfig{}, testLogger(), nil)

	result := svc.Dispatch(context.Background(), makeMessages(4))

	assert.Equal(t, []string{"ExponentPushToken[000]", "ExponentPushToken[002]"}, result.Successful)
	assert.Equal(t, []string{"ExponentPushToken[001]", "ExponentPushToken[003]"}, result.Failed)
}

func TestPushService_Dispatch_ShortTicketListFailsRemainder(t *testing.T) {
	gateway := &MockPushGateway{
		SendFunc: func(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
			return []models.PushTicket{{Status: "ok"}}, nil
		},
	}
	svc := NewPushService(gateway, nil, nil, PushConfig{}, testLogger(), nil)

	result := svc.Dispatch(context.Background(), makeMessages(3))

	assert.Equal(t, []string{"ExponentPushToken[000]"}, result.Successful)
	assert.Len(t, result.Failed, 2)
}

func TestPushService_Dispatch_RespectsConcurrencyLimit(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	gateway := &MockPushGateway{
		SendFunc: func(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			defer func() {
				mu.Lock()
				inFlight--
				mu.Unlock()
			}()
			return make([]models.PushTicket, len(messages)), nil
		},
	}
	svc := NewPushService(gateway, nil, nil, PushConfig{ChunkSize: 10, Concurrency: 2}, testLogger(), nil)

	result := svc.Dispatch(context.Background(), makeMessages(95))

	assert.LessOrEqual(t, peak, 2)
	assert.Len(t, result.Failed, 95, "empty tickets are not successes")
}

func TestPushService_Dispatch_Empty(t *testing.T) {
	svc := NewPushService(&MockPushGateway{}, nil, nil, PushConfig{}, testLogger(), nil)

	result := svc.Dispatch(context.Background(), nil)

	assert.NotNil(t, result.Successful)
	assert.NotNil(t, result.Failed)
	assert.Empty(t, result.Successful)
	assert.Empty(t, result.Failed)
}

// ============================================================================
// Broadcast
// ============================================================================

func TestPushService_Broadcast_RecordsHistory(t *testing.T) {
	tokens := &MockPushTokenRepository{
		ListTokensFunc: func(ctx context.Context) ([]string, error) {
			return []string{"a", "b", "c"}, nil
		},
	}
	gateway := &MockPushGateway{
		SendFunc: func(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
			for _, m := range messages {
				assert.Equal(t, "Room change", m.Title)
				assert.Equal(t, "42", m.Data["eventId"])
			}
			return []models.PushTicket{{Status: "ok"}, {Status: "error"}, {Status: "ok"}}, nil
		},
	}
	var recorded *models.NotificationRecord
	history := &MockNotificationRepository{
		CreateFunc: func(ctx context.Context, rec *models.NotificationRecord) error {
			recorded = rec
			return nil
		},
	}
	svc := NewPushService(gateway, tokens, history, PushConfig{}, testLogger(), nil)

	rec, result, err := svc.Broadcast(context.Background(), "Room change", "Keynote moved to Hall B", map[string]string{"eventId": "42"})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, result.Successful)
	assert.Equal(t, []string{"b"}, result.Failed)
	require.Same(t, rec, recorded)
	assert.Equal(t, 2, rec.SuccessCount)
	assert.Equal(t, 1, rec.FailureCount)
	assert.Equal(t, []string{"b"}, rec.FailedTokens)
	assert.False(t, rec.SentAt.IsZero())
}

func TestPushService_Broadcast_NoRecipients(t *testing.T) {
	svc := NewPushService(&MockPushGateway{}, &MockPushTokenRepository{}, &MockNotificationRepository{}, PushConfig{}, testLogger(), nil)

	_, _, err := svc.Broadcast(context.Background(), "t", "b", nil)
	assert.ErrorIs(t, err, models.ErrNoPushRecipients)
}

func TestPushService_Broadcast_HistoryFailureIgnored(t *testing.T) {
	tokens := &MockPushTokenRepository{
		ListTokensFunc: func(ctx context.Context) ([]string, error) { return []string{"a"}, nil },
	}
	history := &MockNotificationRepository{
		CreateFunc: func(ctx context.Context, rec *models.NotificationRecord) error {
			return errors.New("insert failed")
		},
	}
	svc := NewPushService(&MockPushGateway{}, tokens, history, PushConfig{}, testLogger(), nil)

	_, result, err := svc.Broadcast(context.Background(), "t", "b", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Successful)
}

func TestPushService_Broadcast_TokenListError(t *testing.T) {
	tokens := &MockPushTokenRepository{
		ListTokensFunc: func(ctx context.Context) ([]string, error) { return nil, errors.New("db down") },
	}
	svc := NewPushService(&MockPushGateway{}, tokens, &MockNotificationRepository{}, PushConfig{}, testLogger(), nil)

	_, _, err := svc.Broadcast(context.Background(), "t", "b", nil)
	assert.Error(t, err)
}
