package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/metrics"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"golang.org/x/sync/errgroup"
)

// PushGateway delivers one batch of messages. The returned tickets are in
// message order; an error means the whole batch failed.
type PushGateway interface {
	Send(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error)
}

// PushTokenRepository stores registered devices
type PushTokenRepository interface {
	Upsert(ctx context.Context, token, platform string) (*models.PushToken, error)
	Delete(ctx context.Context, token string) error
	ListTokens(ctx context.Context) ([]string, error)
}

// NotificationRepository stores the send history
type NotificationRepository interface {
	Create(ctx context.Context, rec *models.NotificationRecord) error
	List(ctx context.Context, limit int) ([]*models.NotificationRecord, error)
}

// PushConfig holds configuration for batch dispatch
type PushConfig struct {
	ChunkSize   int
	Concurrency int
}

// PushService splits messages into gateway-sized chunks and sends them
// concurrently. A failed chunk fails only its own messages.
type PushService struct {
	gateway       PushGateway
	tokens        PushTokenRepository
	notifications NotificationRepository
	config        PushConfig
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewPushService(
	gateway PushGateway,
	tokens PushTokenRepository,
	notifications NotificationRepository,
	config PushConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) *PushService {
	if config.ChunkSize <= 0 || config.ChunkSize > models.MaxPushBatch {
		config.ChunkSize = models.MaxPushBatch
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &PushService{
		gateway:       gateway,
		tokens:        tokens,
		notifications: notifications,
		config:        config,
		logger:        logger,
		metrics:       m,
		now:           time.Now,
	}
}

func chunkMessages(messages []models.PushMessage, size int) [][]models.PushMessage {
	chunks := make([][]models.PushMessage, 0, (len(messages)+size-1)/size)
	for start := 0; start < len(messages); start += size {
		end := start + size
		if end > len(messages) {
			end = len(messages)
		}
		chunks = append(chunks, messages[start:end])
	}
	return chunks
}

// Dispatch sends every message and partitions the tokens by outcome. Both
// lists keep the order of the input.
func (s *PushService) Dispatch(ctx context.Context, messages []models.PushMessage) *models.PushResult {
	chunks := chunkMessages(messages, s.config.ChunkSize)
	outcomes := make([][]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	var logMu sync.Mutex
	for i, chunk := range chunks {
		g.Go(func() error {
			ok := make([]bool, len(chunk))
			outcomes[i] = ok

			tickets, err := s.gateway.Send(gctx, chunk)
			if err != nil {
				logMu.Lock()
				s.logger.Error("push chunk failed",
					slog.Int("chunk", i),
					slog.Int("messages", len(chunk)),
					slog.Any("error", err))
				logMu.Unlock()
				return nil
			}

			for j := range chunk {
				ok[j] = j < len(tickets) && tickets[j].Status == "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &models.PushResult{Successful: []string{}, Failed: []string{}}
	for i, chunk := range chunks {
		for j, msg := range chunk {
			if outcomes[i][j] {
				result.Successful = append(result.Successful, msg.Token)
			} else {
				result.Failed = append(result.Failed, msg.Token)
			}
		}
	}

	s.metrics.PushDelivered(len(result.Successful), len(result.Failed))
	return result
}

// Broadcast sends one notification to every registered token and records it
// in the history
func (s *PushService) Broadcast(ctx context.Context, title, body string, data map[string]string) (*models.NotificationRecord, *models.PushResult, error) {
	tokens, err := s.tokens.ListTokens(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(tokens) == 0 {
		return nil, nil, models.ErrNoPushRecipients
	}

	messages := make([]models.PushMessage, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, models.PushMessage{Token: token, Title: title, Body: body, Data: data})
	}

	result := s.Dispatch(ctx, messages)

	rec := &models.NotificationRecord{
		Title:        title,
		Body:         body,
		Data:         data,
		SentAt:       s.now().UTC(),
		SuccessCount: len(result.Successful),
		FailureCount: len(result.Failed),
		FailedTokens: result.Failed,
	}
	if err := s.notifications.Create(ctx, rec); err != nil {
		s.logger.Error("failed to record notification", slog.Any("error", err))
	}

	s.logger.Info("notification sent",
		slog.Int("successful", rec.SuccessCount),
		slog.Int("failed", rec.FailureCount))
	return rec, result, nil
}

func (s *PushService) RegisterToken(ctx context.Context, token, platform string) (*models.PushToken, error) {
	return s.tokens.Upsert(ctx, token, platform)
}

func (s *PushService) UnregisterToken(ctx context.Context, token string) error {
	return s.tokens.Delete(ctx, token)
}

func (s *PushService) History(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
	return s.notifications.List(ctx, limit)
}
