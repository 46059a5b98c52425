package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// ErrGateway is returned when a whole batch is rejected by the push gateway
var ErrGateway = errors.New("push gateway request failed")

type sendResponse struct {
	Data   []models.PushTicket `json:"data"`
	Errors []gatewayError      `json:"errors"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExpoClient sends batches to an Expo-compatible push endpoint
type ExpoClient struct {
	client *resty.Client
	url    string
	logger *slog.Logger
}

// NewExpoClient builds a client that posts each batch exactly once. A push
// POST is not idempotent, so a failed batch is reported and never re-sent.
func NewExpoClient(cfg config.PushConfig, logger *slog.Logger) *ExpoClient {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.AccessToken != "" {
		client.SetAuthToken(cfg.AccessToken)
	}

	return &ExpoClient{client: client, url: cfg.GatewayURL, logger: logger}
}

// Send posts one batch of at most models.MaxPushBatch messages. Tickets are
// returned in message order.
func (c *ExpoClient) Send(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
	if len(messages) == 0 {
		return []models.PushTicket{}, nil
	}
	if len(messages) > models.MaxPushBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d messages", ErrGateway, len(messages), models.MaxPushBatch)
	}

	var out sendResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(messages).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode(), resp.String())
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrGateway, out.Errors[0].Code, out.Errors[0].Message)
	}
	if len(out.Data) != len(messages) {
		c.logger.Warn("push gateway returned unexpected ticket count",
			slog.Int("messages", len(messages)),
			slog.Int("tickets", len(out.Data)))
	}

	return out.Data, nil
}
