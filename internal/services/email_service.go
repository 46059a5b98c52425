package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	appconfig "github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// sesAPI is the subset of *ses.Client used to send mail
type sesAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESPublishNotifier e-mails the configured recipients when a version is
// published
type SESPublishNotifier struct {
	sesClient    sesAPI
	fromAddress  string
	recipients   []string
	dashboardURL string
	logger       *slog.Logger
}

// NewSESPublishNotifier returns nil when no recipients are configured
func NewSESPublishNotifier(ctx context.Context, cfg appconfig.EmailConfig, logger *slog.Logger) (*SESPublishNotifier, error) {
	if len(cfg.NotifyEmails) == 0 {
		return nil, nil
	}
	if cfg.FromAddress == "" {
		return nil, errors.New("EMAIL_FROM_ADDRESS is required when PUBLISH_NOTIFY_EMAILS is set")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESPublishNotifier(ses.NewFromConfig(awsCfg), cfg, logger), nil
}

func newSESPublishNotifier(client sesAPI, cfg appconfig.EmailConfig, logger *slog.Logger) *SESPublishNotifier {
	return &SESPublishNotifier{
		sesClient:    client,
		fromAddress:  cfg.FromAddress,
		recipients:   cfg.NotifyEmails,
		dashboardURL: strings.TrimSuffix(cfg.DashboardURL, "/"),
		logger:       logger,
	}
}

func changeSummary(changes models.ChangeCounters) string {
	lines := make([]string, 0, len(changes))
	for table, n := range changes {
		if n > 0 {
			lines = append(lines, fmt.Sprintf("  %s: %d", table, n))
		}
	}
	if len(lines) == 0 {
		return "  no changes"
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// NotifyPublished sends one e-mail listing the per-table change counts
func (s *SESPublishNotifier) NotifyPublished(ctx context.Context, v *models.Version) error {
	if s == nil {
		return nil
	}

	textBody := fmt.Sprintf(`Version %s was published at %s.

Changes since the previous version:
%s

Snapshot: %s
`, v.Version, v.PublishedAt.Format("2006-01-02 15:04 MST"), changeSummary(v.Changes), v.FileURL)
	if s.dashboardURL != "" {
		textBody += fmt.Sprintf("Dashboard: %s/versions\n", s.dashboardURL)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Summit content version %s published", v.Version)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send publish notification: %w", err)
	}

	s.logger.Info("publish notification sent",
		slog.String("version", v.Version),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
