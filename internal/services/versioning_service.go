package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oldrefery/summit-backend-sub001/internal/metrics"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/oldrefery/summit-backend-sub001/internal/repositories"
	pkglogger "github.com/oldrefery/summit-backend-sub001/pkg/logger"
)

// VersionStore is the persistence used by the versioning service
type VersionStore interface {
	RunLocked(ctx context.Context, lockKey int64, fn func(ctx context.Context, tx repositories.VersionTx) error) error
	List(ctx context.Context) ([]*models.Version, error)
	GetByLabel(ctx context.Context, label string) (*models.Version, error)
	Delete(ctx context.Context, id string) (*models.Version, error)
}

// ChangeReader reads the current change counters
type ChangeReader interface {
	GetChanges(ctx context.Context) (models.ChangeCounters, error)
}

// ArtifactStore holds the serialized snapshot of each version
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// PublishNotifier is told about every successful publish
type PublishNotifier interface {
	NotifyPublished(ctx context.Context, v *models.Version) error
}

// VersioningConfig holds configuration for publishing
type VersioningConfig struct {
	LockKey        int64
	KeyPrefix      string
	NotifyTimeout  time.Duration
	CleanupTimeout time.Duration
}

// VersionListItem is a version as listed to operators
type VersionListItem struct {
	*models.Version
	Latest bool `json:"latest"`
}

// VersioningService publishes, lists, rolls back and deletes versions.
// Publish, rollback and delete never run concurrently within a process; the
// advisory lock extends that to every instance sharing the database.
type VersioningService struct {
	versions    VersionStore
	changes     ChangeReader
	artifacts   ArtifactStore
	notifier    PublishNotifier
	config      VersioningConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	metrics     *metrics.Metrics
	sem         chan struct{}
	now         func() time.Time
}

// NewVersioningService creates a new VersioningService. notifier may be nil.
func NewVersioningService(
	versions VersionStore,
	changes ChangeReader,
	artifacts ArtifactStore,
	notifier PublishNotifier,
	config VersioningConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	m *metrics.Metrics,
) *VersioningService {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "versions/"
	}
	if config.NotifyTimeout == 0 {
		config.NotifyTimeout = 10 * time.Second
	}
	if config.CleanupTimeout == 0 {
		config.CleanupTimeout = 30 * time.Second
	}
	return &VersioningService{
		versions:    versions,
		changes:     changes,
		artifacts:   artifacts,
		notifier:    notifier,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		metrics:     m,
		sem:         make(chan struct{}, 1),
		now:         time.Now,
	}
}

// SetClock replaces the time source, used by tests
func (s *VersioningService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *VersioningService) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", models.ErrPublishInFlight, ctx.Err())
	}
}

func (s *VersioningService) release() {
	<-s.sem
}

// GetChanges returns the change counters for every tracked table. A read
// failure is logged and reported as all zeros.
func (s *VersioningService) GetChanges(ctx context.Context) models.ChangeCounters {
	counters, err := s.changes.GetChanges(ctx)
	if err != nil {
		s.logger.Error("failed to fetch change counters", slog.Any("error", err))
		return models.NewChangeCounters()
	}
	return counters.Clone()
}

// ListVersions returns versions newest first. Only the first item is latest.
func (s *VersioningService) ListVersions(ctx context.Context) ([]VersionListItem, error) {
	versions, err := s.versions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	items := make([]VersionListItem, 0, len(versions))
	for i, v := range versions {
		items = append(items, VersionListItem{Version: v, Latest: i == 0})
	}
	return items, nil
}

func (s *VersioningService) artifactKey(label string, at time.Time) string {
	return fmt.Sprintf("%sv%s-%d.json", s.config.KeyPrefix, label, at.Unix())
}

// Publish snapshots every tracked table into a new version. The snapshot,
// the version record and the counter reset commit together; on any failure
// nothing is recorded and an already uploaded artifact is removed.
func (s *VersioningService) Publish(ctx context.Context, actor string) (*models.Version, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var (
		published   *models.Version
		uploadedKey string
	)

	err := s.versions.RunLocked(ctx, s.config.LockKey, func(ctx context.Context, tx repositories.VersionTx) error {
		counters, err := tx.LockChanges(ctx)
		if err != nil {
			return err
		}
		snapshot, err := tx.ExportTables(ctx)
		if err != nil {
			return err
		}
		number, err := tx.NextVersionNumber(ctx)
		if err != nil {
			return err
		}

		publishedAt := s.now().UTC().Truncate(time.Millisecond)
		v := &models.Version{
			ID:          uuid.New().String(),
			Version:     strconv.FormatInt(number, 10),
			Number:      number,
			PublishedAt: publishedAt,
			Changes:     counters.Clone(),
		}

		body, err := json.Marshal(models.Artifact{
			Version:     v.Version,
			PublishedAt: publishedAt,
			Changes:     v.Changes.Clone(),
			Tables:      snapshot,
		})
		if err != nil {
			return fmt.Errorf("failed to encode artifact: %w", err)
		}

		key := s.artifactKey(v.Version, publishedAt)
		url, err := s.artifacts.Put(ctx, key, body)
		if err != nil {
			return err
		}
		uploadedKey = key
		v.FilePath = key
		v.FileURL = url

		if err := tx.InsertVersion(ctx, v); err != nil {
			return fmt.Errorf("failed to record version: %w", err)
		}
		if err := tx.ResetChanges(ctx); err != nil {
			return err
		}

		published = v
		return nil
	})
	if err != nil {
		if uploadedKey != "" {
			s.discardArtifact(ctx, uploadedKey)
		}
		s.metrics.PublishFailed()
		s.auditLogger.LogVersionAction("version_publish_failed", actor, "", false, map[string]string{"error": err.Error()})
		s.logger.Error("publish failed", slog.Any("error", err))
		return nil, fmt.Errorf("publish failed: %w", err)
	}

	s.metrics.Published()
	s.auditLogger.LogVersionAction("version_published", actor, published.Version, true, map[string]string{
		"changes": strconv.Itoa(published.Changes.Total()),
	})
	s.logger.Info("version published",
		slog.String("version", published.Version),
		slog.String("file_path", published.FilePath),
		slog.Int("changes", published.Changes.Total()))

	s.notify(ctx, published)
	return published, nil
}

func (s *VersioningService) discardArtifact(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CleanupTimeout)
	defer cancel()

	if err := s.artifacts.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove orphaned artifact", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *VersioningService) notify(ctx context.Context, v *models.Version) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.NotifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyPublished(ctx, v); err != nil {
		s.logger.Warn("publish notification failed", slog.String("version", v.Version), slog.Any("error", err))
	}
}

// loadArtifact downloads and decodes the snapshot of v
func (s *VersioningService) loadArtifact(ctx context.Context, v *models.Version) (*models.Artifact, error) {
	body, err := s.artifacts.Get(ctx, v.FilePath)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: artifact %s is missing", models.ErrArtifactStorage, v.FilePath)
		}
		return nil, err
	}

	var artifact models.Artifact
	if err := json.Unmarshal(body, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrArtifactCorrupt, err)
	}
	if artifact.Version != v.Version {
		return nil, fmt.Errorf("%w: artifact holds version %q, expected %q", models.ErrArtifactCorrupt, artifact.Version, v.Version)
	}
	if artifact.Tables == nil {
		return nil, fmt.Errorf("%w: no tables", models.ErrArtifactCorrupt)
	}

	for table := range artifact.Tables {
		if !table.Valid() {
			s.logger.Warn("ignoring unknown table in artifact", slog.String("table", string(table)), slog.String("version", v.Version))
			delete(artifact.Tables, table)
		}
	}
	return &artifact, nil
}

// Rollback replaces the contents of every tracked table with the snapshot
// of version label. Change counters are not modified.
func (s *VersioningService) Rollback(ctx context.Context, label, actor string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: version is required", models.ErrBadRequest)
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	err := s.rollback(ctx, label)
	s.metrics.RolledBack(err == nil)
	if err != nil {
		s.auditLogger.LogVersionAction("version_rollback_failed", actor, label, false, map[string]string{"error": err.Error()})
		return err
	}

	s.auditLogger.LogVersionAction("version_rolled_back", actor, label, true, nil)
	s.logger.Info("rolled back to version", slog.String("version", label))
	return nil
}

func (s *VersioningService) rollback(ctx context.Context, label string) error {
	v, err := s.versions.GetByLabel(ctx, label)
	if err != nil {
		return fmt.Errorf("failed to load version %s: %w", label, err)
	}

	artifact, err := s.loadArtifact(ctx, v)
	if err != nil {
		return fmt.Errorf("failed to load snapshot of version %s: %w", label, err)
	}

	err = s.versions.RunLocked(ctx, s.config.LockKey, func(ctx context.Context, tx repositories.VersionTx) error {
		return tx.ReplaceTables(ctx, artifact.Tables)
	})
	if err != nil {
		return fmt.Errorf("failed to restore version %s: %w", label, err)
	}
	return nil
}

// DeleteVersion removes the version record, then its artifact. A failure to
// remove the artifact is logged only.
func (s *VersioningService) DeleteVersion(ctx context.Context, id, actor string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	deleted, err := s.versions.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete version %s: %w", id, err)
	}

	if deleted.FilePath != "" {
		if err := s.artifacts.Delete(ctx, deleted.FilePath); err != nil {
			s.logger.Warn("failed to delete artifact", slog.String("key", deleted.FilePath), slog.Any("error", err))
		}
	}

	s.auditLogger.LogVersionAction("version_deleted", actor, deleted.Version, true, nil)
	return nil
}
