package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// EntityRepository stores rows of the tracked tables and counts each write
type EntityRepository interface {
	List(ctx context.Context, table models.TableName) ([]models.EntityRow, error)
	Get(ctx context.Context, table models.TableName, id string) (*models.EntityRow, error)
	Create(ctx context.Context, table models.TableName, data json.RawMessage) (*models.EntityRow, error)
	Update(ctx context.Context, table models.TableName, id string, data json.RawMessage) (*models.EntityRow, error)
	Delete(ctx context.Context, table models.TableName, id string) error
}

// EntityService resolves table names and forwards to the repository.
// Payloads arrive already validated.
type EntityService struct {
	repo   EntityRepository
	logger *slog.Logger
}

func NewEntityService(repo EntityRepository, logger *slog.Logger) *EntityService {
	return &EntityService{repo: repo, logger: logger}
}

func (s *EntityService) List(ctx context.Context, table string) ([]models.EntityRow, error) {
	t, err := models.ParseTableName(table)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, t)
}

func (s *EntityService) Get(ctx context.Context, table, id string) (*models.EntityRow, error) {
	t, err := models.ParseTableName(table)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, t, id)
}

func (s *EntityService) Create(ctx context.Context, table string, data json.RawMessage) (*models.EntityRow, error) {
	t, err := models.ParseTableName(table)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.Create(ctx, t, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity created", slog.String("table", table), slog.String("id", row.ID))
	return row, nil
}

func (s *EntityService) Update(ctx context.Context, table, id string, data json.RawMessage) (*models.EntityRow, error) {
	t, err := models.ParseTableName(table)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.Update(ctx, t, id, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity updated", slog.String("table", table), slog.String("id", id))
	return row, nil
}

func (s *EntityService) Delete(ctx context.Context, table, id string) error {
	t, err := models.ParseTableName(table)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, t, id); err != nil {
		return err
	}
	s.logger.Info("entity deleted", slog.String("table", table), slog.String("id", id))
	return nil
}
