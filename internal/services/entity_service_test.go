package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEntityRepository implements EntityRepository for testing
type MockEntityRepository struct {
	ListFunc   func(ctx context.Context, table models.TableName) ([]models.EntityRow, error)
	GetFunc    func(ctx context.Context, table models.TableName, id string) (*models.EntityRow, error)
	CreateFunc func(ctx context.Context, table models.TableName, data json.RawMessage) (*models.EntityRow, error)
	UpdateFunc func(ctx context.Context, table models.TableName, id string, data json.RawMessage) (*models.EntityRow, error)
	DeleteFunc func(ctx context.Context, table models.TableName, id string) error
}

func (m *MockEntityRepository) List(ctx context.Context, table models.TableName) ([]models.EntityRow, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, table)
	}
	return []models.EntityRow{}, nil
}

func (m *MockEntityRepository) Get(ctx context.Context, table models.TableName, id string) (*models.EntityRow, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, table, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockEntityRepository) Create(ctx context.Context, table models.TableName, data json.RawMessage) (*models.EntityRow, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, table, data)
	}
	return &models.EntityRow{ID: "new", Data: data}, nil
}

func (m *MockEntityRepository) Update(ctx context.Context, table models.TableName, id string, data json.RawMessage) (*models.EntityRow, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, table, id, data)
	}
	return &models.EntityRow{ID: id, Data: data}, nil
}

func (m *MockEntityRepository) Delete(ctx context.Context, table models.TableName, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, table, id)
	}
	return nil
}

func TestEntityService_RejectsUnknownTable(t *testing.T) {
	repo := &MockEntityRepository{
		ListFunc: func(ctx context.Context, table models.TableName) ([]models.EntityRow, error) {
			t.Fatal("repository must not be called")
			return nil, nil
		},
	}
	svc := NewEntityService(repo, testLogger())

	_, err := svc.List(context.Background(), "admins")
	assert.ErrorIs(t, err, models.ErrUnknownTable)

	_, err = svc.Create(context.Background(), "versions", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, models.ErrUnknownTable)

	assert.ErrorIs(t, svc.Delete(context.Background(), "", "x"), models.ErrUnknownTable)
}

func TestEntityService_ForwardsToRepository(t *testing.T) {
	var gotTable models.TableName
	repo := &MockEntityRepository{
		CreateFunc: func(ctx context.Context, table models.TableName, data json.RawMessage) (*models.EntityRow, error) {
			gotTable = table
			return &models.EntityRow{ID: "e1", Data: data}, nil
		},
	}
	svc := NewEntityService(repo, testLogger())

	row, err := svc.Create(context.Background(), "social_posts", json.RawMessage(`{"author":"ada"}`))

	require.NoError(t, err)
	assert.Equal(t, models.TableSocialPosts, gotTable)
	assert.Equal(t, "e1", row.ID)
	assert.JSONEq(t, `{"author":"ada"}`, string(row.Data))
}

func TestEntityService_PropagatesNotFound(t *testing.T) {
	repo := &MockEntityRepository{
		UpdateFunc: func(ctx context.Context, table models.TableName, id string, data json.RawMessage) (*models.EntityRow, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := NewEntityService(repo, testLogger())

	_, err := svc.Update(context.Background(), "events", "missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Get(context.Background(), "events", "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
