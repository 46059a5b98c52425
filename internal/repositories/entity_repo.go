package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// EntityRepository stores rows of the tracked tables. Every write bumps the
// table's change counter inside the same transaction.
type EntityRepository struct {
	db *database.DB
}

func NewEntityRepository(db *database.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// quoteTable validates t against the closed set before it reaches SQL
func quoteTable(t models.TableName) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownTable, string(t))
	}
	return pq.QuoteIdentifier(string(t)), nil
}

func scanEntityRow(scanner rowScanner) (*models.EntityRow, error) {
	var row models.EntityRow
	var data []byte
	if err := scanner.Scan(&row.ID, &data, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	row.Data = json.RawMessage(data)
	return &row, nil
}

func scanEntityRows(rows pgx.Rows) ([]models.EntityRow, error) {
	defer rows.Close()

	out := make([]models.EntityRow, 0)
	for rows.Next() {
		row, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (r *EntityRepository) List(ctx context.Context, table models.TableName) ([]models.EntityRow, error) {
	name, err := quoteTable(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s ORDER BY created_at, id`, name)
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return scanEntityRows(rows)
}

func (r *EntityRepository) Get(ctx context.Context, table models.TableName, id string) (*models.EntityRow, error) {
	name, err := quoteTable(table)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s WHERE id = $1`, name)
	return scanEntityRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *EntityRepository) Create(ctx context.Context, table models.TableName, data json.RawMessage) (*models.EntityRow, error) {
	name, err := quoteTable(table)
	if err != nil {
		return nil, err
	}

	var created *models.EntityRow
	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		query := fmt.Sprintf(`
			INSERT INTO %s (id, data, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			RETURNING id, data, created_at, updated_at
		`, name)

		row, err := scanEntityRow(tx.QueryRow(ctx, query, uuid.New().String(), []byte(data), now))
		if err != nil {
			return err
		}
		created = row
		return bumpChanges(ctx, tx, table)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *EntityRepository) Update(ctx context.Context, table models.TableName, id string, data json.RawMessage) (*models.EntityRow, error) {
	name, err := quoteTable(table)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	var updated *models.EntityRow
	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`
			UPDATE %s SET data = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING id, data, created_at, updated_at
		`, name)

		row, err := scanEntityRow(tx.QueryRow(ctx, query, []byte(data), id))
		if err != nil {
			return err
		}
		updated = row
		return bumpChanges(ctx, tx, table)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *EntityRepository) Delete(ctx context.Context, table models.TableName, id string) error {
	name, err := quoteTable(table)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, name), id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return bumpChanges(ctx, tx, table)
	})
}

func bumpChanges(ctx context.Context, tx pgx.Tx, table models.TableName) error {
	query := `
		INSERT INTO entity_changes (table_name, count) VALUES ($1, 1)
		ON CONFLICT (table_name) DO UPDATE SET count = entity_changes.count + 1
	`
	if _, err := tx.Exec(ctx, query, string(table)); err != nil {
		return fmt.Errorf("failed to record change for %s: %w", table, err)
	}
	return nil
}
