package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// ChangeRepository reads the per-table change counters
type ChangeRepository struct {
	pool *pgxpool.Pool
}

func NewChangeRepository(db *database.DB) *ChangeRepository {
	return &ChangeRepository{pool: db.Pool}
}

// GetChanges returns the counters for every tracked table. Tables without a
// counter row are reported as zero.
func (r *ChangeRepository) GetChanges(ctx context.Context) (models.ChangeCounters, error) {
	rows, err := r.pool.Query(ctx, `SELECT table_name, count FROM entity_changes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query change counters: %w", err)
	}
	defer rows.Close()

	raw := models.ChangeCounters{}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan change counter: %w", err)
		}
		raw[models.TableName(name)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change counters: %w", err)
	}

	return raw.Clone(), nil
}
