package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// VersionTx is the set of operations available to a publish or rollback
// while the versioning advisory lock is held. All calls share one
// transaction; nothing is visible to other sessions until it commits.
type VersionTx interface {
	LockChanges(ctx context.Context) (models.ChangeCounters, error)
	ExportTables(ctx context.Context) (models.Snapshot, error)
	NextVersionNumber(ctx context.Context) (int64, error)
	InsertVersion(ctx context.Context, v *models.Version) error
	ResetChanges(ctx context.Context) error
	ReplaceTables(ctx context.Context, snapshot models.Snapshot) error
}

// VersionRepository handles the versions table and the transactional
// publish/rollback unit of work
type VersionRepository struct {
	db *database.DB
}

func NewVersionRepository(db *database.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// RunLocked executes fn in a single transaction after taking the
// transaction-scoped advisory lock identified by lockKey. A non-nil error
// from fn rolls everything back.
func (r *VersionRepository) RunLocked(ctx context.Context, lockKey int64, fn func(ctx context.Context, tx VersionTx) error) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
			return fmt.Errorf("failed to acquire versioning lock: %w", err)
		}
		return fn(ctx, &pgVersionTx{tx: tx})
	})
}

func scanVersionRow(scanner rowScanner) (*models.Version, error) {
	var v models.Version
	var changes []byte
	err := scanner.Scan(&v.ID, &v.Version, &v.Number, &v.PublishedAt, &changes, &v.FilePath, &v.FileURL)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	counters := models.ChangeCounters{}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &counters); err != nil {
			return nil, fmt.Errorf("failed to decode changes of version %s: %w", v.Version, err)
		}
	}
	v.Changes = counters.Clone()
	return &v, nil
}

const versionColumns = `id, version, version_number, published_at, changes, file_path, file_url`

// List returns all versions, newest first
func (r *VersionRepository) List(ctx context.Context) ([]*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions ORDER BY published_at DESC, version_number DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	versions := make([]*models.Version, 0)
	for rows.Next() {
		v, err := scanVersionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return versions, nil
}

func (r *VersionRepository) GetByLabel(ctx context.Context, label string) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE version = $1`
	return scanVersionRow(r.db.Pool.QueryRow(ctx, query, label))
}

// Delete removes a version record and returns what was removed
func (r *VersionRepository) Delete(ctx context.Context, id string) (*models.Version, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `DELETE FROM versions WHERE id = $1 RETURNING ` + versionColumns
	return scanVersionRow(r.db.Pool.QueryRow(ctx, query, id))
}

type pgVersionTx struct {
	tx pgx.Tx
}

// LockChanges reads the counters with FOR UPDATE so concurrent entity
// writes wait until the publish commits
func (p *pgVersionTx) LockChanges(ctx context.Context) (models.ChangeCounters, error) {
	rows, err := p.tx.Query(ctx, `SELECT table_name, count FROM entity_changes FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("failed to lock change counters: %w", err)
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

func (p *pgVersionTx) ExportTables(ctx context.Context) (models.Snapshot, error) {
	snapshot := make(models.Snapshot, len(models.TrackedTables))
	for _, table := range models.TrackedTables {
		name, err := quoteTable(table)
		if err != nil {
			return nil, err
		}

		rows, err := p.tx.Query(ctx, fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s ORDER BY created_at, id`, name))
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", table, err)
		}
		entities, err := scanEntityRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", table, err)
		}
		snapshot[table] = entities
	}
	return snapshot, nil
}

func (p *pgVersionTx) NextVersionNumber(ctx context.Context) (int64, error) {
	var next int64
	err := p.tx.QueryRow(ctx, `SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate version number: %w", err)
	}
	return next, nil
}

func (p *pgVersionTx) InsertVersion(ctx context.Context, v *models.Version) error {
	changes, err := json.Marshal(v.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}

	query := `
		INSERT INTO versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.tx.Exec(ctx, query, v.ID, v.Version, v.Number, v.PublishedAt, changes, v.FilePath, v.FileURL)
	return database.MapPostgresError(err)
}

func (p *pgVersionTx) ResetChanges(ctx context.Context) error {
	if _, err := p.tx.Exec(ctx, `UPDATE entity_changes SET count = 0`); err != nil {
		return fmt.Errorf("failed to reset change counters: %w", err)
	}
	return nil
}

// ReplaceTables empties every tracked table and reloads it from snapshot.
// Tables missing from snapshot end up empty.
func (p *pgVersionTx) ReplaceTables(ctx context.Context, snapshot models.Snapshot) error {
	for _, table := range models.TrackedTables {
		name, err := quoteTable(table)
		if err != nil {
			return err
		}
		if _, err := p.tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, name)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}

		entities := snapshot[table]
		if len(entities) == 0 {
			continue
		}

		rows := make([][]any, 0, len(entities))
		for _, e := range entities {
			id, err := uuid.Parse(e.ID)
			if err != nil {
				return fmt.Errorf("%w: %s row has invalid id %q", models.ErrArtifactCorrupt, table, e.ID)
			}
			if !json.Valid(e.Data) {
				return fmt.Errorf("%w: %s row %s has invalid data", models.ErrArtifactCorrupt, table, e.ID)
			}
			rows = append(rows, []any{id, string(e.Data), e.CreatedAt, e.UpdatedAt})
		}

		_, err = p.tx.CopyFrom(ctx,
			pgx.Identifier{string(table)},
			[]string{"id", "data", "created_at", "updated_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", table, database.MapPostgresError(err))
		}
	}
	return nil
}
