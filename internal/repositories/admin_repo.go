package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(db *database.DB) *AdminRepository {
	return &AdminRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAdminRow(scanner rowScanner) (*models.Admin, error) {
	var admin models.Admin
	err := scanner.Scan(
		&admin.ID, &admin.Email, &admin.PasswordHash, &admin.Name,
		&admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &admin, nil
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := `
		SELECT id, email, password_hash, name, created_at, updated_at
		FROM admins WHERE email = $1
	`

	return scanAdminRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) (*models.Admin, error) {
	admin.ID = uuid.New().String()

	now := time.Now()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	query := `
		INSERT INTO admins (id, email, password_hash, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, email, password_hash, name, created_at, updated_at
	`

	return scanAdminRow(r.pool.QueryRow(ctx, query,
		admin.ID, admin.Email, admin.PasswordHash, admin.Name, admin.CreatedAt, admin.UpdatedAt,
	))
}

// UpdatePassword replaces the stored hash, used when the bootstrap password rotates
func (r *AdminRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE admins SET password_hash = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
