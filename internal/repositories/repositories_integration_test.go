//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *database.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("summit"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
			return 1
		}
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
			return 1
		}
		defer pool.Close()

		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		testDB = database.NewFromPool(pool, logger)
		if err := testDB.Migrate(ctx, "up"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
			return 1
		}
		return m.Run()
	}()

	os.Exit(code)
}

func cleanupTables(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, table := range models.TrackedTables {
		_, err := testDB.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table))
		require.NoError(t, err)
	}
	_, err := testDB.Pool.Exec(ctx, "TRUNCATE TABLE versions, admins, push_tokens, notification_history")
	require.NoError(t, err)
	_, err = testDB.Pool.Exec(ctx, "UPDATE entity_changes SET count = 0")
	require.NoError(t, err)
}

func TestEntityRepository_CRUDCountsChanges(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	entities := NewEntityRepository(testDB)
	changes := NewChangeRepository(testDB)

	created, err := entities.Create(ctx, models.TableEvents, json.RawMessage(`{"title":"Opening"}`))
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)

	_, err = entities.Update(ctx, models.TableEvents, created.ID, json.RawMessage(`{"title":"Opening keynote"}`))
	require.NoError(t, err)

	_, err = entities.Create(ctx, models.TablePeople, json.RawMessage(`{"name":"Ada"}`))
	require.NoError(t, err)

	counters, err := changes.GetChanges(ctx)
	require.NoError(t, err)
	assert.Len(t, counters, len(models.TrackedTables))
	assert.Equal(t, 2, counters[models.TableEvents])
	assert.Equal(t, 1, counters[models.TablePeople])
	assert.Equal(t, 0, counters[models.TableSections])

	require.NoError(t, entities.Delete(ctx, models.TableEvents, created.ID))
	_, err = entities.Get(ctx, models.TableEvents, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = entities.Delete(ctx, models.TableEvents, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	counters, err = changes.GetChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counters[models.TableEvents])

	_, err = entities.List(ctx, models.TableName("users"))
	assert.ErrorIs(t, err, models.ErrUnknownTable)
}

func TestVersionRepository_PublishAndRollbackUnit(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	entities := NewEntityRepository(testDB)
	versions := NewVersionRepository(testDB)

	_, err := entities.Create(ctx, models.TableLocations, json.RawMessage(`{"name":"Hall A"}`))
	require.NoError(t, err)

	var snapshot models.Snapshot
	err = versions.RunLocked(ctx, 42, func(ctx context.Context, tx VersionTx) error {
		counters, err := tx.LockChanges(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, counters[models.TableLocations])

		snapshot, err = tx.ExportTables(ctx)
		if err != nil {
			return err
		}
		n, err := tx.NextVersionNumber(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)

		if err := tx.InsertVersion(ctx, &models.Version{
			ID: uuid.New().String(), Version: "1", Number: n, PublishedAt: time.Now().UTC(),
			Changes: counters, FilePath: "versions/v1.json", FileURL: "https://cdn.example.com/versions/v1.json",
		}); err != nil {
			return err
		}
		return tx.ResetChanges(ctx)
	})
	require.NoError(t, err)
	require.Len(t, snapshot[models.TableLocations], 1)

	counters, err := NewChangeRepository(testDB).GetChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counters.Total())

	// add a row after publishing, then restore the snapshot
	_, err = entities.Create(ctx, models.TableLocations, json.RawMessage(`{"name":"Hall B"}`))
	require.NoError(t, err)

	err = versions.RunLocked(ctx, 42, func(ctx context.Context, tx VersionTx) error {
		return tx.ReplaceTables(ctx, snapshot)
	})
	require.NoError(t, err)

	rows, err := entities.List(ctx, models.TableLocations)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, snapshot[models.TableLocations][0].ID, rows[0].ID)
	assert.JSONEq(t, `{"name":"Hall A"}`, string(rows[0].Data))

	list, err := versions.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Changes[models.TableLocations])

	deleted, err := versions.Delete(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "1", deleted.Version)

	_, err = versions.GetByLabel(ctx, "1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVersionRepository_FailedUnitLeavesNoTrace(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()
	versions := NewVersionRepository(testDB)

	_, err := NewEntityRepository(testDB).Create(ctx, models.TableResources, json.RawMessage(`{"name":"Map"}`))
	require.NoError(t, err)

	err = versions.RunLocked(ctx, 42, func(ctx context.Context, tx VersionTx) error {
		if err := tx.ResetChanges(ctx); err != nil {
			return err
		}
		return models.ErrArtifactStorage
	})
	assert.ErrorIs(t, err, models.ErrArtifactStorage)

	counters, err := NewChangeRepository(testDB).GetChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counters[models.TableResources])
}

func TestAdminAndPushRepositories(t *testing.T) {
	cleanupTables(t)
	ctx := context.Background()

	admins := NewAdminRepository(testDB)
	_, err := admins.Create(ctx, &models.Admin{Email: "admin@example.com", PasswordHash: "hash", Name: "Admin"})
	require.NoError(t, err)
	_, err = admins.Create(ctx, &models.Admin{Email: "admin@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, models.ErrConflict)

	got, err := admins.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Admin", got.Name)

	tokens := NewPushTokenRepository(testDB)
	_, err = tokens.Upsert(ctx, "ExponentPushToken[a]", "ios")
	require.NoError(t, err)
	_, err = tokens.Upsert(ctx, "ExponentPushToken[a]", "android")
	require.NoError(t, err)

	list, err := tokens.ListTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[a]"}, list)

	notifications := NewNotificationRepository(testDB)
	require.NoError(t, notifications.Create(ctx, &models.NotificationRecord{
		Title: "Hi", Body: "There", SentAt: time.Now().UTC(), SuccessCount: 1,
	}))
	history, err := notifications.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Empty(t, history[0].FailedTokens)

	require.NoError(t, tokens.Delete(ctx, "ExponentPushToken[a]"))
	assert.ErrorIs(t, tokens.Delete(ctx, "ExponentPushToken[a]"), models.ErrNotFound)
}
