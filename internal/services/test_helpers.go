package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/oldrefery/summit-backend-sub001/internal/repositories"
	pkglogger "github.com/oldrefery/summit-backend-sub001/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger(), "test")
}

// MockAdminRepository implements AdminRepository for testing
type MockAdminRepository struct {
	GetByEmailFunc     func(ctx context.Context, email string) (*models.Admin, error)
	CreateFunc         func(ctx context.Context, admin *models.Admin) (*models.Admin, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
}

func (m *MockAdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAdminRepository) Create(ctx context.Context, admin *models.Admin) (*models.Admin, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, admin)
	}
	return admin, nil
}

func (m *MockAdminRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

// MockLoginAttemptStore implements LoginAttemptStore for testing
type MockLoginAttemptStore struct {
	GetFunc       func(ctx context.Context, key string) (*models.LoginAttemptRecord, error)
	IncrementFunc func(ctx context.Context, key string, now time.Time, window time.Duration) (*models.LoginAttemptRecord, error)
	DeleteFunc    func(ctx context.Context, key string) error
}

func (m *MockLoginAttemptStore) Get(ctx context.Context, key string) (*models.LoginAttemptRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, nil
}

func (m *MockLoginAttemptStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (*models.LoginAttemptRecord, error) {
	if m.IncrementFunc != nil {
		return m.IncrementFunc(ctx, key, now, window)
	}
	return &models.LoginAttemptRecord{Count: 1, WindowStart: now}, nil
}

func (m *MockLoginAttemptStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// MockChangeReader implements ChangeReader for testing
type MockChangeReader struct {
	GetChangesFunc func(ctx context.Context) (models.ChangeCounters, error)
}

func (m *MockChangeReader) GetChanges(ctx context.Context) (models.ChangeCounters, error) {
	if m.GetChangesFunc != nil {
		return m.GetChangesFunc(ctx)
	}
	return models.NewChangeCounters(), nil
}

// MockPushGateway implements PushGateway for testing
type MockPushGateway struct {
	SendFunc func(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error)
}

func (m *MockPushGateway) Send(ctx context.Context, messages []models.PushMessage) ([]models.PushTicket, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, messages)
	}
	tickets := make([]models.PushTicket, len(messages))
	for i := range tickets {
		tickets[i] = models.PushTicket{Status: "ok"}
	}
	return tickets, nil
}

// MockPushTokenRepository implements PushTokenRepository for testing
type MockPushTokenRepository struct {
	UpsertFunc     func(ctx context.Context, token, platform string) (*models.PushToken, error)
	DeleteFunc     func(ctx context.Context, token string) error
	ListTokensFunc func(ctx context.Context) ([]string, error)
}

func (m *MockPushTokenRepository) Upsert(ctx context.Context, token, platform string) (*models.PushToken, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, token, platform)
	}
	return &models.PushToken{Token: token, Platform: platform}, nil
}

func (m *MockPushTokenRepository) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	return nil
}

func (m *MockPushTokenRepository) ListTokens(ctx context.Context) ([]string, error) {
	if m.ListTokensFunc != nil {
		return m.ListTokensFunc(ctx)
	}
	return []string{}, nil
}

// MockNotificationRepository implements NotificationRepository for testing
type MockNotificationRepository struct {
	CreateFunc func(ctx context.Context, rec *models.NotificationRecord) error
	ListFunc   func(ctx context.Context, limit int) ([]*models.NotificationRecord, error)
}

func (m *MockNotificationRepository) Create(ctx context.Context, rec *models.NotificationRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rec)
	}
	return nil
}

func (m *MockNotificationRepository) List(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return []*models.NotificationRecord{}, nil
}

// memoryArtifactStore keeps artifacts in a map
type memoryArtifactStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	getErr    error
	deleteErr error
	deleted   []string
}

func newMemoryArtifactStore() *memoryArtifactStore {
	return &memoryArtifactStore{objects: make(map[string][]byte)}
}

func (m *memoryArtifactStore) Put(_ context.Context, key string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return "", m.putErr
	}
	m.objects[key] = append([]byte(nil), body...)
	return "https://cdn.example.com/" + key, nil
}

func (m *memoryArtifactStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	body, ok := m.objects[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return body, nil
}

func (m *memoryArtifactStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryArtifactStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// memoryVersionStore mimics the transactional behaviour of the Postgres
// repository: RunLocked works on a copy that is only kept when fn succeeds
// and the commit does not fail.
type memoryVersionStore struct {
	mu        sync.Mutex
	versions  []*models.Version
	counters  models.ChangeCounters
	tables    models.Snapshot
	commitErr error
	failOn    string // name of a VersionTx method that should fail
	lockCalls int
}

func newMemoryVersionStore() *memoryVersionStore {
	return &memoryVersionStore{
		counters: models.NewChangeCounters(),
		tables:   models.Snapshot{},
	}
}

type memoryState struct {
	versions []*models.Version
	counters models.ChangeCounters
	tables   models.Snapshot
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	out := make(models.Snapshot, len(s))
	for t, rows := range s {
		out[t] = append([]models.EntityRow(nil), rows...)
	}
	return out
}

func (m *memoryVersionStore) RunLocked(ctx context.Context, _ int64, fn func(ctx context.Context, tx repositories.VersionTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++

	tx := &memoryVersionTx{
		store: m,
		state: memoryState{
			versions: append([]*models.Version(nil), m.versions...),
			counters: m.counters.Clone(),
			tables:   cloneSnapshot(m.tables),
		},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}

	m.versions = tx.state.versions
	m.counters = tx.state.counters
	m.tables = tx.state.tables
	return nil
}

func (m *memoryVersionStore) List(_ context.Context) ([]*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]*models.Version(nil), m.versions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (m *memoryVersionStore) GetByLabel(_ context.Context, label string) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions {
		if v.Version == label {
			return v, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryVersionStore) Delete(_ context.Context, id string) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.versions {
		if v.ID == id {
			m.versions = append(m.versions[:i:i], m.versions[i+1:]...)
			return v, nil
		}
	}
	return nil, models.ErrNotFound
}

// bump simulates an entity write
func (m *memoryVersionStore) bump(table models.TableName, id, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.tables[table] = append(m.tables[table], models.EntityRow{ID: id, Data: json.RawMessage(data), CreatedAt: now, UpdatedAt: now})
	m.counters[table]++
}

type memoryVersionTx struct {
	store *memoryVersionStore
	state memoryState
}

var errInjected = errors.New("injected failure")

func (tx *memoryVersionTx) fail(op string) error {
	if tx.store.failOn == op {
		return errInjected
	}
	return nil
}

func (tx *memoryVersionTx) LockChanges(context.Context) (models.ChangeCounters, error) {
	if err := tx.fail("LockChanges"); err != nil {
		return nil, err
	}
	return tx.state.counters.Clone(), nil
}

func (tx *memoryVersionTx) ExportTables(context.Context) (models.Snapshot, error) {
	if err := tx.fail("ExportTables"); err != nil {
		return nil, err
	}
	out := cloneSnapshot(tx.state.tables)
	for _, t := range models.TrackedTables {
		if out[t] == nil {
			out[t] = []models.EntityRow{}
		}
	}
	return out, nil
}

func (tx *memoryVersionTx) NextVersionNumber(context.Context) (int64, error) {
	if err := tx.fail("NextVersionNumber"); err != nil {
		return 0, err
	}
	var max int64
	for _, v := range tx.state.versions {
		if v.Number > max {
			max = v.Number
		}
	}
	return max + 1, nil
}

func (tx *memoryVersionTx) InsertVersion(_ context.Context, v *models.Version) error {
	if err := tx.fail("InsertVersion"); err != nil {
		return err
	}
	tx.state.versions = append(tx.state.versions, v)
	return nil
}

func (tx *memoryVersionTx) ResetChanges(context.Context) error {
	if err := tx.fail("ResetChanges"); err != nil {
		return err
	}
	tx.state.counters = models.NewChangeCounters()
	return nil
}

func (tx *memoryVersionTx) ReplaceTables(_ context.Context, snapshot models.Snapshot) error {
	if err := tx.fail("ReplaceTables"); err != nil {
		return err
	}
	tx.state.tables = cloneSnapshot(snapshot)
	return nil
}
