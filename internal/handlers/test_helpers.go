package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oldrefery/summit-backend-sub001/internal/auth"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/oldrefery/summit-backend-sub001/internal/services"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext adds an operator session to the request context
func WithSessionContext(req *http.Request, email string) *http.Request {
	now := time.Now()
	session := &models.Session{Email: email, Created: now, Expires: now.Add(24 * time.Hour)}
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, session)
	return req.WithContext(ctx)
}

// WithURLParams adds chi URL parameters to the request
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, email, password, clientKey string) (*services.LoginResult, error)
	LogoutFunc func(ctx context.Context, session *models.Session, clientKey string)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, clientKey string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, clientKey)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, session *models.Session, clientKey string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, session, clientKey)
	}
}

// MockRetryAfter implements RetryAfterProvider for testing
type MockRetryAfter struct {
	RetryAfterFunc func(ctx context.Context, key string) time.Duration
}

func (m *MockRetryAfter) RetryAfter(ctx context.Context, key string) time.Duration {
	if m.RetryAfterFunc != nil {
		return m.RetryAfterFunc(ctx, key)
	}
	return 0
}

// MockEntityService implements EntityService for testing
type MockEntityService struct {
	ListFunc   func(ctx context.Context, table string) ([]models.EntityRow, error)
	GetFunc    func(ctx context.Context, table, id string) (*models.EntityRow, error)
	CreateFunc func(ctx context.Context, table string, data json.RawMessage) (*models.EntityRow, error)
	UpdateFunc func(ctx context.Context, table, id string, data json.RawMessage) (*models.EntityRow, error)
	DeleteFunc func(ctx context.Context, table, id string) error
}

func (m *MockEntityService) List(ctx context.Context, table string) ([]models.EntityRow, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, table)
	}
	return nil, nil
}

func (m *MockEntityService) Get(ctx context.Context, table, id string) (*models.EntityRow, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, table, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockEntityService) Create(ctx context.Context, table string, data json.RawMessage) (*models.EntityRow, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, table, data)
	}
	return &models.EntityRow{ID: "new", Data: data}, nil
}

func (m *MockEntityService) Update(ctx context.Context, table, id string, data json.RawMessage) (*models.EntityRow, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, table, id, data)
	}
	return &models.EntityRow{ID: id, Data: data}, nil
}

func (m *MockEntityService) Delete(ctx context.Context, table, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, table, id)
	}
	return nil
}

// MockVersioningService implements VersioningService for testing
type MockVersioningService struct {
	GetChangesFunc    func(ctx context.Context) models.ChangeCounters
	ListVersionsFunc  func(ctx context.Context) ([]services.VersionListItem, error)
	PublishFunc       func(ctx context.Context, actor string) (*models.Version, error)
	RollbackFunc      func(ctx context.Context, label, actor string) error
	DeleteVersionFunc func(ctx context.Context, id, actor string) error
}

func (m *MockVersioningService) GetChanges(ctx context.Context) models.ChangeCounters {
	if m.GetChangesFunc != nil {
		return m.GetChangesFunc(ctx)
	}
	return models.NewChangeCounters()
}

func (m *MockVersioningService) ListVersions(ctx context.Context) ([]services.VersionListItem, error) {
	if m.ListVersionsFunc != nil {
		return m.ListVersionsFunc(ctx)
	}
	return []services.VersionListItem{}, nil
}

func (m *MockVersioningService) Publish(ctx context.Context, actor string) (*models.Version, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, actor)
	}
	return nil, models.ErrInternalServer
}

func (m *MockVersioningService) Rollback(ctx context.Context, label, actor string) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx, label, actor)
	}
	return nil
}

func (m *MockVersioningService) DeleteVersion(ctx context.Context, id, actor string) error {
	if m.DeleteVersionFunc != nil {
		return m.DeleteVersionFunc(ctx, id, actor)
	}
	return nil
}

// MockPushService implements PushService for testing
type MockPushService struct {
	BroadcastFunc       func(ctx context.Context, title, body string, data map[string]string) (*models.NotificationRecord, *models.PushResult, error)
	RegisterTokenFunc   func(ctx context.Context, token, platform string) (*models.PushToken, error)
	UnregisterTokenFunc func(ctx context.Context, token string) error
	HistoryFunc         func(ctx context.Context, limit int) ([]*models.NotificationRecord, error)
}

func (m *MockPushService) Broadcast(ctx context.Context, title, body string, data map[string]string) (*models.NotificationRecord, *models.PushResult, error) {
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, title, body, data)
	}
	return nil, nil, models.ErrNoPushRecipients
}

func (m *MockPushService) RegisterToken(ctx context.Context, token, platform string) (*models.PushToken, error) {
	if m.RegisterTokenFunc != nil {
		return m.RegisterTokenFunc(ctx, token, platform)
	}
	return &models.PushToken{Token: token, Platform: platform}, nil
}

func (m *MockPushService) UnregisterToken(ctx context.Context, token string) error {
	if m.UnregisterTokenFunc != nil {
		return m.UnregisterTokenFunc(ctx, token)
	}
	return nil
}

func (m *MockPushService) History(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, limit)
	}
	return nil, nil
}
