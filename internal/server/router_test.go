package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/api/handlers"
	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/pagination"
	"github.com/fieldbankhq/fieldbank/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockResolverService struct {
	mock.Mock
}

func (m *MockResolverService) ResolveField(ctx context.Context, ownerID, label string) (domain.Resolution, error) {
	args := m.Called(ctx, ownerID, label)
	return args.Get(0).(domain.Resolution), args.Error(1)
}

func (m *MockResolverService) RecordUsage(ctx context.Context, ownerID, entryID string) {
	m.Called(ctx, ownerID, entryID)
}

type MockConfirmationService struct {
	mock.Mock
}

func (m *MockConfirmationService) ConfirmField(ctx context.Context, input service.ConfirmInput) (*domain.Entry, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}

type MockEntryService struct {
	mock.Mock
}

func (m *MockEntryService) RecordExtraction(ctx context.Context, input service.ExtractionInput) (*domain.Entry, bool, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Entry), args.Bool(1), args.Error(2)
}

func (m *MockEntryService) GetEntry(ctx context.Context, ownerID, entryID string) (*domain.Entry, error) {
	args := m.Called(ctx, ownerID, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}

func (m *MockEntryService) ListEntries(ctx context.Context, ownerID string, kind domain.EntryKind, limit int, cursor string) (*pagination.PageResult[*domain.Entry], error) {
	args := m.Called(ctx, ownerID, kind, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Entry]), args.Error(1)
}

func (m *MockEntryService) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	args := m.Called(ctx, ownerID, entryID)
	return args.Error(0)
}

func (m *MockEntryService) PurgeKind(ctx context.Context, ownerID string, kind domain.EntryKind) (int64, error) {
	args := m.Called(ctx, ownerID, kind)
	return args.Get(0).(int64), args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) InitUpload(ctx context.Context, input service.InitUploadInput) (*service.InitUploadResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InitUploadResult), args.Error(1)
}

func (m *MockDocumentService) CompleteUpload(ctx context.Context, input service.CompleteUploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetDownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	args := m.Called(ctx, ownerID, documentID)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	args := m.Called(ctx, ownerID, documentID)
	return args.Error(0)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateOwner(ctx context.Context, name string) (*domain.Owner, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Owner), args.Error(1)
}

func (m *MockAuthService) CreateAPIKey(ctx context.Context, ownerID, name string) (string, error) {
	args := m.Called(ctx, ownerID, name)
	return args.String(0), args.Error(1)
}

type routerMocks struct {
	authValidator *MockAuthValidator
	resolverSvc   *MockResolverService
	confirmSvc    *MockConfirmationService
	entrySvc      *MockEntryService
	documentSvc   *MockDocumentService
	authSvc       *MockAuthService
}

func setupRouter() (http.Handler, *routerMocks) {
	mocks := &routerMocks{
		authValidator: new(MockAuthValidator),
		resolverSvc:   new(MockResolverService),
		confirmSvc:    new(MockConfirmationService),
		entrySvc:      new(MockEntryService),
		documentSvc:   new(MockDocumentService),
		authSvc:       new(MockAuthService),
	}

	cfg := RouterConfig{
		AuthValidator:   mocks.authValidator,
		ResolveHandler:  handlers.NewResolveHandler(mocks.resolverSvc),
		ConfirmHandler:  handlers.NewConfirmHandler(mocks.confirmSvc),
		EntryHandler:    handlers.NewEntryHandler(mocks.entrySvc),
		DocumentHandler: handlers.NewDocumentHandler(mocks.documentSvc),
		AuthHandler:     handlers.NewAuthHandler(mocks.authSvc),
	}

	return NewRouter(cfg), mocks
}

const testToken = "fbk_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	router, _ := setupRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/resolve"},
		{http.MethodPost, "/resolve/feedback"},
		{http.MethodPost, "/confirm"},
		{http.MethodPost, "/entries"},
		{http.MethodGet, "/entries"},
		{http.MethodGet, "/entries/123"},
		{http.MethodDelete, "/entries/123"},
		{http.MethodPost, "/entries/purge"},
		{http.MethodPost, "/documents/init"},
		{http.MethodPost, "/documents/complete"},
		{http.MethodGet, "/documents"},
		{http.MethodGet, "/documents/123/download"},
		{http.MethodDelete, "/documents/123"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_AuthenticatedRoutes_WithValidAuth(t *testing.T) {
	router, mocks := setupRouter()

	mocks.authValidator.On("ValidateAPIKey", mock.Anything, testToken).Return("owner-789", nil)
	mocks.resolverSvc.On("ResolveField", mock.Anything, "owner-789", "Email Address").
		Return(domain.ResolvedValue("jane@example.com", "entry-1", domain.StageExact), nil)

	body := `{"label":"Email Address"}`
	req := httptest.NewRequest(http.MethodPost, "/resolve", bytes.NewReader([]byte(body)))
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jane@example.com", data["value"])
	mocks.authValidator.AssertExpectations(t)
	mocks.resolverSvc.AssertExpectations(t)
}

func TestRouter_EntryRoutes_WithValidAuth(t *testing.T) {
	router, mocks := setupRouter()

	now := time.Now().UTC()
	entry := &domain.Entry{
		ID:        "entry-1",
		OwnerID:   "owner-789",
		Kind:      domain.EntryKindFieldValue,
		Group:     "emailaddress",
		Label:     "Email Address",
		Payload:   domain.EncodeFieldValue("jane@example.com"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	mocks.authValidator.On("ValidateAPIKey", mock.Anything, testToken).Return("owner-789", nil)
	mocks.entrySvc.On("GetEntry", mock.Anything, "owner-789", "entry-1").Return(entry, nil)

	req := httptest.NewRequest(http.MethodGet, "/entries/entry-1", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mocks.entrySvc.AssertExpectations(t)
}

func TestRouter_PublicRoutes_NoAuthRequired(t *testing.T) {
	router, mocks := setupRouter()

	expectedOwner := &domain.Owner{
		ID:        "owner-123",
		Name:      "Jane",
		CreatedAt: time.Now().UTC(),
	}
	mocks.authSvc.On("CreateOwner", mock.Anything, "Jane").Return(expectedOwner, nil)

	body := `{"name":"Jane"}`
	req := httptest.NewRequest(http.MethodPost, "/owners", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mocks.authSvc.AssertExpectations(t)
}
