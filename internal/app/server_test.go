package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/coordination"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/feed"
	"lifelink_backend/internal/jobs"
	"lifelink_backend/internal/platform/database"
	"lifelink_backend/internal/search"
	"lifelink_backend/internal/store/gormstore"
	"lifelink_backend/internal/user"
)

// tokenVerifier accepts "token-<uid>" for any uid.
type tokenVerifier struct{}

func (tokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	const prefix = "token-"
	if len(idToken) <= len(prefix) || idToken[:len(prefix)] != prefix {
		return nil, errors.New("invalid token")
	}
	uid := idToken[len(prefix):]
	return &firebaseauth.Token{UID: uid, Claims: map[string]interface{}{"email": uid + "@example.com"}}, nil
}

type testApp struct {
	handler http.Handler
	engine  *coordination.Engine
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := &config.Config{
		GinMode:            "test",
		ServerHost:         "127.0.0.1",
		ServerPort:         "0",
		CORSOrigins:        []string{"http://localhost:5173"},
		StoreBackend:       config.StoreSQLite,
		TxMaxAttempts:      3,
		DefaultLat:         12.9716,
		DefaultLng:         77.5946,
		RequestExpiryHours: 72,
	}
	logger := zap.NewNop()

	db, err := database.NewSQLiteMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, gormstore.Migrate(db))
	st := gormstore.New(db, changefeed.NewBroker(logger), cfg, logger)
	t.Cleanup(func() { st.Close() })

	searchService := search.NewService(nil, st, cfg, logger)
	users := user.NewService(st, searchService, logger)
	engine := coordination.NewEngine(st, cfg, logger)

	server, err := NewServer(cfg, logger, tokenVerifier{}, users,
		user.NewHandler(users, logger),
		coordination.NewHandler(engine, logger),
		feed.NewHandler(feed.NewService(st, cfg, logger), logger),
		search.NewHandler(searchService, logger),
		jobs.NewRequestExpiryJob(engine, logger, cfg),
	)
	require.NoError(t, err)
	return &testApp{handler: server.Handler(), engine: engine}
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
}

func (a *testApp) call(t *testing.T, method, path, uid string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer token-"+uid)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestHealth(t *testing.T) {
	a := setupTestApp(t)
	code, _ := a.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	a := setupTestApp(t)
	code, env := a.call(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	a := setupTestApp(t)

	// First contact creates the profile.
	code, env := a.call(t, http.MethodGet, "/api/v1/users/me", "pat", nil)
	require.Equal(t, http.StatusOK, code)
	var me domain.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "pat", me.ID)
	assert.Equal(t, "pat@example.com", me.Email)

	code, _ = a.call(t, http.MethodPost, "/api/v1/requests", "pat", map[string]string{"bloodGroup": "O+", "urgency": "Emergency"})
	assert.Equal(t, http.StatusForbidden, code, "role not chosen yet")

	code, _ = a.call(t, http.MethodPut, "/api/v1/users/me/role", "pat", map[string]string{"role": "patient"})
	require.Equal(t, http.StatusOK, code)

	code, env = a.call(t, http.MethodPost, "/api/v1/requests", "pat", map[string]string{"bloodGroup": "O+", "urgency": "Emergency"})
	require.Equal(t, http.StatusCreated, code)
	var created domain.Request
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, "pat", created.PatientName, "default display name is the email local part")

	code, _ = a.call(t, http.MethodPut, "/api/v1/users/me/role", "don", map[string]string{"role": "donor"})
	require.Equal(t, http.StatusOK, code)

	code, env = a.call(t, http.MethodGet, "/api/v1/requests/"+created.ID, "don", nil)
	require.Equal(t, http.StatusOK, code)
	var seen domain.Request
	require.NoError(t, json.Unmarshal(env.Data, &seen))
	assert.Equal(t, created.ID, seen.ID)

	code, _ = a.call(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/cancel", "don", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = a.call(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/cancel", "pat", nil)
	require.Equal(t, http.StatusOK, code)
	var cancelled domain.Request
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	code, _ = a.call(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/cancel", "pat", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestAdminDirectory(t *testing.T) {
	a := setupTestApp(t)

	for _, uid := range []string{"bank", "don"} {
		code, _ := a.call(t, http.MethodGet, "/api/v1/users/me", uid, nil)
		require.Equal(t, http.StatusOK, code)
	}

	code, _ := a.call(t, http.MethodGet, "/api/v1/admin/users", "bank", nil)
	assert.Equal(t, http.StatusForbidden, code)

	_, err := a.engine.GrantAdmin(context.Background(), "bank")
	require.NoError(t, err)

	code, env := a.call(t, http.MethodGet, "/api/v1/admin/users", "bank", nil)
	require.Equal(t, http.StatusOK, code)
	var docs []search.Document
	require.NoError(t, json.Unmarshal(env.Data, &docs))
	assert.Len(t, docs, 2)

	code, _ = a.call(t, http.MethodPut, "/api/v1/users/me/role", "bank", map[string]string{"role": "donor"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestUnknownRoute(t *testing.T) {
	a := setupTestApp(t)
	code, env := a.call(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}
