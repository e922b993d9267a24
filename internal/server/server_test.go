package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/internal/auth"
	dbgorm "github.com/thebtf/promptvault/internal/db/gorm"
	"github.com/thebtf/promptvault/internal/server/sse"
	"github.com/thebtf/promptvault/internal/service"
)

// testServer creates a ready Server over a temporary SQLite database.
func testServer(t *testing.T) *Server {
	t.Helper()

	store, err := dbgorm.NewStore(dbgorm.Config{
		Path:     filepath.Join(t.TempDir(), "server.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	broadcaster := sse.NewBroadcaster()

	srv := New(Options{
		Version:        "test-version",
		Services:       service.New(store, broadcaster),
		Issuer:         issuer,
		Broadcaster:    broadcaster,
		DB:             store,
		MetricsEnabled: true,
	})
	srv.SetReady(true)
	return srv
}

func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	detail, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return detail["code"].(string)
}

// signup registers a user and returns its token and id.
func signup(t *testing.T, srv *Server, username string) (string, string) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	return body["access_token"].(string), user["id"].(string)
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "test-version", body["version"])
}

func TestRequireReady(t *testing.T) {
	srv := testServer(t)
	srv.SetReady(false)

	rec := do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "a", "password": "b"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	srv := testServer(t)
	token, id := signup(t, srv, "alice")

	rec := do(t, srv, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	assert.Equal(t, id, me["id"])
	assert.NotContains(t, me, "password_hash")

	rec = do(t, srv, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["access_token"])

	rec = do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{"username": "a", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, rec))
}

func TestPromptLifecycle(t *testing.T) {
	srv := testServer(t)
	alice, _ := signup(t, srv, "alice")
	bob, bobID := signup(t, srv, "bob")

	rec := do(t, srv, http.MethodPost, "/api/prompts", alice, map[string]any{
		"title":   "Summarizer",
		"content": "Summarize the following text.",
		"tags":    []string{"writing"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id := created["id"].(string)
	assert.Equal(t, "PROMPT", created["content_type"])
	assert.Equal(t, "PRIVATE", created["visibility"])

	rec = do(t, srv, http.MethodGet, "/api/prompts/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = do(t, srv, http.MethodPost, "/api/prompts/"+id+"/co-creators", alice, map[string]string{"user_id": bobID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPatch, "/api/prompts/"+id, bob, map[string]string{"content": "Summarize briefly."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Summarize briefly.", decodeBody(t, rec)["content"])

	rec = do(t, srv, http.MethodGet, "/api/prompts/"+id+"/versions", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decodeBody(t, rec)["items"].([]any)
	require.Len(t, versions, 1)

	rec = do(t, srv, http.MethodPost, "/api/prompts/"+id+"/versions/1/restore", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Summarize the following text.", decodeBody(t, rec)["content"])

	rec = do(t, srv, http.MethodPost, "/api/prompts/"+id+"/versions/zero/restore", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/prompts/search?q=summar", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"].([]any), 1)

	rec = do(t, srv, http.MethodGet, "/api/prompts?tags=writing,other&limit=10", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"].([]any), 1)

	rec = do(t, srv, http.MethodGet, "/api/prompts?limit=abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/prompts/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/prompts/"+id, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/prompts/"+id, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = do(t, srv, http.MethodGet, "/api/prompts/"+id+"/activity", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/activity", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["items"])
}

func TestFolderDeleteNonEmpty(t *testing.T) {
	srv := testServer(t)
	token, _ := signup(t, srv, "alice")

	rec := do(t, srv, http.MethodPost, "/api/folders", token, map[string]string{"name": "F1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	folderID := decodeBody(t, rec)["id"].(string)

	rec = do(t, srv, http.MethodPost, "/api/prompts", token, map[string]any{"title": "t", "content": "c", "folder_id": folderID})
	require.Equal(t, http.StatusCreated, rec.Code)
	promptID := decodeBody(t, rec)["id"].(string)

	rec = do(t, srv, http.MethodDelete, "/api/folders/"+folderID, token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeBody(t, rec)["error"].(map[string]any)
	assert.Contains(t, detail["message"], "1 prompts and 0 subfolders")

	rec = do(t, srv, http.MethodPost, "/api/prompts/"+promptID+"/move", token, map[string]any{"folder_id": nil})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/folders/"+folderID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTeamRoutes(t *testing.T) {
	srv := testServer(t)
	alice, _ := signup(t, srv, "alice")
	carol, carolID := signup(t, srv, "carol")

	rec := do(t, srv, http.MethodPost, "/api/teams", alice, map[string]string{"name": "crew"})
	require.Equal(t, http.StatusCreated, rec.Code)
	teamID := decodeBody(t, rec)["id"].(string)

	rec = do(t, srv, http.MethodPost, "/api/teams/"+teamID+"/members", alice, map[string]string{"user_id": carolID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/teams/"+teamID+"/members", carol, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"].([]any), 2)

	rec = do(t, srv, http.MethodPatch, "/api/teams/"+teamID+"/members/"+carolID, carol, map[string]string{"role": "ADMIN"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/teams/"+teamID, carol, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/teams/"+teamID, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	srv := testServer(t)
	token, _ := signup(t, srv, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/prompts", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, rec))
}

func TestRequestIDAndNotFoundRoute(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	const incoming = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	req.Header.Set(requestIDHeader, incoming)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	do(t, srv, http.MethodGet, "/health", "", nil)

	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "promptvault_http_requests_total")
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{apperr.Unauthenticated("who are you"), http.StatusUnauthorized, "UNAUTHORIZED", "who are you"},
		{apperr.Forbidden("no"), http.StatusForbidden, "FORBIDDEN", "no"},
		{apperr.NotFound("gone"), http.StatusNotFound, "NOT_FOUND", "gone"},
		{apperr.InvalidState("busy"), http.StatusBadRequest, "BAD_REQUEST", "busy"},
		{apperr.Validation("bad"), http.StatusBadRequest, "BAD_REQUEST", "bad"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(context.WithValue(context.Background(), requestIDKey{}, "rid"))
			rec := httptest.NewRecorder()

			writeError(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			detail := decodeBody(t, rec)["error"].(map[string]any)
			assert.Equal(t, tt.code, detail["code"])
			assert.Equal(t, tt.message, detail["message"])
			assert.Equal(t, "rid", detail["request_id"])
		})
	}
}

func TestQueryList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?tags=a,b&tags=c&tags=,", nil)
	assert.Equal(t, []string{"a", "b", "c"}, queryList(req, "tags"))
	assert.Nil(t, queryList(req, "missing"))
}
