package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/fileshare/internal/cryptox"
	"github.com/dmitrijs2005/fileshare/internal/logging"
	"github.com/dmitrijs2005/fileshare/internal/server/auth"
	"github.com/dmitrijs2005/fileshare/internal/server/config"
	"github.com/dmitrijs2005/fileshare/internal/server/models"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fileshare/internal/server/search"
	"github.com/dmitrijs2005/fileshare/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T, maxUpload int64, limiter *RateLimiter) *testAPI {
	t.Helper()
	return newTestAPIWithLogger(t, maxUpload, limiter, logging.Nop())
}

func newTestAPIWithLogger(t *testing.T, maxUpload int64, limiter *RateLimiter, l logging.Logger) *testAPI {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	vault, err := cryptox.NewRandomMemoryVault()
	require.NoError(t, err)

	svc := services.NewFileService(
		repomanager.NewMemoryRepositoryManager(),
		blobs.NewMemoryStore(),
		vault,
		cryptox.NewAESGCMEngine(vault),
		search.NewIndex(),
		logging.Nop(),
		cfg,
	)

	h := NewFileHandler(svc, logging.Nop(), maxUpload)
	return &testAPI{t: t, handler: NewRouter(h, testSecret, limiter, l)}
}

func (a *testAPI) token(userID string) string {
	a.t.Helper()
	tok, err := auth.GenerateToken(userID, testSecret, time.Hour)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(userID))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testAPI) upload(userID, filename, content string) models.File {
	a.t.Helper()
	body, ct := multipartBody(a.t, filename, content)
	rec := a.do(http.MethodPost, "/api/files", userID, body, ct)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var f models.File
	require.NoError(a.t, json.NewDecoder(rec.Body).Decode(&f))
	return f
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e.Error
}

func TestPing(t *testing.T) {
	api := newTestAPI(t, 0, nil)
	rec := api.do(http.MethodGet, "/ping", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, 0, nil)

	rec := api.do(http.MethodGet, "/api/files", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing token", decodeError(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid token", decodeError(t, rr))

	expired, err := auth.GenerateToken("alice", testSecret, -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rr = httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "token expired", decodeError(t, rr))
}

func TestUploadAndDownload(t *testing.T) {
	api := newTestAPI(t, 0, nil)
	f := api.upload("alice", "Annual_Report.pdf", "quarterly numbers")

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "Annual_Report.pdf", f.Name)
	assert.Equal(t, int64(len("quarterly numbers")), f.Size)
	assert.Equal(t, models.FileStatusActive, f.Status)

	rec := api.do(http.MethodGet, "/api/files/"+f.ID, "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "quarterly numbers", rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Annual_Report.pdf")
	assert.Equal(t, f.Checksum, rec.Header().Get("X-Checksum-SHA256"))
}

func TestUploadValidation(t *testing.T) {
	api := newTestAPI(t, 0, nil)

	rec := api.do(http.MethodPost, "/api/files", "alice", strings.NewReader("raw"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	rec = api.do(http.MethodPost, "/api/files", "alice", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	api := newTestAPI(t, 512, nil)

	body, ct := multipartBody(t, "big.bin", strings.Repeat("a", 4096))
	rec := api.do(http.MethodPost, "/api/files", "alice", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "upload too large", decodeError(t, rec))
}

func TestErrorStatuses(t *testing.T) {
	api := newTestAPI(t, 0, nil)
	f := api.upload("alice", "a.txt", "data")

	rec := api.do(http.MethodGet, "/api/files/missing", "alice", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/files/"+f.ID, "bob", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, "/api/files/"+f.ID, "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var removed models.File
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&removed))
	assert.Equal(t, models.FileStatusDeleted, removed.Status)

	rec = api.do(http.MethodGet, "/api/files/"+f.ID, "alice", nil, "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestUpdateAndVersions(t *testing.T) {
	api := newTestAPI(t, 0, nil)
	f := api.upload("alice", "draft.txt", "one")

	body, ct := multipartBody(t, "final.txt", "two")
	rec := api.do(http.MethodPut, "/api/files/"+f.ID, "alice", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.File
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "final.txt", updated.Name)

	rec = api.do(http.MethodGet, "/api/files/"+f.ID+"/versions", "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history services.FileHistory
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	require.Len(t, history.Versions, 2)
	assert.Equal(t, 2, history.Versions[1].Version)
	assert.NotContains(t, rec.Body.String(), "blob_ref")

	rec = api.do(http.MethodGet, "/api/files/"+f.ID, "alice", nil, "")
	assert.Equal(t, "two", rec.Body.String())
}

func TestListAndSearch(t *testing.T) {
	api := newTestAPI(t, 0, nil)
	report := api.upload("alice", "Annual_Report.pdf", "r")
	api.upload("alice", "holiday.jpg", "h")
	api.upload("bob", "bob.txt", "b")

	rec := api.do(http.MethodGet, "/api/files", "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.File
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 2)

	rec = api.do(http.MethodGet, "/api/files/search?q=report", "bob", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, []string{report.ID}, res.IDs)

	rec = api.do(http.MethodGet, "/api/files/search?q=reportx", "bob", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ids":[]}`, rec.Body.String())
}

func TestTags(t *testing.T) {
	api := newTestAPI(t, 0, nil)
	f := api.upload("alice", "scan.png", "img")

	rec := api.do(http.MethodPost, "/api/files/"+f.ID+"/tags", "alice", strings.NewReader(`{"tags":["Tax"]}`), "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodPost, "/api/files/"+f.ID+"/tags", "alice", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/files/"+f.ID+"/tags", "bob", strings.NewReader(`{"tags":["x"]}`), "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/api/files/search?tag=tax", "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, []string{f.ID}, res.IDs)
}

func TestRateLimitPerUser(t *testing.T) {
	api := newTestAPI(t, 0, NewRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		rec := api.do(http.MethodGet, "/api/files", "alice", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := api.do(http.MethodGet, "/api/files", "alice", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = api.do(http.MethodGet, "/api/files", "bob", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "buckets are per user")

	rec = api.do(http.MethodGet, "/ping", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "ping is not limited")
}

func TestRequestLogging_RecordsUserID(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(logging.FormatJSON, "info", &buf)
	require.NoError(t, err)
	api := newTestAPIWithLogger(t, 0, nil, l)

	rec := api.do(http.MethodGet, "/api/files", "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		if m["msg"] == "request" {
			entry = m
		}
	}
	require.NotNil(t, entry, "access log line missing:\n%s", buf.String())
	assert.Equal(t, "alice", entry["user_id"])
	assert.Equal(t, "/api/files", entry["path"])

	buf.Reset()
	rec = api.do(http.MethodGet, "/ping", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"user_id":""`)
}

func TestUserIDFromContext(t *testing.T) {
	assert.Equal(t, "", UserIDFromContext(context.Background()))
	assert.Equal(t, "u1", UserIDFromContext(WithUserID(context.Background(), "u1")))
}
