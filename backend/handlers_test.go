package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"supaupload/provider"
	"supaupload/storage"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	opts      map[string]storage.UploadOptions
	uploadErr error
	removeErr error
	signErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, opts: map[string]storage.UploadOptions{}}
}

func (m *memoryStore) Upload(ctx context.Context, key string, data []byte, opts storage.UploadOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.objects[key] = append([]byte(nil), data...)
	m.opts[key] = opts
	return nil
}

func (m *memoryStore) Remove(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

func (m *memoryStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (m *memoryStore) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return "https://cdn.test/" + key + "?expires=" + expiry.String(), nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type testEnv struct {
	router   *gin.Engine
	store    *memoryStore
	db       *gorm.DB
	provider *provider.Provider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	AppConfig = &Config{MaxUploadSizeMB: 1}

	db, err := ConnectDatabase(DBConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	store := newMemoryStore()
	p := provider.NewWithStore(provider.Config{Directory: "media"}, store)
	h := &MediaHandler{DB: db, Provider: p}
	return &testEnv{router: newRouter(AppConfig, h), store: store, db: db, provider: p}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func newUploadRequest(t *testing.T, folder string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	if folder != "" {
		require.NoError(t, writer.WriteField("path", folder))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func (e *testEnv) upload(t *testing.T) Media {
	t.Helper()
	w := e.do(newUploadRequest(t, "pets", map[string]string{"Cat Photo.PNG": "meow"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created []Media
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created, 1)
	return created[0]
}

func TestHandleUpload(t *testing.T) {
	env := newTestEnv(t)
	media := env.upload(t)

	require.Equal(t, "Cat Photo.PNG", media.Name)
	require.Equal(t, ".png", media.Ext)
	require.Equal(t, "pets", media.Path)
	require.Len(t, media.Hash, 32)
	require.Equal(t, "media/pets/Cat Photo_"+media.Hash+".png", media.StorageKey)
	require.Equal(t, "https://cdn.test/"+media.StorageKey, media.URL)
	require.Equal(t, int64(4), media.SizeBytes)
	require.Equal(t, ScanStatusSkipped, media.ScanStatus)

	require.True(t, env.store.has(media.StorageKey))
	require.Equal(t, "image/png", env.store.opts[media.StorageKey].ContentType)

	var stored Media
	require.NoError(t, env.db.First(&stored, "id = ?", media.ID).Error)
	require.Equal(t, media.StorageKey, stored.StorageKey)
}

func TestHandleUploadStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.uploadErr = errors.New("Bucket not found")

	w := env.do(newUploadRequest(t, "", map[string]string{"a.png": "x"}))
	require.Equal(t, http.StatusBadGateway, w.Code)

	var count int64
	env.db.Model(&Media{}).Count(&count)
	require.Zero(t, count)
}

func TestHandleUploadRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(newUploadRequest(t, "", map[string]string{}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(newUploadRequest(t, "../etc", map[string]string{"a.png": "x"}))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSignedURL(t *testing.T) {
	env := newTestEnv(t)
	media := env.upload(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/files/"+media.ID+"/signed-url", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var signed provider.SignedURL
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signed))
	require.Equal(t, "https://cdn.test/"+media.StorageKey+"?expires=1m0s", signed.URL)
}

func TestHandleSignedURLErrors(t *testing.T) {
	env := newTestEnv(t)
	media := env.upload(t)

	env.store.signErr = storage.ErrSigningUnsupported
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/files/"+media.ID+"/signed-url", nil))
	require.Equal(t, http.StatusNotImplemented, w.Code)

	env.store.signErr = errors.New("Object not found")
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/files/"+media.ID+"/signed-url", nil))
	require.Equal(t, http.StatusBadGateway, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/files/missing/signed-url", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeleteMedia(t *testing.T) {
	env := newTestEnv(t)
	media := env.upload(t)

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+media.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, env.store.has(media.StorageKey))

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/files/"+media.ID, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeleteMediaFailureIsRetried(t *testing.T) {
	env := newTestEnv(t)
	media := env.upload(t)

	env.store.removeErr = errors.New("permission denied")
	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+media.ID, nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.True(t, env.store.has(media.StorageKey))

	var stored Media
	require.NoError(t, env.db.First(&stored, "id = ?", media.ID).Error)
	require.True(t, stored.DeletePending)

	// 待删除记录对外不可见
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/files/"+media.ID, nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	require.Zero(t, sweepPendingDeletes(context.Background(), env.db, env.provider))

	env.store.removeErr = nil
	require.Equal(t, 1, sweepPendingDeletes(context.Background(), env.db, env.provider))
	require.False(t, env.store.has(media.StorageKey))
	require.ErrorIs(t, env.db.First(&stored, "id = ?", media.ID).Error, gorm.ErrRecordNotFound)
}

func TestHandleProviderInfo(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/provider", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, true, info["private"])
	require.Equal(t, "strapi-uploads", info["bucket"])
	require.Equal(t, "media", info["directory"])
	require.Equal(t, "supabase", info["provider"])
}

func TestCleanFolder(t *testing.T) {
	got, ok := cleanFolder(" /a/b/ ")
	require.True(t, ok)
	require.Equal(t, "a/b", got)

	got, ok = cleanFolder("a//b/./c")
	require.True(t, ok)
	require.Equal(t, "a/b/c", got)

	_, ok = cleanFolder("a/../../b")
	require.False(t, ok)

	got, ok = cleanFolder("")
	require.True(t, ok)
	require.Empty(t, got)

	for _, raw := range []string{".", "./", "/./", "./."} {
		got, ok = cleanFolder(raw)
		require.True(t, ok, raw)
		require.Empty(t, got, raw)
	}
}

func TestHandleUploadDotFolder(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(newUploadRequest(t, "./", map[string]string{"cat.png": "meow"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created []Media
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created, 1)
	require.Empty(t, created[0].Path)
	require.Equal(t, "media/cat_"+created[0].Hash+".png", created[0].StorageKey)
}

func TestGenerateHash(t *testing.T) {
	h := generateHash("My Holiday Photo!.jpg")
	require.Regexp(t, `^my_holiday_photo_[0-9a-f]{10}$`, h)
	require.NotEqual(t, h, generateHash("My Holiday Photo!.jpg"))

	require.Regexp(t, `^[0-9a-f]{10}$`, generateHash("日本.png"))
}
