package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/smartbook/backend/handlers"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"github.com/smartbook/backend/store/memstore"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "handler-test-secret"

type storedObject struct {
	contentType string
	data        []byte
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]storedObject
	fail    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]storedObject{}}
}

func (s *fakeStorage) Upload(_ context.Context, prefix, name string, body io.Reader, contentType string) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := service.ObjectKey(prefix, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storedObject{contentType: contentType, data: data}
	return key, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) GetObject(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("no such key %q", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

func (s *fakeStorage) PresignedGetURL(_ context.Context, key string, expiry time.Duration, _ string) (string, error) {
	return fmt.Sprintf("https://files.test/%s?ttl=%d", key, int(expiry.Seconds())), nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *fakeMailer) SendOTP(_ context.Context, to, _, code string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type fakeIdentity struct {
	identities map[string]*service.GoogleIdentity
}

func (f *fakeIdentity) Verify(_ context.Context, idToken string) (*service.GoogleIdentity, error) {
	id, ok := f.identities[idToken]
	if !ok {
		return nil, fmt.Errorf("%w: bad token", models.ErrUnauthorized)
	}
	return id, nil
}

type fakeMetadata struct {
	meta *service.BookMetadata
	err  error
}

func (f *fakeMetadata) FetchByISBN(context.Context, string) (*service.BookMetadata, error) {
	return f.meta, f.err
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(context.Context, string) (string, error) {
	return "a short summary", nil
}

type harness struct {
	t        *testing.T
	store    *memstore.Store
	storage  *fakeStorage
	mailer   *fakeMailer
	metadata *fakeMetadata
	router   http.Handler
}

func newHarness(t *testing.T, opts ...func(*handlers.Deps)) *harness {
	h := &harness{
		t:        t,
		store:    memstore.New(),
		storage:  newFakeStorage(),
		mailer:   &fakeMailer{codes: map[string]string{}},
		metadata: &fakeMetadata{},
	}
	deps := handlers.Deps{
		Library:     service.NewLibrary(h.store),
		Store:       h.store,
		Revocations: memstore.NewRevocations(),
		Storage:     h.storage,
		Mailer:      h.mailer,
		Identity: &fakeIdentity{identities: map[string]*service.GoogleIdentity{
			"good-token":       {Email: "Gina@Example.com", Name: "Gina", Picture: "https://img.test/gina.png", Verified: true},
			"unverified-token": {Email: "eve@example.com", Name: "Eve"},
		}},
		Metadata:       h.metadata,
		Summarizer:     fakeSummarizer{},
		JWTSecret:      testSecret,
		TokenTTL:       time.Hour,
		MaxUploadBytes: 1 << 20,
		CORSOrigins:    []string{"*"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.router = handlers.NewRouter(deps)
	return h
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	return h.send(req, token)
}

func (h *harness) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type account struct {
	id    primitive.ObjectID
	email string
	token string
}

func (h *harness) register(name string) account {
	h.t.Helper()
	email := name + "@example.com"
	rec := h.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": name, "email": email, "password": "secret123",
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[handlers.AuthResponse](h.t, rec)
	id, err := primitive.ObjectIDFromHex(resp.ID)
	require.NoError(h.t, err)
	return account{id: id, email: email, token: resp.Token}
}

func (h *harness) admin(name string) account {
	h.t.Helper()
	a := h.register(name)
	require.NoError(h.t, h.store.SetRole(context.Background(), a.id, models.RoleAdmin))
	return a
}

type filePart struct {
	field, name, contentType string
	data                     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}
