package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lenderapp/lender/internal/auth"
	"github.com/lenderapp/lender/internal/db"
	"github.com/lenderapp/lender/internal/model"
	"github.com/lenderapp/lender/internal/notify"
	"github.com/lenderapp/lender/internal/store"
)

const testSessionSecret = "test-session-secret-0123456789abcdef"

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	sender *fakeSender
}

func newTestEnv(t *testing.T, reminders *ReminderLimiter) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	sender := &fakeSender{}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter(Config{
		DB:            database,
		SessionSecret: testSessionSecret,
		SessionTTL:    time.Hour,
		BcryptCost:    bcrypt.MinCost,
		Notifier:      notify.NewDispatcher(sender, quiet),
		Reminders:     reminders,
	})
	server := httptest.NewServer(LoggingMiddleware(router))
	t.Cleanup(server.Close)

	return &testEnv{server: server, db: database, sender: sender}
}

// bearer creates an account directly in the store and returns its token.
func (e *testEnv) bearer(t *testing.T, name string) (*model.User, string) {
	t.Helper()
	u, err := store.CreateUser(context.Background(), e.db, name, strings.ToLower(name)+"@example.com", "unused")
	require.NoError(t, err)
	token, _, err := auth.GenerateToken(testSessionSecret, u.ID, u.Name, u.Email, time.Hour)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func itemInput(name string) map[string]any {
	return map[string]any{
		"transaction_type": "lending",
		"item_name":        name,
		"contact_name":     "Sam",
		"contact_email":    "sam@example.com",
		"return_date":      "2026-12-01",
	}
}

func (e *testEnv) createItem(t *testing.T, token, name string) model.Item {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/items", token, itemInput(name))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Item](t, resp)
}

func TestCreateThenGetItem(t *testing.T) {
	env := newTestEnv(t, nil)
	user, token := env.bearer(t, "Alec")

	body := itemInput("Drill")
	body["owner_id"] = 9999
	body["is_returned"] = true
	resp := env.do(t, http.MethodPost, "/api/items", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.Item](t, resp)

	resp = env.do(t, http.MethodGet, "/api/items/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.Item](t, resp)

	assert.Equal(t, user.ID, got.OwnerID)
	assert.False(t, got.IsReturned)
	assert.Nil(t, got.ReturnedAt)
	assert.Equal(t, "Drill", got.ItemName)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateItemValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.bearer(t, "Alec")

	body := itemInput("")
	body["contact_email"] = "not-an-email"
	resp := env.do(t, http.MethodPost, "/api/items", token, body)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	v := decode[validationResponse](t, resp)
	assert.Equal(t, "validation failed", v.Error)
	assert.Contains(t, v.Fields, "item_name")
	assert.Contains(t, v.Fields, "contact_email")
}

func TestUnauthenticatedCallers(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.bearer(t, "Alec")
	item := env.createItem(t, token, "Drill")

	resp := env.do(t, http.MethodGet, "/api/items", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Item](t, resp))

	resp = env.do(t, http.MethodGet, "/api/items/"+item.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/items", "", itemInput("Saw"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/items/"+item.ID, "", map[string]any{"notes": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/items/"+item.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForeignItemsAreNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alec := env.bearer(t, "Alec")
	_, bea := env.bearer(t, "Bea")
	item := env.createItem(t, alec, "Drill")

	ids := map[string]string{
		"foreign":   item.ID,
		"missing":   uuid.NewString(),
		"malformed": "not-a-uuid",
	}
	type outcome struct {
		status int
		body   string
	}
	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		seen := map[string]outcome{}
		for kind, id := range ids {
			var body any
			if method == http.MethodPatch {
				body = map[string]any{"notes": "mine now"}
			}
			resp := env.do(t, method, "/api/items/"+id, bea, body)
			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			seen[kind] = outcome{resp.StatusCode, string(raw)}
		}
		assert.Equal(t, http.StatusNotFound, seen["foreign"].status, method)
		assert.Equal(t, seen["missing"], seen["foreign"], method)
		assert.Equal(t, seen["malformed"], seen["foreign"], method)
	}

	resp := env.do(t, http.MethodGet, "/api/items/"+item.ID, alec, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.Item](t, resp)
	assert.Equal(t, "", got.Notes)
}

func TestPatchReturnedIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.bearer(t, "Alec")
	item := env.createItem(t, token, "Drill")

	resp := env.do(t, http.MethodPatch, "/api/items/"+item.ID, token, map[string]any{"is_returned": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[model.Item](t, resp)
	require.True(t, first.IsReturned)
	require.NotNil(t, first.ReturnedAt)

	resp = env.do(t, http.MethodPatch, "/api/items/"+item.ID, token, map[string]any{"is_returned": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[model.Item](t, resp)
	assert.Equal(t, first, second)

	resp = env.do(t, http.MethodPatch, "/api/items/"+item.ID, token, map[string]any{"is_returned": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reopened := decode[model.Item](t, resp)
	assert.False(t, reopened.IsReturned)
	assert.Nil(t, reopened.ReturnedAt)
}

func TestPatchNotesRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.bearer(t, "Alec")
	created := env.createItem(t, token, "Drill")

	resp := env.do(t, http.MethodGet, "/api/items/"+created.ID, token, nil)
	before := decode[model.Item](t, resp)

	resp = env.do(t, http.MethodPatch, "/api/items/"+created.ID, token, map[string]any{"notes": "x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/items/"+created.ID, token, nil)
	after := decode[model.Item](t, resp)
	assert.Equal(t, "x", after.Notes)

	after.Notes = before.Notes
	after.UpdatedAt = before.UpdatedAt
	assert.Equal(t, before, after)
}

func TestPatchValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.bearer(t, "Alec")
	item := env.createItem(t, token, "Drill")

	resp := env.do(t, http.MethodPatch, "/api/items/"+item.ID, token, map[string]any{"return_date": "someday"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	v := decode[validationResponse](t, resp)
	assert.Contains(t, v.Fields, "return_date")
}

func TestListItems(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alec := env.bearer(t, "Alec")
	_, bea := env.bearer(t, "Bea")

	a := env.createItem(t, alec, "A")
	env.createItem(t, alec, "B")
	env.createItem(t, alec, "C")
	env.createItem(t, bea, "Bea's")

	resp := env.do(t, http.MethodGet, "/api/items", alec, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var names []string
	for _, it := range decode[[]model.Item](t, resp) {
		names = append(names, it.ItemName)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)

	env.do(t, http.MethodPatch, "/api/items/"+a.ID, alec, map[string]any{"is_returned": true})

	resp = env.do(t, http.MethodGet, "/api/items?status=active", alec, nil)
	assert.Len(t, decode[[]model.Item](t, resp), 2)

	resp = env.do(t, http.MethodGet, "/api/items?limit=1&offset=1", alec, nil)
	page := decode[[]model.Item](t, resp)
	require.Len(t, page, 1)
	assert.Equal(t, "B", page[0].ItemName)

	resp = env.do(t, http.MethodGet, "/api/items?limit=lots", alec, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/items?status=lost", alec, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDeleteItem(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.bearer(t, "Alec")
	item := env.createItem(t, token, "Drill")

	resp := env.do(t, http.MethodDelete, "/api/items/"+item.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/items/"+item.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/items/"+item.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// browser is a cookie-carrying client that echoes the CSRF cookie.
type browser struct {
	t      *testing.T
	client *http.Client
	base   *url.URL
}

func newBrowser(t *testing.T, env *testEnv) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	return &browser{t: t, client: &http.Client{Jar: jar}, base: base}
}

func (b *browser) csrf() string {
	for _, c := range b.client.Jar.Cookies(b.base) {
		if c.Name == auth.CSRFCookieName {
			return c.Value
		}
	}
	return ""
}

func (b *browser) do(method, path string, body any, withCSRF bool) *http.Response {
	b.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, b.base.String()+path, reader)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	if withCSRF {
		req.Header.Set(auth.CSRFHeaderName, b.csrf())
	}
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCookieSessionWithCSRF(t *testing.T) {
	env := newTestEnv(t, nil)
	b := newBrowser(t, env)

	registration := map[string]string{"name": "Alec", "email": "Alec@Example.com", "password": "hunter2hunter2"}

	resp := b.do(http.MethodPost, "/api/auth/register", registration, true)
	assert.Equal(t, StatusCSRFMismatch, resp.StatusCode, "no csrf cookie yet")

	resp = b.do(http.MethodGet, "/api/csrf-cookie", nil, false)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NotEmpty(t, b.csrf())

	resp = b.do(http.MethodPost, "/api/auth/register", registration, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[sessionResponse](t, resp)
	assert.Equal(t, "alec@example.com", session.User.Email)
	require.NotEmpty(t, session.Token)

	resp = b.do(http.MethodPost, "/api/items", itemInput("Drill"), false)
	assert.Equal(t, StatusCSRFMismatch, resp.StatusCode)

	resp = b.do(http.MethodPost, "/api/items", itemInput("Drill"), true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = b.do(http.MethodGet, "/api/auth/me", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alec", decode[model.User](t, resp).Name)

	resp = b.do(http.MethodPost, "/api/auth/logout", nil, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = b.do(http.MethodGet, "/api/auth/me", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/auth/me", session.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked token")

	resp = b.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "alec@example.com", "password": "hunter2hunter2"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = b.do(http.MethodGet, "/api/items", nil, false)
	assert.Len(t, decode[[]model.Item](t, resp), 1)
}

func TestLoginAndRegisterErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	b := newBrowser(t, env)
	b.do(http.MethodGet, "/api/csrf-cookie", nil, false)

	reg := map[string]string{"name": "Alec", "email": "alec@example.com", "password": "hunter2hunter2"}
	resp := b.do(http.MethodPost, "/api/auth/register", reg, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = b.do(http.MethodPost, "/api/auth/register", reg, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = b.do(http.MethodPost, "/api/auth/register", map[string]string{"name": "", "email": "x", "password": "short"}, true)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	v := decode[validationResponse](t, resp)
	assert.Len(t, v.Fields, 3)

	long := map[string]string{"name": "Bea", "email": "bea@example.com", "password": strings.Repeat("p", 80)}
	resp = b.do(http.MethodPost, "/api/auth/register", long, true)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	v = decode[validationResponse](t, resp)
	assert.Equal(t, map[string]string{"password": "password must be at most 72 bytes"}, v.Fields)

	resp = b.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "alec@example.com", "password": "wrong-password"}, true)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = b.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "nobody@example.com", "password": "hunter2hunter2"}, true)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginUnknownEmailComparesHash(t *testing.T) {
	h := &AuthHandler{DB: db.NewTestDB(t), SessionSecret: testSessionSecret, SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost}

	body := strings.NewReader(`{"email":"nobody@example.com","password":"hunter2hunter2"}`)
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", body))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, h.dummyHash)
	cost, err := bcrypt.Cost(h.dummyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestNotifySendsReminder(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.bearer(t, "Alec")
	item := env.createItem(t, token, "Drill")

	resp := env.do(t, http.MethodPost, "/api/items/"+item.ID+"/notify", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "sam@example.com", env.sender.sent[0].To)
	assert.Equal(t, "alec@example.com", env.sender.sent[0].ReplyTo)

	resp = env.do(t, http.MethodGet, "/api/items/"+item.ID, token, nil)
	assert.Equal(t, item, decode[model.Item](t, resp))
}

func TestNotifyFailureLeavesItemUnchanged(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sender.err = errors.New("relay refused")
	_, token := env.bearer(t, "Alec")
	item := env.createItem(t, token, "Drill")

	resp := env.do(t, http.MethodPost, "/api/items/"+item.ID+"/notify", token, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/items/"+item.ID, token, nil)
	assert.Equal(t, item, decode[model.Item](t, resp))
}

func TestNotifyForeignAndRateLimited(t *testing.T) {
	env := newTestEnv(t, NewReminderLimiter(1, 1))
	_, alec := env.bearer(t, "Alec")
	_, bea := env.bearer(t, "Bea")
	item := env.createItem(t, alec, "Drill")

	resp := env.do(t, http.MethodPost, "/api/items/"+item.ID+"/notify", bea, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/items/"+item.ID+"/notify", alec, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/items/"+item.ID+"/notify", alec, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Len(t, env.sender.sent, 1)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (e *testEnv) upload(t *testing.T, id, token string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("photo", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, e.server.URL+"/api/items/"+id+"/photo", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestItemPhoto(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alec := env.bearer(t, "Alec")
	_, bea := env.bearer(t, "Bea")
	item := env.createItem(t, alec, "Drill")

	resp := env.do(t, http.MethodGet, "/api/items/"+item.ID+"/photo", alec, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.upload(t, item.ID, alec, []byte("definitely not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.upload(t, item.ID, bea, pngBytes(t))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.upload(t, item.ID, alec, pngBytes(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[model.Item](t, resp).HasPhoto)

	resp = env.do(t, http.MethodGet, "/api/items/"+item.ID+"/photo", alec, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp = env.do(t, http.MethodGet, "/api/items/"+item.ID+"/photo", bea, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/items", "", nil)
	_, err := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)

	rec := httptest.NewRecorder()
	HealthHandler(env.db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
