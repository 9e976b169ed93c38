package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authmedia/internal/config"
	"authmedia/internal/logging"
	"authmedia/internal/model"
)

type testClient struct {
	t   *testing.T
	app *App
}

func newTestApp(t *testing.T, mutate func(cfg *config.Config)) *testClient {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Env:              "test",
		BaseURL:          "http://localhost:3000",
		AuthSecret:       "test-secret",
		DatabasePath:     ":memory:",
		StorageDir:       t.TempDir(),
		SessionExpiry:    24 * time.Hour,
		SessionUpdateAge: time.Hour,
		RedisAddr:        mr.Addr(),
		RateLimitMax:     100,
		RateLimitWindow:  time.Minute,
		ImageWorkers:     2,
	}
	if mutate != nil {
		mutate(cfg)
	}

	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &testClient{t: t, app: a}
}

func (tc *testClient) do(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	tc.app.Echo.ServeHTTP(rec, req)
	return rec
}

func (tc *testClient) json(method, path string, payload interface{}, token string) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(tc.t, err)
		body = bytes.NewReader(raw)
	}
	return tc.do(method, path, body, "application/json", token)
}

func (tc *testClient) signUpAndIn(email string) (token, userID string) {
	rec := tc.json(http.MethodPost, "/api/auth/sign-up/email", map[string]string{
		"name": "Test User", "email": email, "password": "password123",
	}, "")
	require.Equal(tc.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = tc.json(http.MethodPost, "/api/auth/sign-in/email", map[string]string{
		"email": email, "password": "password123",
	}, "")
	require.Equal(tc.t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(tc.t, rec, &res)
	return res.Token, res.User.ID
}

func (tc *testClient) promote(email string) {
	require.NoError(tc.t, tc.app.DB.Model(&model.User{}).Where("email = ?", email).Update("role", model.RoleAdmin).Error)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var res struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	decode(t, rec, &res)
	assert.False(t, res.Success)
	assert.Equal(t, code, res.Code)
	assert.NotEmpty(t, res.Error)
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 10, G: 200, B: 90, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	tc := newTestApp(t, nil)
	rec := tc.do(http.MethodGet, "/health", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Status string `json:"status"`
		Env    string `json:"env"`
	}
	decode(t, rec, &res)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "test", res.Env)
}

func TestAuthFlow(t *testing.T) {
	tc := newTestApp(t, nil)

	rec := tc.json(http.MethodPost, "/api/auth/sign-up/email", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"token":null`)

	rec = tc.json(http.MethodPost, "/api/auth/sign-up/email", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "password123",
	}, "")
	assertError(t, rec, http.StatusConflict, "USER_ALREADY_EXISTS")

	rec = tc.json(http.MethodPost, "/api/auth/sign-up/email", map[string]string{"name": "x"}, "")
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = tc.json(http.MethodPost, "/api/auth/sign-in/email", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}, "")
	assertError(t, rec, http.StatusUnauthorized, "INVALID_EMAIL_OR_PASSWORD")

	rec = tc.json(http.MethodPost, "/api/auth/sign-in/email", map[string]string{
		"email": "alice@example.com", "password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "session_token=")
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "SameSite=Lax")
	var signIn struct {
		Redirect bool   `json:"redirect"`
		Token    string `json:"token"`
	}
	decode(t, rec, &signIn)
	require.NotEmpty(t, signIn.Token)

	rec = tc.do(http.MethodGet, "/api/auth/get-session", nil, "", signIn.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/get-session", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: signIn.Token})
	cookieRec := httptest.NewRecorder()
	tc.app.Echo.ServeHTTP(cookieRec, req)
	assert.Contains(t, cookieRec.Body.String(), "alice@example.com")

	rec = tc.do(http.MethodGet, "/api/auth/get-session", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = tc.do(http.MethodGet, "/api/user/me", nil, "", "")
	assertError(t, rec, http.StatusUnauthorized, "UNAUTHENTICATED")

	rec = tc.do(http.MethodPost, "/api/auth/sign-out", nil, "", signIn.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = tc.do(http.MethodGet, "/api/user/me", nil, "", signIn.Token)
	assertError(t, rec, http.StatusUnauthorized, "INVALID_SESSION")
}

func TestVerifyEmailRejectsBadToken(t *testing.T) {
	tc := newTestApp(t, nil)
	rec := tc.do(http.MethodGet, "/api/auth/verify-email?token=nope", nil, "", "")
	assertError(t, rec, http.StatusBadRequest, "INVALID_TOKEN")

	rec = tc.json(http.MethodPost, "/api/auth/forget-password", map[string]string{"email": "ghost@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":true`)
}

func TestAvatarLifecycle(t *testing.T) {
	tc := newTestApp(t, nil)
	token, userID := tc.signUpAndIn("alice@example.com")

	rec := tc.do(http.MethodGet, "/api/user/me", nil, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"avatarUrls":{"full":null,"thumbnail":null}`)

	body, ct := multipartBody(t, "avatar", "notes.txt", "text/plain", []byte("hello"))
	rec = tc.do(http.MethodPost, "/api/user/avatar", body, ct, token)
	assertError(t, rec, http.StatusBadRequest, "INVALID_FILE_TYPE")

	body, ct = multipartBody(t, "avatar", "me.png", "image/png", pngBytes(t, 640, 480))
	rec = tc.do(http.MethodPost, "/api/user/avatar", body, ct, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var up struct {
		Success         bool   `json:"success"`
		Avatar          string `json:"avatar"`
		AvatarThumbnail string `json:"avatarThumbnail"`
		Filename        string `json:"filename"`
	}
	decode(t, rec, &up)
	assert.True(t, up.Success)
	assert.Equal(t, "http://localhost:3000/uploads/avatars/full/"+up.Filename, up.Avatar)

	rec = tc.do(http.MethodGet, "/uploads/avatars/thumbnails/"+up.Filename, nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = tc.do(http.MethodGet, "/api/user/avatar/"+userID, nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), up.AvatarThumbnail)

	rec = tc.do(http.MethodGet, "/api/user/avatar/unknown", nil, "", "")
	assertError(t, rec, http.StatusNotFound, "USER_NOT_FOUND")

	rec = tc.do(http.MethodDelete, "/api/user/avatar", nil, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = tc.do(http.MethodDelete, "/api/user/avatar", nil, "", token)
	assertError(t, rec, http.StatusNotFound, "NO_AVATAR")

	rec = tc.do(http.MethodGet, "/uploads/avatars/full/"+up.Filename, nil, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminMediaLibrary(t *testing.T) {
	tc := newTestApp(t, nil)
	token, _ := tc.signUpAndIn("admin@example.com")

	rec := tc.do(http.MethodGet, "/api/admin/media/list", nil, "", token)
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")

	tc.promote("admin@example.com")

	body, ct := multipartBody(t, "media", "doc.pdf", "application/pdf", []byte("%PDF-1.4\n%test\n"))
	rec = tc.do(http.MethodPost, "/api/admin/media/upload", body, ct, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var up struct {
		Count    int `json:"count"`
		Uploaded []struct {
			ID  uint   `json:"id"`
			URL string `json:"url"`
		} `json:"uploaded"`
		Errors []interface{} `json:"errors"`
	}
	decode(t, rec, &up)
	require.Equal(t, 1, up.Count)
	assert.Empty(t, up.Errors)

	rec = tc.do(http.MethodGet, "/api/admin/media/list?category=media&limit=500", nil, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total      int64 `json:"total"`
		Pagination struct {
			Limit int `json:"limit"`
		} `json:"pagination"`
		Stats struct {
			MediaCount int64 `json:"mediaCount"`
		} `json:"stats"`
	}
	decode(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 100, list.Pagination.Limit)
	assert.Equal(t, int64(1), list.Stats.MediaCount)

	rec = tc.do(http.MethodGet, "/api/admin/media/list?category=video", nil, "", token)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = tc.do(http.MethodDelete, "/api/admin/media/abc", nil, "", token)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = tc.do(http.MethodDelete, fmt.Sprintf("/api/admin/media/%d", up.Uploaded[0].ID), nil, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = tc.do(http.MethodDelete, fmt.Sprintf("/api/admin/media/%d", up.Uploaded[0].ID), nil, "", token)
	assertError(t, rec, http.StatusNotFound, "MEDIA_NOT_FOUND")
}

func TestAdminSessions(t *testing.T) {
	tc := newTestApp(t, nil)
	adminToken, adminID := tc.signUpAndIn("admin@example.com")
	userToken, userID := tc.signUpAndIn("user@example.com")
	tc.promote("admin@example.com")

	rec := tc.do(http.MethodGet, "/api/auth/admin/list-sessions", nil, "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []struct {
			ID     string `json:"id"`
			UserID string `json:"userId"`
			User   struct {
				Email string `json:"email"`
			} `json:"user"`
		} `json:"sessions"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Sessions, 2)
	assert.NotContains(t, rec.Body.String(), adminToken)

	var adminSession, userSession string
	for _, s := range list.Sessions {
		switch s.UserID {
		case adminID:
			adminSession = s.ID
		case userID:
			userSession = s.ID
			assert.Equal(t, "user@example.com", s.User.Email)
		}
	}

	rec = tc.json(http.MethodPost, "/api/auth/admin/revoke-session", map[string]string{}, adminToken)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = tc.json(http.MethodPost, "/api/auth/admin/revoke-session", map[string]string{"sessionId": adminSession}, adminToken)
	assertError(t, rec, http.StatusBadRequest, "SELF_REVOKE")

	rec = tc.json(http.MethodPost, "/api/auth/admin/revoke-session", map[string]string{"sessionId": "missing"}, adminToken)
	assertError(t, rec, http.StatusNotFound, "SESSION_NOT_FOUND")

	rec = tc.json(http.MethodPost, "/api/auth/admin/revoke-session", map[string]string{"sessionId": userSession}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = tc.do(http.MethodGet, "/api/user/me", nil, "", userToken)
	assertError(t, rec, http.StatusUnauthorized, "INVALID_SESSION")
}

func TestAdminBanBlocksSignIn(t *testing.T) {
	tc := newTestApp(t, nil)
	adminToken, adminID := tc.signUpAndIn("admin@example.com")
	_, userID := tc.signUpAndIn("user@example.com")
	tc.promote("admin@example.com")

	rec := tc.json(http.MethodPost, "/api/auth/admin/ban-user", map[string]interface{}{"userId": adminID}, adminToken)
	assertError(t, rec, http.StatusBadRequest, "SELF_ACTION")

	rec = tc.json(http.MethodPost, "/api/auth/admin/ban-user", map[string]interface{}{
		"userId": userID, "banReason": "spam",
	}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = tc.json(http.MethodPost, "/api/auth/sign-in/email", map[string]string{
		"email": "user@example.com", "password": "password123",
	}, "")
	assertError(t, rec, http.StatusForbidden, "BANNED_USER")
	assert.Contains(t, rec.Body.String(), "spam")

	rec = tc.do(http.MethodGet, "/api/auth/admin/list-users?filterField=banned&filterValue=true", nil, "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)
}

func TestRateLimitedSignIn(t *testing.T) {
	tc := newTestApp(t, func(cfg *config.Config) { cfg.RateLimitMax = 2 })
	payload := map[string]string{"email": "ghost@example.com", "password": "password123"}

	for i := 0; i < 2; i++ {
		rec := tc.json(http.MethodPost, "/api/auth/sign-in/email", payload, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := tc.json(http.MethodPost, "/api/auth/sign-in/email", payload, "")
	assertError(t, rec, http.StatusTooManyRequests, "TOO_MANY_REQUESTS")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	tc := newTestApp(t, func(cfg *config.Config) { cfg.RateLimitMax = 2 })
	raw, err := json.Marshal(map[string]string{"email": "ghost@example.com", "password": "password123"})
	require.NoError(t, err)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in/email", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i+1))
		rec := httptest.NewRecorder()
		tc.app.Echo.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{
		http.StatusUnauthorized,
		http.StatusUnauthorized,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}

func TestUnknownRoute(t *testing.T) {
	tc := newTestApp(t, nil)
	rec := tc.do(http.MethodGet, "/api/nope", nil, "", "")
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
}
