package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vidhost/backend/internal/account"
	"github.com/vidhost/backend/internal/auth"
	"github.com/vidhost/backend/internal/channels"
	"github.com/vidhost/backend/internal/credentials"
	"github.com/vidhost/backend/internal/media"
	"github.com/vidhost/backend/internal/middleware"
	"github.com/vidhost/backend/internal/models"
	"github.com/vidhost/backend/internal/repositories"
)

type uploaderStub struct {
	mu    sync.Mutex
	count int
}

func (u *uploaderStub) Upload(_ context.Context, folder string, file media.File) (string, error) {
	if _, err := io.ReadAll(file.Body); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count++
	return "https://cdn.example.com/" + folder + "/" + strings.Repeat("x", u.count) + "-" + file.Name, nil
}

type cleanerStub struct {
	mu        sync.Mutex
	locations []string
}

func (c *cleanerStub) Enqueue(_ context.Context, location string) error {
	c.mu.Lock()
	c.locations = append(c.locations, location)
	c.mu.Unlock()
	return nil
}

type limiterStub struct{ allow bool }

func (l limiterStub) Allow(string) bool { return l.allow }

type testServer struct {
	handler http.Handler
	store   *repositories.MemoryStore
	cleaner *cleanerStub
}

func newTestServer(t *testing.T, limiter middleware.RateLimiter) *testServer {
	t.Helper()
	store := repositories.NewMemoryStore()
	creds := credentials.NewStore(store, credentials.MinCost)
	signer, err := auth.NewSigner(auth.Config{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	manager := auth.NewManager(signer, creds)
	cleaner := &cleanerStub{}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Accounts:       account.NewService(creds, manager, &uploaderStub{}, cleaner),
		Channels:       channels.NewService(store, store.Videos()),
		Authenticator:  manager,
		AuthLimiter:    limiter,
		Cookies:        CookieConfig{Secure: true},
		MaxUploadBytes: 1 << 20,
	})
	return &testServer{handler: mux, store: store, cleaner: cleaner}
}

type response struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var body response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	if body.StatusCode != rec.Code {
		t.Fatalf("envelope status %d does not match response status %d", body.StatusCode, rec.Code)
	}
	if body.Success != (rec.Code < http.StatusBadRequest) {
		t.Fatalf("unexpected success flag for status %d", rec.Code)
	}
	return rec, body
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, filename := range files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		if _, err := part.Write([]byte("image-bytes")); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func registrationFields(userName, email string) map[string]string {
	return map[string]string{
		"userName": userName,
		"email":    email,
		"fullName": "Test User",
		"password": "correct-horse",
	}
}

func (s *testServer) register(t *testing.T, userName, email string) models.PublicUser {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, APIPrefix+"/register", registrationFields(userName, email), map[string]string{"avatar": "me.png"})
	rec, body := s.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201 got %d (%s)", userName, rec.Code, body.Message)
	}
	var user models.PublicUser
	if err := json.Unmarshal(body.Data, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return user
}

func (s *testServer) login(t *testing.T, userName, password string) (loginResponse, []*http.Cookie) {
	t.Helper()
	rec, body := s.do(t, jsonRequest(t, http.MethodPost, APIPrefix+"/login", map[string]string{"userName": userName, "password": password}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200 got %d (%s)", userName, rec.Code, body.Message)
	}
	var result loginResponse
	if err := json.Unmarshal(body.Data, &result); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return result, rec.Result().Cookies()
}

func bearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRegisterEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	req := multipartRequest(t, http.MethodPost, APIPrefix+"/register", registrationFields("Creator", "creator@example.com"),
		map[string]string{"avatar": "me.png", "coverImage": "cover.jpg"})
	rec, body := srv.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, body.Message)
	}
	raw := string(body.Data)
	if strings.Contains(raw, "password") || strings.Contains(raw, "refreshToken") {
		t.Fatalf("expected sanitized user, got %s", raw)
	}
	var user models.PublicUser
	if err := json.Unmarshal(body.Data, &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.UserName != "creator" || user.CoverImageURL == nil {
		t.Fatalf("unexpected user %+v", user)
	}

	rec, body = srv.do(t, multipartRequest(t, http.MethodPost, APIPrefix+"/register", registrationFields("creator", "other@example.com"), map[string]string{"avatar": "me.png"}))
	if rec.Code != http.StatusConflict || string(body.Data) != "null" {
		t.Fatalf("expected 409 with null data got %d %s", rec.Code, body.Data)
	}

	rec, _ = srv.do(t, multipartRequest(t, http.MethodPost, APIPrefix+"/register", registrationFields("noavatar", "noavatar@example.com"), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing avatar got %d", rec.Code)
	}

	rec, _ = srv.do(t, jsonRequest(t, http.MethodPost, APIPrefix+"/register", registrationFields("json", "json@example.com")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart register got %d", rec.Code)
	}
}

func TestLoginSetsCookies(t *testing.T) {
	srv := newTestServer(t, nil)
	user := srv.register(t, "viewer", "viewer@example.com")

	result, cookies := srv.login(t, "viewer", "correct-horse")
	if result.User.ID != user.ID || result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("unexpected login result %+v", result)
	}

	found := map[string]*http.Cookie{}
	for _, c := range cookies {
		found[c.Name] = c
	}
	for _, name := range []string{"accessToken", "refreshToken"} {
		c, ok := found[name]
		if !ok {
			t.Fatalf("expected %s cookie", name)
		}
		if !c.HttpOnly || !c.Secure || c.Path != "/" {
			t.Fatalf("unexpected cookie attributes %+v", c)
		}
	}
	if found["refreshToken"].Value != result.RefreshToken {
		t.Fatal("expected refresh cookie to carry the returned token")
	}

	rec, _ := srv.do(t, jsonRequest(t, http.MethodPost, APIPrefix+"/login", map[string]string{"userName": "viewer", "password": "nope"}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	rec, _ = srv.do(t, jsonRequest(t, http.MethodPost, APIPrefix+"/login", map[string]string{"userName": "ghost", "password": "nope"}))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	rec, _ = srv.do(t, jsonRequest(t, http.MethodPost, APIPrefix+"/login", map[string]string{"password": "nope"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.register(t, "viewer", "viewer@example.com")
	result, cookies := srv.login(t, "viewer", "correct-horse")

	rec, _ := srv.do(t, httptest.NewRequest(http.MethodGet, APIPrefix+"/current-user", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, APIPrefix+"/current-user", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec, body := srv.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with cookie got %d", rec.Code)
	}
	var current models.PublicUser
	if err := json.Unmarshal(body.Data, &current); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if current.ID != result.User.ID {
		t.Fatalf("unexpected current user %+v", current)
	}

	rec, _ = srv.do(t, bearer(httptest.NewRequest(http.MethodGet, APIPrefix+"/current-user", nil), result.RefreshToken))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh token to be rejected as bearer got %d", rec.Code)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.register(t, "viewer", "viewer@example.com")
	first, _ := srv.login(t, "viewer", "correct-horse")

	req := httptest.NewRequest(http.MethodPost, APIPrefix+"/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: first.RefreshToken})
	rec, body := srv.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, body.Message)
	}
	var rotated refreshResponse
	if err := json.Unmarshal(body.Data, &rotated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rotated.RefreshToken == "" || rotated.RefreshToken == first.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	rec, _ = srv.do(t, jsonRequest(t, http.MethodPost, APIPrefix+"/refresh-token", map[string]string{"refreshToken": first.RefreshToken}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected superseded token to be rejected got %d", rec.Code)
	}

	rec, _ = srv.do(t, bearer(httptest.NewRequest(http.MethodPost, APIPrefix+"/logout", nil), rotated.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected logout 200 got %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("expected cookie %s to be cleared, got %+v", c.Name, c)
		}
	}

	rec, _ = srv.do(t, jsonRequest(t, http.MethodPost, APIPrefix+"/refresh-token", map[string]string{"refreshToken": rotated.RefreshToken}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh after logout to fail got %d", rec.Code)
	}

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodPost, APIPrefix+"/refresh-token", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected missing token to fail got %d", rec.Code)
	}
}

func TestProfileMaintenance(t *testing.T) {
	srv := newTestServer(t, nil)
	user := srv.register(t, "editor", "editor@example.com")
	result, _ := srv.login(t, "editor", "correct-horse")
	token := result.AccessToken

	rec, _ := srv.do(t, bearer(jsonRequest(t, http.MethodPost, APIPrefix+"/password", map[string]string{"oldPassword": "wrong", "newPassword": "next"}), token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong old password got %d", rec.Code)
	}
	rec, _ = srv.do(t, bearer(jsonRequest(t, http.MethodPost, APIPrefix+"/password", map[string]string{"oldPassword": "correct-horse", "newPassword": "next-secret"}), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for password change got %d", rec.Code)
	}
	srv.login(t, "editor", "next-secret")

	form := httptest.NewRequest(http.MethodPatch, APIPrefix+"/updateDetails", strings.NewReader("fullName=New+Name&email=new%40example.com"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec, body := srv.do(t, bearer(form, token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for update details got %d: %s", rec.Code, body.Message)
	}
	var updated models.PublicUser
	if err := json.Unmarshal(body.Data, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.FullName != "New Name" || updated.Email != "new@example.com" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	rec, _ = srv.do(t, bearer(jsonRequest(t, http.MethodPatch, APIPrefix+"/updateDetails", map[string]string{"fullName": "Only Name"}), token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing email got %d", rec.Code)
	}

	rec, body = srv.do(t, bearer(multipartRequest(t, http.MethodPatch, APIPrefix+"/avatar", nil, map[string]string{"avatar": "new.png"}), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for avatar update got %d: %s", rec.Code, body.Message)
	}
	if len(srv.cleaner.locations) != 1 || srv.cleaner.locations[0] != user.AvatarURL {
		t.Fatalf("expected previous avatar to be scheduled for deletion, got %v", srv.cleaner.locations)
	}

	rec, _ = srv.do(t, bearer(multipartRequest(t, http.MethodPatch, APIPrefix+"/coverImage", nil, nil), token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing cover image got %d", rec.Code)
	}
}

func TestChannelEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	creator := srv.register(t, "creator", "creator@example.com")
	srv.register(t, "viewer", "viewer@example.com")
	viewer, _ := srv.login(t, "viewer", "correct-horse")
	token := viewer.AccessToken

	rec, body := srv.do(t, bearer(httptest.NewRequest(http.MethodPost, APIPrefix+"/channel/creator/subscribe", nil), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for subscribe got %d: %s", rec.Code, body.Message)
	}

	rec, body = srv.do(t, bearer(httptest.NewRequest(http.MethodGet, APIPrefix+"/channel/creator", nil), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for profile got %d", rec.Code)
	}
	var profile models.ChannelProfile
	if err := json.Unmarshal(body.Data, &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.ID != creator.ID || profile.SubscriberCount != 1 || profile.SubbedToCount != 0 || !profile.IsSubbed {
		t.Fatalf("unexpected profile %+v", profile)
	}

	rec, _ = srv.do(t, bearer(httptest.NewRequest(http.MethodGet, APIPrefix+"/channel/nobody", nil), token))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	rec, body = srv.do(t, bearer(httptest.NewRequest(http.MethodDelete, APIPrefix+"/channel/creator/subscribe", nil), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unsubscribe got %d", rec.Code)
	}
	if err := json.Unmarshal(body.Data, &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.SubscriberCount != 0 || profile.IsSubbed {
		t.Fatalf("unexpected profile after unsubscribe %+v", profile)
	}

	now := time.Now().UTC()
	videoID := uuid.NewString()
	if err := srv.store.CreateVideo(context.Background(), models.Video{ID: videoID, OwnerID: creator.ID, Title: "First", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create video: %v", err)
	}

	rec, _ = srv.do(t, bearer(httptest.NewRequest(http.MethodPost, APIPrefix+"/history/"+videoID, nil), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for record view got %d", rec.Code)
	}
	rec, _ = srv.do(t, bearer(httptest.NewRequest(http.MethodPost, APIPrefix+"/history/missing", nil), token))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown video got %d", rec.Code)
	}

	rec, body = srv.do(t, bearer(httptest.NewRequest(http.MethodGet, APIPrefix+"/history", nil), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for history got %d", rec.Code)
	}
	var history []map[string]any
	if err := json.Unmarshal(body.Data, &history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one entry got %d", len(history))
	}
	owner, ok := history[0]["owner"].(map[string]any)
	if !ok || owner["userName"] != "creator" {
		t.Fatalf("expected embedded owner object, got %v", history[0]["owner"])
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	srv := newTestServer(t, limiterStub{allow: false})

	for _, path := range []string{"/register", "/login", "/refresh-token"} {
		rec, body := srv.do(t, jsonRequest(t, http.MethodPost, APIPrefix+path, map[string]string{}))
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("%s: expected 429 got %d", path, rec.Code)
		}
		if body.Success {
			t.Fatalf("%s: expected success=false", path)
		}
	}
}

var _ middleware.Authenticator = (*auth.Manager)(nil)
