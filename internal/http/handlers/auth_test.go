package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/auth"
	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/http/handlers"
	"github.com/helloworldit/portal/internal/http/middlewares"
	"github.com/helloworldit/portal/internal/security"
	"github.com/helloworldit/portal/internal/session"
)

// keep gin quiet during tests
func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserStore struct {
	getByUsernameFn func(ctx context.Context, username string) (user.User, error)
	getByIDFn       func(ctx context.Context, id int64) (user.User, error)
	createFn        func(ctx context.Context, p user.CreateParams) (user.User, error)
	searchFn        func(ctx context.Context, q string, limit, offset int) ([]user.User, error)
	countFn         func(ctx context.Context, q string) (int, error)
	updateFn        func(ctx context.Context, id int64, p user.UpdateParams) (user.User, error)
	setActiveFn     func(ctx context.Context, id int64, active bool) error
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (user.User, error) {
	if f.getByUsernameFn != nil {
		return f.getByUsernameFn(ctx, username)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) Create(ctx context.Context, p user.CreateParams) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, p)
	}
	return user.User{}, nil
}

func (f *fakeUserStore) Search(ctx context.Context, q string, limit, offset int) ([]user.User, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, q, limit, offset)
	}
	return []user.User{}, nil
}

func (f *fakeUserStore) CountSearch(ctx context.Context, q string) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx, q)
	}
	return 0, nil
}

func (f *fakeUserStore) Update(ctx context.Context, id int64, p user.UpdateParams) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, p)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) SetActive(ctx context.Context, id int64, active bool) error {
	if f.setActiveFn != nil {
		return f.setActiveFn(ctx, id, active)
	}
	return nil
}

type fakeImageSaver struct {
	saved   []string
	removed []string
}

func (f *fakeImageSaver) Save(filename string, r io.Reader) (string, error) {
	f.saved = append(f.saved, filename)
	return "/uploads/fake.png", nil
}

func (f *fakeImageSaver) Remove(webPath string) error {
	f.removed = append(f.removed, webPath)
	return nil
}

func activeUser(username, plainPassword, role string) user.User {
	roleID := user.RoleStudentID
	if role == user.RoleAdmin {
		roleID = user.RoleAdminID
	}
	return user.User{
		ID:           42,
		Username:     username,
		PasswordHash: security.Digest(plainPassword),
		FullName:     "Test User",
		Email:        "test@example.com",
		RoleID:       roleID,
		RoleName:     role,
		IsActive:     true,
	}
}

func newAuthEnv(store *fakeUserStore) (*handlers.AuthHandler, session.Store) {
	sessions := session.NewMemoryStore()
	jwtManager := auth.NewManager("test-secret", 30*time.Minute)
	h := handlers.NewAuthHandler(store, store, &fakeImageSaver{}, jwtManager, sessions, config.Config{SessionTTLMinutes: 30}, testLogger())
	return h, sessions
}

func postJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error envelope in %s", w.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestLoginSuccessByRole(t *testing.T) {
	cases := []struct {
		name         string
		role         string
		wantRedirect string
	}{
		{"admin goes to admin", user.RoleAdmin, "/admin"},
		{"student goes to student", user.RoleStudent, "/student"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := activeUser("jdoe", "secret123", tc.role)
			store := &fakeUserStore{
				getByUsernameFn: func(ctx context.Context, username string) (user.User, error) {
					if username != "jdoe" {
						return user.User{}, user.ErrNotFound
					}
					return u, nil
				},
			}
			h, sessions := newAuthEnv(store)

			r := gin.New()
			r.POST("/auth/login", h.Login)

			w := postJSON(t, r, "/auth/login", gin.H{"username": "jdoe", "password": "secret123"})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}

			body := decodeBody(t, w)
			if body["redirect"] != tc.wantRedirect {
				t.Errorf("redirect = %v, want %s", body["redirect"], tc.wantRedirect)
			}

			token, _ := body["token"].(string)
			if token == "" {
				t.Fatal("no token in response")
			}

			// the token's jti must point at a live session
			claims, err := auth.NewManager("test-secret", 30*time.Minute).VerifySessionToken(token)
			if err != nil {
				t.Fatalf("verify token: %v", err)
			}
			sess, err := sessions.Get(context.Background(), claims.JTI)
			if err != nil {
				t.Fatalf("session lookup: %v", err)
			}
			if sess.Username != "jdoe" || sess.Role != tc.role {
				t.Errorf("session = %+v", sess)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	u := activeUser("jdoe", "secret123", user.RoleStudent)
	store := &fakeUserStore{
		getByUsernameFn: func(ctx context.Context, username string) (user.User, error) {
			return u, nil
		},
	}
	h, _ := newAuthEnv(store)

	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := postJSON(t, r, "/auth/login", gin.H{"username": "jdoe", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != "invalid_credentials" {
		t.Errorf("code = %q, want invalid_credentials", code)
	}
}

func TestLoginUnknownUsername(t *testing.T) {
	h, _ := newAuthEnv(&fakeUserStore{})

	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := postJSON(t, r, "/auth/login", gin.H{"username": "ghost", "password": "whatever"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != "invalid_credentials" {
		t.Errorf("code = %q, want invalid_credentials", code)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	u := activeUser("jdoe", "secret123", user.RoleStudent)
	u.IsActive = false
	store := &fakeUserStore{
		getByUsernameFn: func(ctx context.Context, username string) (user.User, error) {
			return u, nil
		},
	}
	h, _ := newAuthEnv(store)

	r := gin.New()
	r.POST("/auth/login", h.Login)

	// right password, dead account: the distinct 403 outcome
	w := postJSON(t, r, "/auth/login", gin.H{"username": "jdoe", "password": "secret123"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if code := errorCode(t, w); code != "account_deactivated" {
		t.Errorf("code = %q, want account_deactivated", code)
	}

	// wrong password on the same account must NOT leak the state
	w = postJSON(t, r, "/auth/login", gin.H{"username": "jdoe", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func postForm(t *testing.T, r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerForm() url.Values {
	return url.Values{
		"username":        {"newkid"},
		"password":        {"secret123"},
		"confirmPassword": {"secret123"},
		"fullName":        {"New Kid"},
		"email":           {"new@example.com"},
		"phone":           {"0123456789"},
	}
}

func TestRegisterCreatesStudentByDefault(t *testing.T) {
	var captured user.CreateParams
	store := &fakeUserStore{
		createFn: func(ctx context.Context, p user.CreateParams) (user.User, error) {
			captured = p
			return user.User{ID: 7, Username: p.Username, RoleID: p.RoleID, RoleName: user.RoleStudent, IsActive: true}, nil
		},
	}
	h, _ := newAuthEnv(store)

	r := gin.New()
	r.POST("/auth/register", h.Register)

	w := postForm(t, r, "/auth/register", registerForm())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if captured.RoleID != user.RoleStudentID {
		t.Errorf("RoleID = %d, want student (%d)", captured.RoleID, user.RoleStudentID)
	}
	if captured.PasswordHash != security.Digest("secret123") {
		t.Error("stored hash is not the digest of the submitted password")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	store := &fakeUserStore{
		createFn: func(ctx context.Context, p user.CreateParams) (user.User, error) {
			return user.User{}, user.ErrUsernameTaken
		},
	}
	h, _ := newAuthEnv(store)

	r := gin.New()
	r.POST("/auth/register", h.Register)

	w := postForm(t, r, "/auth/register", registerForm())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != "user_exists" {
		t.Errorf("code = %q, want user_exists", code)
	}
}

func TestRegisterPasswordMismatch(t *testing.T) {
	h, _ := newAuthEnv(&fakeUserStore{})

	r := gin.New()
	r.POST("/auth/register", h.Register)

	form := registerForm()
	form.Set("confirmPassword", "different")

	w := postForm(t, r, "/auth/register", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestLogoutKillsSession(t *testing.T) {
	u := activeUser("jdoe", "secret123", user.RoleStudent)
	store := &fakeUserStore{
		getByUsernameFn: func(ctx context.Context, username string) (user.User, error) {
			return u, nil
		},
	}
	h, sessions := newAuthEnv(store)
	jwtManager := auth.NewManager("test-secret", 30*time.Minute)
	mw := middlewares.NewAuthMiddleware(jwtManager, sessions)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", mw.RequireAuth(), h.Logout)
	r.GET("/auth/me", mw.RequireAuth(), h.Me)

	login := postJSON(t, r, "/auth/login", gin.H{"username": "jdoe", "password": "secret123"})
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d", login.Code)
	}
	token, _ := decodeBody(t, login)["token"].(string)

	authedReq := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := authedReq(http.MethodGet, "/auth/me"); w.Code != http.StatusOK {
		t.Fatalf("me before logout: %d", w.Code)
	}
	if w := authedReq(http.MethodPost, "/auth/logout"); w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}

	// same token, dead session
	if w := authedReq(http.MethodGet, "/auth/me"); w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", w.Code)
	}
}
