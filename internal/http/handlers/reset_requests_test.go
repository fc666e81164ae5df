package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/broadcast"
	"github.com/helloworldit/portal/internal/domain/resetreq"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/http/handlers"
	"github.com/helloworldit/portal/internal/jobs"
	"github.com/helloworldit/portal/internal/repo/postgres"
	"github.com/helloworldit/portal/internal/security"
)

type fakeResetStore struct {
	createFn  func(ctx context.Context, username, requestType string) (resetreq.Request, error)
	listFn    func(ctx context.Context, status string) ([]resetreq.Request, error)
	getFn     func(ctx context.Context, id int64) (resetreq.Request, error)
	resolveFn func(ctx context.Context, p postgres.ResolveParams) (resetreq.Request, error)
}

func (f *fakeResetStore) Create(ctx context.Context, username, requestType string) (resetreq.Request, error) {
	if f.createFn != nil {
		return f.createFn(ctx, username, requestType)
	}
	return resetreq.Request{}, nil
}

func (f *fakeResetStore) List(ctx context.Context, status string) ([]resetreq.Request, error) {
	if f.listFn != nil {
		return f.listFn(ctx, status)
	}
	return []resetreq.Request{}, nil
}

func (f *fakeResetStore) GetByID(ctx context.Context, id int64) (resetreq.Request, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return resetreq.Request{}, resetreq.ErrNotFound
}

func (f *fakeResetStore) Resolve(ctx context.Context, p postgres.ResolveParams) (resetreq.Request, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, p)
	}
	return resetreq.Request{}, nil
}

type fakePublisher struct {
	events []broadcast.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, ev broadcast.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func newResetRouter(store *fakeResetStore, users *fakeUserStore, pub *fakePublisher) *gin.Engine {
	h := handlers.NewResetRequestsHandler(store, users, pub, testLogger())
	r := gin.New()
	r.POST("/password-requests", h.Submit)
	r.GET("/admin/password-requests", h.List)
	r.POST("/admin/password-requests/:id/resolve", h.Resolve)
	return r
}

func activeStudentStore() *fakeUserStore {
	return &fakeUserStore{
		getByUsernameFn: func(ctx context.Context, username string) (user.User, error) {
			if username != "jdoe" {
				return user.User{}, user.ErrNotFound
			}
			u := activeUser("jdoe", "old-pass", user.RoleStudent)
			return u, nil
		},
	}
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	var created resetreq.Request
	store := &fakeResetStore{
		createFn: func(ctx context.Context, username, requestType string) (resetreq.Request, error) {
			created = resetreq.Request{
				ID:          1,
				Username:    username,
				RequestType: requestType,
				Status:      resetreq.StatusPending,
				RequestDate: time.Now().UTC(),
			}
			return created, nil
		},
	}
	pub := &fakePublisher{}
	r := newResetRouter(store, activeStudentStore(), pub)

	w := postJSON(t, r, "/password-requests", gin.H{"username": "jdoe", "requestType": resetreq.ActionResetPassword})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if created.Username != "jdoe" || created.RequestType != resetreq.ActionResetPassword {
		t.Errorf("created = %+v", created)
	}
	if len(pub.events) != 1 || pub.events[0].Status != resetreq.StatusPending {
		t.Errorf("broadcast events = %+v, want one Pending", pub.events)
	}
}

func TestSubmitUnknownUsername(t *testing.T) {
	r := newResetRouter(&fakeResetStore{}, &fakeUserStore{}, &fakePublisher{})

	w := postJSON(t, r, "/password-requests", gin.H{"username": "ghost", "requestType": "ResetPassword"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code := errorCode(t, w); code != "username_not_found" {
		t.Errorf("code = %q", code)
	}
}

func TestSubmitDeactivatedUserLooksUnknown(t *testing.T) {
	users := &fakeUserStore{
		getByUsernameFn: func(ctx context.Context, username string) (user.User, error) {
			u := activeUser("jdoe", "old-pass", user.RoleStudent)
			u.IsActive = false
			return u, nil
		},
	}
	r := newResetRouter(&fakeResetStore{}, users, &fakePublisher{})

	w := postJSON(t, r, "/password-requests", gin.H{"username": "jdoe", "requestType": "ResetPassword"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code := errorCode(t, w); code != "username_not_found" {
		t.Errorf("code = %q", code)
	}
}

func pendingRequest(id int64) resetreq.Request {
	return resetreq.Request{
		ID:          id,
		Username:    "jdoe",
		RequestType: resetreq.ActionResetPassword,
		Status:      resetreq.StatusPending,
		RequestDate: time.Now().UTC().Add(-time.Hour),
	}
}

func TestResolveResetPasswordBuildsUnitOfWork(t *testing.T) {
	var captured postgres.ResolveParams
	store := &fakeResetStore{
		getFn: func(ctx context.Context, id int64) (resetreq.Request, error) {
			return pendingRequest(id), nil
		},
		resolveFn: func(ctx context.Context, p postgres.ResolveParams) (resetreq.Request, error) {
			captured = p
			now := time.Now().UTC()
			done := pendingRequest(p.RequestID)
			done.Status = resetreq.StatusCompleted
			done.CompletedDate = &now
			done.NewPassword = p.NewPassword
			return done, nil
		},
	}
	pub := &fakePublisher{}
	r := newResetRouter(store, activeStudentStore(), pub)

	w := postJSON(t, r, "/admin/password-requests/9/resolve", gin.H{"action": "ResetPassword", "remarks": "ok"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if captured.Action != resetreq.ActionResetPassword {
		t.Errorf("action = %q", captured.Action)
	}
	if captured.NewPassword == nil || len(*captured.NewPassword) != security.GeneratedPasswordLength {
		t.Fatalf("generated password = %v", captured.NewPassword)
	}
	if captured.NewPasswordHash == nil || *captured.NewPasswordHash != security.Digest(*captured.NewPassword) {
		t.Error("hash does not match the generated plaintext")
	}
	if captured.Job.Type != jobs.TypePasswordResetEmail {
		t.Errorf("job type = %q", captured.Job.Type)
	}
	if captured.Job.IdempotencyKey == nil || *captured.Job.IdempotencyKey != "password-request-9" {
		t.Errorf("idempotency key = %v", captured.Job.IdempotencyKey)
	}

	var payload jobs.PasswordResetEmailPayload
	if err := json.Unmarshal(captured.Job.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Email != "test@example.com" || payload.NewPassword != *captured.NewPassword {
		t.Errorf("payload = %+v", payload)
	}

	// the response must never carry the plaintext
	if strings.Contains(w.Body.String(), *captured.NewPassword) {
		t.Error("response leaks the generated password")
	}

	if len(pub.events) != 1 || pub.events[0].Status != resetreq.StatusCompleted {
		t.Errorf("broadcast = %+v, want one Completed", pub.events)
	}
}

func TestResolveKnowOldPasswordEnqueuesNotRecoverableMail(t *testing.T) {
	var captured postgres.ResolveParams
	store := &fakeResetStore{
		getFn: func(ctx context.Context, id int64) (resetreq.Request, error) {
			req := pendingRequest(id)
			req.RequestType = resetreq.ActionKnowOldPassword
			return req, nil
		},
		resolveFn: func(ctx context.Context, p postgres.ResolveParams) (resetreq.Request, error) {
			captured = p
			done := pendingRequest(p.RequestID)
			done.Status = resetreq.StatusCompleted
			return done, nil
		},
	}
	r := newResetRouter(store, activeStudentStore(), &fakePublisher{})

	w := postJSON(t, r, "/admin/password-requests/3/resolve", gin.H{"action": "KnowOldPassword"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if captured.Job.Type != jobs.TypePasswordNotRecoverableEmail {
		t.Errorf("job type = %q", captured.Job.Type)
	}
	if captured.NewPassword != nil || captured.NewPasswordHash != nil {
		t.Error("KnowOldPassword must not rotate the password")
	}
}

func TestResolveAlreadyCompleted(t *testing.T) {
	store := &fakeResetStore{
		getFn: func(ctx context.Context, id int64) (resetreq.Request, error) {
			req := pendingRequest(id)
			req.Status = resetreq.StatusCompleted
			return req, nil
		},
	}
	r := newResetRouter(store, activeStudentStore(), &fakePublisher{})

	w := postJSON(t, r, "/admin/password-requests/3/resolve", gin.H{"action": "ResetPassword"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "already_completed" {
		t.Errorf("code = %q", code)
	}
}

func TestResolveLostRaceMapsCASToConflict(t *testing.T) {
	store := &fakeResetStore{
		getFn: func(ctx context.Context, id int64) (resetreq.Request, error) {
			return pendingRequest(id), nil
		},
		resolveFn: func(ctx context.Context, p postgres.ResolveParams) (resetreq.Request, error) {
			// another admin won between the read and the tx
			return resetreq.Request{}, resetreq.ErrAlreadyCompleted
		},
	}
	pub := &fakePublisher{}
	r := newResetRouter(store, activeStudentStore(), pub)

	w := postJSON(t, r, "/admin/password-requests/3/resolve", gin.H{"action": "ResetPassword"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if len(pub.events) != 0 {
		t.Error("loser must not broadcast")
	}
}

func TestResolveUnknownRequest(t *testing.T) {
	r := newResetRouter(&fakeResetStore{}, activeStudentStore(), &fakePublisher{})

	w := postJSON(t, r, "/admin/password-requests/404/resolve", gin.H{"action": "ResetPassword"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code := errorCode(t, w); code != "request_not_found" {
		t.Errorf("code = %q", code)
	}
}

func TestResolveInvalidAction(t *testing.T) {
	store := &fakeResetStore{
		getFn: func(ctx context.Context, id int64) (resetreq.Request, error) {
			return pendingRequest(id), nil
		},
	}
	r := newResetRouter(store, activeStudentStore(), &fakePublisher{})

	w := postJSON(t, r, "/admin/password-requests/3/resolve", gin.H{"action": "DropTables"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestResolveSurvivesBroadcastFailure(t *testing.T) {
	store := &fakeResetStore{
		getFn: func(ctx context.Context, id int64) (resetreq.Request, error) {
			return pendingRequest(id), nil
		},
		resolveFn: func(ctx context.Context, p postgres.ResolveParams) (resetreq.Request, error) {
			done := pendingRequest(p.RequestID)
			done.Status = resetreq.StatusCompleted
			return done, nil
		},
	}
	pub := &fakePublisher{err: context.DeadlineExceeded}
	r := newResetRouter(store, activeStudentStore(), pub)

	w := postJSON(t, r, "/admin/password-requests/3/resolve", gin.H{"action": "KnowOldPassword"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite publish failure", w.Code)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	var gotStatus string
	store := &fakeResetStore{
		listFn: func(ctx context.Context, status string) ([]resetreq.Request, error) {
			gotStatus = status
			return []resetreq.Request{pendingRequest(1)}, nil
		},
	}
	r := newResetRouter(store, activeStudentStore(), &fakePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/password-requests?status=Pending", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotStatus != resetreq.StatusPending {
		t.Errorf("status filter = %q", gotStatus)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/password-requests?status=Bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus filter: status = %d, want 400", w.Code)
	}
}

func TestListNeverReturnsStoredPlaintext(t *testing.T) {
	stored := "s3cretPW"
	store := &fakeResetStore{
		listFn: func(ctx context.Context, status string) ([]resetreq.Request, error) {
			done := pendingRequest(1)
			done.Status = resetreq.StatusCompleted
			done.NewPassword = &stored
			return []resetreq.Request{done}, nil
		},
	}
	r := newResetRouter(store, activeStudentStore(), &fakePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/password-requests?status=Completed", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), stored) {
		t.Errorf("list response leaks the stored password: %s", w.Body.String())
	}
}
