package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/domain/notice"
	"github.com/helloworldit/portal/internal/http/handlers"
)

type fakeNoticeStore struct {
	createFn      func(ctx context.Context, p notice.CreateParams) (notice.Notice, error)
	getFn         func(ctx context.Context, id int64) (notice.Notice, error)
	listAllFn     func(ctx context.Context) ([]notice.Notice, error)
	listVisibleFn func(ctx context.Context, limit int) ([]notice.Notice, error)
	updateFn      func(ctx context.Context, id int64, p notice.UpdateParams) (notice.Notice, error)
	setActiveFn   func(ctx context.Context, id int64, active bool) error
	deleteFn      func(ctx context.Context, id int64) error
}

func (f *fakeNoticeStore) Create(ctx context.Context, p notice.CreateParams) (notice.Notice, error) {
	if f.createFn != nil {
		return f.createFn(ctx, p)
	}
	return notice.Notice{}, nil
}

func (f *fakeNoticeStore) GetByID(ctx context.Context, id int64) (notice.Notice, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return notice.Notice{}, notice.ErrNotFound
}

func (f *fakeNoticeStore) ListAll(ctx context.Context) ([]notice.Notice, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx)
	}
	return []notice.Notice{}, nil
}

func (f *fakeNoticeStore) ListVisible(ctx context.Context, limit int) ([]notice.Notice, error) {
	if f.listVisibleFn != nil {
		return f.listVisibleFn(ctx, limit)
	}
	return []notice.Notice{}, nil
}

func (f *fakeNoticeStore) Update(ctx context.Context, id int64, p notice.UpdateParams) (notice.Notice, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, p)
	}
	return notice.Notice{}, notice.ErrNotFound
}

func (f *fakeNoticeStore) SetActive(ctx context.Context, id int64, active bool) error {
	if f.setActiveFn != nil {
		return f.setActiveFn(ctx, id, active)
	}
	return notice.ErrNotFound
}

func (f *fakeNoticeStore) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return notice.ErrNotFound
}

func newNoticesRouter(store *fakeNoticeStore) *gin.Engine {
	h := handlers.NewNoticesHandler(store, testLogger())
	r := gin.New()
	r.GET("/notices", h.ListStudent)
	r.POST("/admin/notices", h.Create)
	r.GET("/admin/notices", h.ListAdmin)
	r.GET("/admin/notices/:id", h.Get)
	r.PUT("/admin/notices/:id", h.Update)
	r.POST("/admin/notices/:id/deactivate", h.Deactivate)
	r.DELETE("/admin/notices/:id", h.Delete)
	return r
}

func putJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateNoticeDefaultsEntryDate(t *testing.T) {
	var captured notice.CreateParams
	store := &fakeNoticeStore{
		createFn: func(ctx context.Context, p notice.CreateParams) (notice.Notice, error) {
			captured = p
			return notice.Notice{ID: 1, Subject: p.Subject, Description: p.Description, EntryDate: p.EntryDate, IsActive: true}, nil
		},
	}
	r := newNoticesRouter(store)

	before := time.Now().UTC()
	w := postJSON(t, r, "/admin/notices", gin.H{"subject": "Exam schedule", "description": "See attached."})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if captured.EntryDate.Before(before) {
		t.Errorf("entry date not defaulted: %v", captured.EntryDate)
	}
	if captured.ExpireDate != nil {
		t.Errorf("expire date = %v, want nil", captured.ExpireDate)
	}
}

func TestCreateNoticeHonoursExplicitDates(t *testing.T) {
	var captured notice.CreateParams
	store := &fakeNoticeStore{
		createFn: func(ctx context.Context, p notice.CreateParams) (notice.Notice, error) {
			captured = p
			return notice.Notice{ID: 2}, nil
		},
	}
	r := newNoticesRouter(store)

	w := postJSON(t, r, "/admin/notices", gin.H{
		"subject":     "Holiday",
		"description": "Campus closed.",
		"entryDate":   "2026-01-02T00:00:00Z",
		"expireDate":  "2026-01-10T00:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if captured.EntryDate.Day() != 2 {
		t.Errorf("entry date = %v", captured.EntryDate)
	}
	if captured.ExpireDate == nil || captured.ExpireDate.Day() != 10 {
		t.Errorf("expire date = %v", captured.ExpireDate)
	}
}

func TestCreateNoticeValidation(t *testing.T) {
	r := newNoticesRouter(&fakeNoticeStore{})

	w := postJSON(t, r, "/admin/notices", gin.H{"description": "no subject"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != "invalid_request" {
		t.Errorf("code = %q", code)
	}
}

func TestStudentListIsCapped(t *testing.T) {
	var gotLimit int
	store := &fakeNoticeStore{
		listVisibleFn: func(ctx context.Context, limit int) ([]notice.Notice, error) {
			gotLimit = limit
			return []notice.Notice{{ID: 1, Subject: "One", IsActive: true}}, nil
		},
	}
	r := newNoticesRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notices", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotLimit != 5 {
		t.Errorf("visible limit = %d, want 5", gotLimit)
	}
}

func TestUpdateNoticeNotFound(t *testing.T) {
	r := newNoticesRouter(&fakeNoticeStore{})

	body := gin.H{
		"subject":     "Updated",
		"description": "Updated body.",
		"entryDate":   "2026-01-02T00:00:00Z",
		"isActive":    true,
	}
	w := putJSON(t, r, "/admin/notices/77", body)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code := errorCode(t, w); code != "notice_not_found" {
		t.Errorf("code = %q", code)
	}
}

func TestDeactivateNotice(t *testing.T) {
	var gotID int64
	var gotActive = true
	store := &fakeNoticeStore{
		setActiveFn: func(ctx context.Context, id int64, active bool) error {
			gotID, gotActive = id, active
			return nil
		},
	}
	r := newNoticesRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/notices/8/deactivate", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotID != 8 || gotActive {
		t.Errorf("SetActive(%d, %v), want (8, false)", gotID, gotActive)
	}
}

func TestDeactivateNoticeNotFound(t *testing.T) {
	r := newNoticesRouter(&fakeNoticeStore{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/notices/8/deactivate", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code := errorCode(t, w); code != "notice_not_found" {
		t.Errorf("code = %q", code)
	}
}

func TestDeleteNotice(t *testing.T) {
	var deleted int64
	store := &fakeNoticeStore{
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	r := newNoticesRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/notices/12", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if deleted != 12 {
		t.Errorf("deleted id = %d", deleted)
	}
}

func TestNoticeVisibility(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		n    notice.Notice
		want bool
	}{
		{"active no expiry", notice.Notice{IsActive: true}, true},
		{"active future expiry", notice.Notice{IsActive: true, ExpireDate: &future}, true},
		{"active expired", notice.Notice{IsActive: true, ExpireDate: &past}, false},
		{"inactive", notice.Notice{IsActive: false}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.n.Visible(now); got != tc.want {
				t.Errorf("Visible = %v, want %v", got, tc.want)
			}
		})
	}
}
