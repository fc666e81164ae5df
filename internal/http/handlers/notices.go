package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/notice"
)

// students only ever see the latest few notices
const studentNoticeLimit = 5

type NoticeStore interface {
	Create(ctx context.Context, p notice.CreateParams) (notice.Notice, error)
	GetByID(ctx context.Context, id int64) (notice.Notice, error)
	ListAll(ctx context.Context) ([]notice.Notice, error)
	ListVisible(ctx context.Context, limit int) ([]notice.Notice, error)
	Update(ctx context.Context, id int64, p notice.UpdateParams) (notice.Notice, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

type NoticesHandler struct {
	store  NoticeStore
	logger *slog.Logger
}

func NewNoticesHandler(store NoticeStore, logger *slog.Logger) *NoticesHandler {
	return &NoticesHandler{store: store, logger: logger}
}

type CreateNoticeRequest struct {
	Subject     string     `json:"subject" binding:"required,max=200"`
	Description string     `json:"description" binding:"required"`
	EntryDate   *time.Time `json:"entryDate"`
	ExpireDate  *time.Time `json:"expireDate"`
}

type UpdateNoticeRequest struct {
	Subject     string     `json:"subject" binding:"required,max=200"`
	Description string     `json:"description" binding:"required"`
	EntryDate   time.Time  `json:"entryDate" binding:"required"`
	ExpireDate  *time.Time `json:"expireDate"`
	IsActive    bool       `json:"isActive"`
}

func (h *NoticesHandler) Create(ctx *gin.Context) {
	var req CreateNoticeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	entry := time.Now().UTC()
	if req.EntryDate != nil {
		entry = *req.EntryDate
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	n, err := h.store.Create(cctx, notice.CreateParams{
		Subject:     req.Subject,
		Description: req.Description,
		EntryDate:   entry,
		ExpireDate:  req.ExpireDate,
	})
	if err != nil {
		RespondInternal(ctx, "Could not create notice")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "notice created", "notice_id", n.ID)
	ctx.JSON(http.StatusCreated, gin.H{"notice": n})
}

// ListAdmin returns every notice for the management screen.
func (h *NoticesHandler) ListAdmin(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	notices, err := h.store.ListAll(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list notices")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notices": notices})
}

// ListStudent returns what the student dashboard shows: active,
// unexpired, newest first, capped.
func (h *NoticesHandler) ListStudent(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	notices, err := h.store.ListVisible(cctx, studentNoticeLimit)
	if err != nil {
		RespondInternal(ctx, "Could not list notices")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notices": notices})
}

func (h *NoticesHandler) Get(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	n, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, notice.ErrNotFound) {
			RespondNotFound(ctx, "notice_not_found", "Notice does not exist.")
			return
		}
		RespondInternal(ctx, "Could not load notice")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notice": n})
}

func (h *NoticesHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	var req UpdateNoticeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	n, err := h.store.Update(cctx, id, notice.UpdateParams{
		Subject:     req.Subject,
		Description: req.Description,
		EntryDate:   req.EntryDate,
		ExpireDate:  req.ExpireDate,
		IsActive:    req.IsActive,
	})
	if err != nil {
		if errors.Is(err, notice.ErrNotFound) {
			RespondNotFound(ctx, "notice_not_found", "Notice does not exist.")
			return
		}
		RespondInternal(ctx, "Could not update notice")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "notice updated", "notice_id", n.ID)
	ctx.JSON(http.StatusOK, gin.H{"notice": n})
}

// Deactivate is the usual way a notice leaves the student dashboard;
// the row stays for the admin archive.
func (h *NoticesHandler) Deactivate(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.SetActive(cctx, id, false); err != nil {
		if errors.Is(err, notice.ErrNotFound) {
			RespondNotFound(ctx, "notice_not_found", "Notice does not exist.")
			return
		}
		RespondInternal(ctx, "Could not deactivate notice")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "notice deactivated", "notice_id", id)
	ctx.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h *NoticesHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, id); err != nil {
		if errors.Is(err, notice.ErrNotFound) {
			RespondNotFound(ctx, "notice_not_found", "Notice does not exist.")
			return
		}
		RespondInternal(ctx, "Could not delete notice")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "notice deleted", "notice_id", id)
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
