package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/uploads"
	"github.com/helloworldit/portal/internal/utils"
)

const usersPageSize = 10

type UserStore interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
	Search(ctx context.Context, q string, limit, offset int) ([]user.User, error)
	CountSearch(ctx context.Context, q string) (int, error)
	Update(ctx context.Context, id int64, p user.UpdateParams) (user.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type UsersHandler struct {
	store  UserStore
	images ImageSaver
	logger *slog.Logger
}

func NewUsersHandler(store UserStore, images ImageSaver, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{store: store, images: images, logger: logger}
}

// List serves the manage-users screen: substring search across the
// visible columns plus fixed-size pagination.
func (h *UsersHandler) List(ctx *gin.Context) {
	q := ctx.Query("query")
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	total, err := h.store.CountSearch(cctx, q)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	pagination, offset := utils.Paginate(page, usersPageSize, total)

	users, err := h.store.Search(cctx, q, usersPageSize, offset)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"users":      users,
		"pagination": pagination,
	})
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user_not_found", "User does not exist.")
			return
		}
		RespondInternal(ctx, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

type UpdateUserRequest struct {
	Username           string `form:"username" binding:"required,min=3,max=50"`
	FullName           string `form:"fullName" binding:"required"`
	Email              string `form:"email" binding:"required,email"`
	Phone              string `form:"phone"`
	RoleID             int    `form:"roleId" binding:"required,oneof=1 2"`
	IsActive           bool   `form:"isActive"`
	RemoveProfileImage bool   `form:"removeProfileImage"`
}

// Update edits everything on the account except the password, which
// only changes through the reset flow.
func (h *UsersHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !BindForm(ctx, &req) {
		return
	}

	var imagePath *string
	if file, err := ctx.FormFile("profileImage"); err == nil && file != nil {
		if !uploads.Allowed(file.Filename) {
			RespondBadRequest(ctx, "Profile image type not allowed", gin.H{
				"fields": []FieldError{{Field: "profileImage", Rule: "filetype", Message: "must be an image file"}},
			})
			return
		}
		src, err := file.Open()
		if err != nil {
			RespondInternal(ctx, "Could not read profile image")
			return
		}
		webPath, err := h.images.Save(file.Filename, src)
		src.Close()
		if err != nil {
			RespondInternal(ctx, "Could not store profile image")
			return
		}
		imagePath = &webPath
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// remember the outgoing image so it can be cleaned up after commit
	var oldImage *string
	if imagePath != nil || req.RemoveProfileImage {
		if existing, err := h.store.GetByID(cctx, id); err == nil {
			oldImage = existing.ProfileImagePath
		}
	}

	u, err := h.store.Update(cctx, id, user.UpdateParams{
		Username:           req.Username,
		FullName:           req.FullName,
		Email:              req.Email,
		Phone:              req.Phone,
		RoleID:             req.RoleID,
		IsActive:           req.IsActive,
		ProfileImagePath:   imagePath,
		RemoveProfileImage: req.RemoveProfileImage,
	})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user_not_found", "User does not exist.")
			return
		}
		if errors.Is(err, user.ErrUsernameTaken) {
			RespondError(ctx, http.StatusBadRequest, "user_exists", "Username is already registered.", nil)
			return
		}
		RespondInternal(ctx, "Could not update user")
		return
	}

	if oldImage != nil {
		if err := h.images.Remove(*oldImage); err != nil {
			h.logger.WarnContext(ctx.Request.Context(), "could not remove old profile image",
				"user_id", id, "path", *oldImage, "err", err)
		}
	}

	h.logger.InfoContext(ctx.Request.Context(), "user updated", "user_id", u.ID, "username", u.Username)
	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// Deactivate is the soft delete: the row stays so history and reset
// requests keep resolving.
func (h *UsersHandler) Deactivate(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.SetActive(cctx, id, false); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user_not_found", "User does not exist.")
			return
		}
		RespondInternal(ctx, "Could not deactivate user")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "user deactivated", "user_id", id)
	ctx.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func idParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid id", nil)
		return 0, false
	}
	return id, true
}
