package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/auth"
	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/http/middlewares"
	"github.com/helloworldit/portal/internal/security"
	"github.com/helloworldit/portal/internal/session"
	"github.com/helloworldit/portal/internal/uploads"
)

// Small interfaces so tests can fake the store.
type UserReader interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
}

type ImageSaver interface {
	Save(filename string, r io.Reader) (string, error)
	Remove(webPath string) error
}

type AuthHandler struct {
	users    UserReader
	writer   UserWriter
	images   ImageSaver
	jwt      *auth.Manager
	sessions session.Store
	cfg      config.Config
	logger   *slog.Logger
}

func NewAuthHandler(users UserReader, writer UserWriter, images ImageSaver, jwtManager *auth.Manager, sessions session.Store, cfg config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		writer:   writer,
		images:   images,
		jwt:      jwtManager,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

type RegisterRequest struct {
	Username        string `form:"username" binding:"required,min=3,max=50"`
	Password        string `form:"password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirmPassword" binding:"required,eqfield=Password"`
	FullName        string `form:"fullName" binding:"required"`
	Email           string `form:"email" binding:"required,email"`
	Phone           string `form:"phone"`
	RoleID          int    `form:"roleId" binding:"omitempty,oneof=1 2"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func redirectForRole(role string) string {
	if role == user.RoleAdmin {
		return "/admin"
	}
	return "/student"
}

// Register accepts a multipart form so the profile image can ride along
// with the account fields.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest
	if !BindForm(ctx, &req) {
		return
	}

	roleID := req.RoleID
	if roleID == 0 {
		roleID = user.RoleStudentID
	}

	var imagePath *string
	if file, err := ctx.FormFile("profileImage"); err == nil && file != nil {
		webPath, err := h.saveImage(file)
		if err != nil {
			if errors.Is(err, uploads.ErrExtNotAllowed) {
				RespondBadRequest(ctx, "Profile image type not allowed", gin.H{
					"fields": []FieldError{{Field: "profileImage", Rule: "filetype", Message: "must be an image file"}},
				})
				return
			}
			RespondInternal(ctx, "Could not store profile image")
			return
		}
		imagePath = &webPath
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.writer.Create(cctx, user.CreateParams{
		Username:         req.Username,
		PasswordHash:     security.Digest(req.Password),
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		RoleID:           roleID,
		ProfileImagePath: imagePath,
	})
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			RespondError(ctx, http.StatusBadRequest, "user_exists", "Username is already registered.", nil)
			return
		}
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "user registered",
		"user_id", u.ID, "username", u.Username, "role", u.RoleName)

	ctx.JSON(http.StatusCreated, gin.H{
		"user":     u,
		"redirect": "/login",
	})
}

func (h *AuthHandler) saveImage(file *multipart.FileHeader) (string, error) {
	if !uploads.Allowed(file.Filename) {
		return "", uploads.ErrExtNotAllowed
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return h.images.Save(file.Filename, src)
}

// Login checks credentials before account state, so a wrong password on
// a deactivated account still reads as invalid_credentials.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByUsername(cctx, req.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnauthorized(ctx, "invalid_credentials", "Invalid username or password.")
			return
		}
		RespondInternal(ctx, "Could not log in")
		return
	}

	if !security.CheckDigest(u.PasswordHash, req.Password) {
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid username or password.")
		return
	}

	if !u.IsActive {
		RespondForbidden(ctx, "account_deactivated", "Your account has been deactivated. Contact the administrator.")
		return
	}

	sess := session.New(strconv.FormatInt(u.ID, 10), u.Username, u.RoleName)
	if err := h.sessions.Create(cctx, sess, h.cfg.SessionTTL()); err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	token, err := h.jwt.GenerateSessionToken(sess.ID, sess.UserID, sess.Username, sess.Role)
	if err != nil {
		_ = h.sessions.Delete(cctx, sess.ID)
		RespondInternal(ctx, "Could not generate session token")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "user logged in",
		"user_id", u.ID, "username", u.Username, "role", u.RoleName)

	ctx.JSON(http.StatusOK, gin.H{
		"token":    token,
		"user":     u,
		"redirect": redirectForRole(u.RoleName),
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	sessID, ok := middlewares.SessionIDFromContext(ctx)
	if !ok || sessID == "" {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.sessions.Delete(cctx, sessID); err != nil && !errors.Is(err, session.ErrNotFound) {
		RespondInternal(ctx, "Could not log out")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me echoes the authenticated identity plus the fresh account record.
func (h *AuthHandler) Me(ctx *gin.Context) {
	username, ok := middlewares.UsernameFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByUsername(cctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "not_found", "Account no longer exists.")
			return
		}
		RespondInternal(ctx, "Could not load account")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":     u,
		"redirect": redirectForRole(u.RoleName),
	})
}
