package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/banner"
	"github.com/helloworldit/portal/internal/http/middlewares"
	"github.com/helloworldit/portal/internal/uploads"
)

type BannerStore interface {
	Create(ctx context.Context, p banner.CreateParams) (banner.Banner, error)
	GetByID(ctx context.Context, id int64) (banner.Banner, error)
	ListAll(ctx context.Context) ([]banner.Banner, error)
	ListVisible(ctx context.Context, bannerType string) ([]banner.Banner, error)
	Update(ctx context.Context, id int64, p banner.UpdateParams) (banner.Banner, error)
	SetActive(ctx context.Context, id int64, active bool, updatedBy string) error
	Delete(ctx context.Context, id int64) error
	RecordImpression(ctx context.Context, id int64) error
	RecordClick(ctx context.Context, id int64) error
}

type BannersHandler struct {
	store  BannerStore
	images ImageSaver
	logger *slog.Logger
}

func NewBannersHandler(store BannerStore, images ImageSaver, logger *slog.Logger) *BannersHandler {
	return &BannersHandler{store: store, images: images, logger: logger}
}

type BannerFormRequest struct {
	CompanyName string    `form:"companyName" binding:"required,max=100"`
	Title       string    `form:"title" binding:"required,max=200"`
	ClickURL    string    `form:"clickUrl" binding:"omitempty,url"`
	Target      string    `form:"target" binding:"omitempty,oneof=_blank _self"`
	BannerType  string    `form:"bannerType" binding:"omitempty,oneof=Slider Side"`
	Priority    int       `form:"priority" binding:"omitempty,min=0,max=100"`
	StartDate   time.Time `form:"startDate" binding:"required" time_format:"2006-01-02"`
	EndDate     time.Time `form:"endDate" binding:"required" time_format:"2006-01-02"`
	Description string    `form:"description" binding:"max=500"`
}

func (r BannerFormRequest) defaults() BannerFormRequest {
	if r.Target == "" {
		r.Target = "_blank"
	}
	if r.BannerType == "" {
		r.BannerType = banner.TypeSlider
	}
	return r
}

// Create requires the image: a banner without artwork is meaningless.
func (h *BannersHandler) Create(ctx *gin.Context) {
	var req BannerFormRequest
	if !BindForm(ctx, &req) {
		return
	}
	req = req.defaults()

	if req.EndDate.Before(req.StartDate) {
		RespondBadRequest(ctx, "End date must not precede start date", nil)
		return
	}

	file, err := ctx.FormFile("image")
	if err != nil || file == nil {
		RespondError(ctx, http.StatusBadRequest, "banner_image_required", "A banner image file is required.", nil)
		return
	}

	imagePath, ok := h.saveBannerImage(ctx, file)
	if !ok {
		return
	}

	createdBy, _ := middlewares.UsernameFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.store.Create(cctx, banner.CreateParams{
		CompanyName: req.CompanyName,
		Title:       req.Title,
		ImagePath:   imagePath,
		ClickURL:    req.ClickURL,
		Target:      req.Target,
		BannerType:  req.BannerType,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Description: req.Description,
		CreatedBy:   createdBy,
	})
	if err != nil {
		RespondInternal(ctx, "Could not create banner")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "banner created",
		"banner_id", b.ID, "company", b.CompanyName, "created_by", createdBy)
	ctx.JSON(http.StatusCreated, gin.H{"banner": b})
}

func (h *BannersHandler) saveBannerImage(ctx *gin.Context, file *multipart.FileHeader) (string, bool) {
	if !uploads.Allowed(file.Filename) {
		RespondBadRequest(ctx, "Banner image type not allowed", gin.H{
			"fields": []FieldError{{Field: "image", Rule: "filetype", Message: "must be an image file"}},
		})
		return "", false
	}
	src, err := file.Open()
	if err != nil {
		RespondInternal(ctx, "Could not read banner image")
		return "", false
	}
	defer src.Close()

	webPath, err := h.images.Save(file.Filename, src)
	if err != nil {
		RespondInternal(ctx, "Could not store banner image")
		return "", false
	}
	return webPath, true
}

// ListAdmin returns every banner for the management screen.
func (h *BannersHandler) ListAdmin(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	banners, err := h.store.ListAll(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list banners")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"banners": banners})
}

// ListPublic serves the currently running banners, optionally filtered
// by placement type, and counts an impression per banner served.
func (h *BannersHandler) ListPublic(ctx *gin.Context) {
	bannerType := ctx.Query("type")
	if bannerType != "" && bannerType != banner.TypeSlider && bannerType != banner.TypeSide {
		RespondBadRequest(ctx, "Unknown banner type", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	banners, err := h.store.ListVisible(cctx, bannerType)
	if err != nil {
		RespondInternal(ctx, "Could not list banners")
		return
	}

	for _, b := range banners {
		// counters are best effort
		_ = h.store.RecordImpression(cctx, b.ID)
	}

	ctx.JSON(http.StatusOK, gin.H{"banners": banners})
}

func (h *BannersHandler) Get(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			RespondNotFound(ctx, "banner_not_found", "Banner does not exist.")
			return
		}
		RespondInternal(ctx, "Could not load banner")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"banner": b})
}

func (h *BannersHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	var req BannerFormRequest
	if !BindForm(ctx, &req) {
		return
	}
	req = req.defaults()

	if req.EndDate.Before(req.StartDate) {
		RespondBadRequest(ctx, "End date must not precede start date", nil)
		return
	}

	var imagePath *string
	if file, err := ctx.FormFile("image"); err == nil && file != nil {
		webPath, ok := h.saveBannerImage(ctx, file)
		if !ok {
			return
		}
		imagePath = &webPath
	}

	updatedBy, _ := middlewares.UsernameFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// remember the outgoing artwork so it can be cleaned up after commit
	var oldImage string
	if imagePath != nil {
		if existing, err := h.store.GetByID(cctx, id); err == nil {
			oldImage = existing.ImagePath
		}
	}

	b, err := h.store.Update(cctx, id, banner.UpdateParams{
		CompanyName: req.CompanyName,
		Title:       req.Title,
		ClickURL:    req.ClickURL,
		Target:      req.Target,
		BannerType:  req.BannerType,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Description: req.Description,
		UpdatedBy:   updatedBy,
		ImagePath:   imagePath,
	})
	if err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			RespondNotFound(ctx, "banner_not_found", "Banner does not exist.")
			return
		}
		RespondInternal(ctx, "Could not update banner")
		return
	}

	if oldImage != "" {
		if err := h.images.Remove(oldImage); err != nil {
			h.logger.WarnContext(ctx.Request.Context(), "could not remove replaced banner image",
				"banner_id", id, "path", oldImage, "err", err)
		}
	}

	h.logger.InfoContext(ctx.Request.Context(), "banner updated",
		"banner_id", b.ID, "updated_by", updatedBy)
	ctx.JSON(http.StatusOK, gin.H{"banner": b})
}

func (h *BannersHandler) Deactivate(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	updatedBy, _ := middlewares.UsernameFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.SetActive(cctx, id, false, updatedBy); err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			RespondNotFound(ctx, "banner_not_found", "Banner does not exist.")
			return
		}
		RespondInternal(ctx, "Could not deactivate banner")
		return
	}

	h.logger.InfoContext(ctx.Request.Context(), "banner deactivated",
		"banner_id", id, "updated_by", updatedBy)
	ctx.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h *BannersHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	var oldImage string
	if existing, err := h.store.GetByID(cctx, id); err == nil {
		oldImage = existing.ImagePath
	}

	if err := h.store.Delete(cctx, id); err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			RespondNotFound(ctx, "banner_not_found", "Banner does not exist.")
			return
		}
		RespondInternal(ctx, "Could not delete banner")
		return
	}

	if oldImage != "" {
		if err := h.images.Remove(oldImage); err != nil {
			h.logger.WarnContext(ctx.Request.Context(), "could not remove deleted banner image",
				"banner_id", id, "path", oldImage, "err", err)
		}
	}

	h.logger.InfoContext(ctx.Request.Context(), "banner deleted", "banner_id", id)
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Click records a click and answers the redirect target, so the
// frontend can count then navigate.
func (h *BannersHandler) Click(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			RespondNotFound(ctx, "banner_not_found", "Banner does not exist.")
			return
		}
		RespondInternal(ctx, "Could not load banner")
		return
	}

	_ = h.store.RecordClick(cctx, id)
	ctx.JSON(http.StatusOK, gin.H{"clickUrl": b.ClickURL, "target": b.Target})
}
