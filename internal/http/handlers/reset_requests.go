package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/broadcast"
	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/job"
	"github.com/helloworldit/portal/internal/domain/resetreq"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/jobs"
	"github.com/helloworldit/portal/internal/repo/postgres"
	"github.com/helloworldit/portal/internal/security"
)

// ResetRequestStore exposes the queue plus the one-shot resolve unit of
// work, so handler tests can fake the whole transaction.
type ResetRequestStore interface {
	Create(ctx context.Context, username, requestType string) (resetreq.Request, error)
	List(ctx context.Context, status string) ([]resetreq.Request, error)
	GetByID(ctx context.Context, id int64) (resetreq.Request, error)
	Resolve(ctx context.Context, p postgres.ResolveParams) (resetreq.Request, error)
}

type ResetRequestsHandler struct {
	store     ResetRequestStore
	users     UserReader
	publisher broadcast.Publisher
	logger    *slog.Logger
}

func NewResetRequestsHandler(store ResetRequestStore, users UserReader, publisher broadcast.Publisher, logger *slog.Logger) *ResetRequestsHandler {
	return &ResetRequestsHandler{
		store:     store,
		users:     users,
		publisher: publisher,
		logger:    logger,
	}
}

type SubmitResetRequest struct {
	Username    string `json:"username" binding:"required"`
	RequestType string `json:"requestType" binding:"required,max=50"`
}

type ResolveRequest struct {
	Action  string `json:"action" binding:"required,oneof=ResetPassword KnowOldPassword"`
	Remarks string `json:"remarks" binding:"max=500"`
}

// Submit files a request from the login screen. Only active accounts
// qualify; anything else is username_not_found.
func (h *ResetRequestsHandler) Submit(ctx *gin.Context) {
	var req SubmitResetRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByUsername(cctx, req.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "username_not_found", "No account matches that username.")
			return
		}
		RespondInternal(ctx, "Could not submit request")
		return
	}
	if !u.IsActive {
		RespondNotFound(ctx, "username_not_found", "No account matches that username.")
		return
	}

	created, err := h.store.Create(cctx, u.Username, req.RequestType)
	if err != nil {
		RespondInternal(ctx, "Could not submit request")
		return
	}

	h.publish(ctx.Request.Context(), created)

	h.logger.InfoContext(ctx.Request.Context(), "password request submitted",
		"request_id", created.ID, "username", created.Username, "type", created.RequestType)

	ctx.JSON(http.StatusCreated, gin.H{"request": created})
}

// List serves the admin queue; ?status= filters, default shows all.
func (h *ResetRequestsHandler) List(ctx *gin.Context) {
	status := ctx.Query("status")
	if status != "" && status != resetreq.StatusPending && status != resetreq.StatusCompleted {
		RespondBadRequest(ctx, "Unknown status filter", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	requests, err := h.store.List(cctx, status)
	if err != nil {
		RespondInternal(ctx, "Could not list requests")
		return
	}

	// the plaintext only travels by email
	for i := range requests {
		requests[i].NewPassword = nil
	}

	ctx.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Resolve completes a pending request. The whole state change rides one
// transaction in the store; the broadcast goes out only after commit and
// never fails the response.
func (h *ResetRequestsHandler) Resolve(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}

	var req ResolveRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	pending, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, resetreq.ErrNotFound) {
			RespondNotFound(ctx, "request_not_found", "Password request does not exist.")
			return
		}
		RespondInternal(ctx, "Could not resolve request")
		return
	}
	if pending.Status != resetreq.StatusPending {
		RespondConflict(ctx, "already_completed", "Request has already been completed.")
		return
	}

	u, err := h.users.GetByUsername(cctx, pending.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user_not_found", "The requesting account no longer exists.")
			return
		}
		RespondInternal(ctx, "Could not resolve request")
		return
	}

	params, err := h.buildResolveParams(id, req, u, pending)
	if err != nil {
		RespondInternal(ctx, "Could not resolve request")
		return
	}

	resolved, err := h.store.Resolve(cctx, params)
	if err != nil {
		switch {
		case errors.Is(err, resetreq.ErrNotFound):
			RespondNotFound(ctx, "request_not_found", "Password request does not exist.")
		case errors.Is(err, resetreq.ErrAlreadyCompleted):
			RespondConflict(ctx, "already_completed", "Request has already been completed.")
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "user_not_found", "The requesting account no longer exists.")
		default:
			RespondInternal(ctx, "Could not resolve request")
		}
		return
	}

	h.publish(ctx.Request.Context(), resolved)

	h.logger.InfoContext(ctx.Request.Context(), "password request resolved",
		"request_id", resolved.ID, "username", resolved.Username, "action", req.Action)

	// the plaintext only travels by email
	resolved.NewPassword = nil

	ctx.JSON(http.StatusOK, gin.H{"request": resolved})
}

func (h *ResetRequestsHandler) buildResolveParams(id int64, req ResolveRequest, u user.User, pending resetreq.Request) (postgres.ResolveParams, error) {
	var remarks *string
	if req.Remarks != "" {
		remarks = &req.Remarks
	}

	idemKey := fmt.Sprintf("password-request-%d", id)

	params := postgres.ResolveParams{
		RequestID:    id,
		Action:       req.Action,
		AdminRemarks: remarks,
	}

	switch req.Action {
	case resetreq.ActionResetPassword:
		plain, err := security.GeneratePassword(security.GeneratedPasswordLength)
		if err != nil {
			return postgres.ResolveParams{}, err
		}
		hash := security.Digest(plain)
		params.NewPassword = &plain
		params.NewPasswordHash = &hash

		payload, err := jobs.PasswordResetEmailPayload{
			RequestID:   id,
			Username:    u.Username,
			Email:       u.Email,
			FullName:    u.FullName,
			NewPassword: plain,
			RequestedAt: pending.RequestDate,
		}.JSON()
		if err != nil {
			return postgres.ResolveParams{}, err
		}
		params.Job = job.CreateRequest{
			Type:           jobs.TypePasswordResetEmail,
			Payload:        payload,
			IdempotencyKey: &idemKey,
		}

	case resetreq.ActionKnowOldPassword:
		payload, err := jobs.PasswordNotRecoverableEmailPayload{
			RequestID:   id,
			Username:    u.Username,
			Email:       u.Email,
			FullName:    u.FullName,
			RequestedAt: pending.RequestDate,
		}.JSON()
		if err != nil {
			return postgres.ResolveParams{}, err
		}
		params.Job = job.CreateRequest{
			Type:           jobs.TypePasswordNotRecoverableEmail,
			Payload:        payload,
			IdempotencyKey: &idemKey,
		}
	}

	return params, nil
}

func (h *ResetRequestsHandler) publish(ctx context.Context, r resetreq.Request) {
	if h.publisher == nil {
		return
	}
	ev := broadcast.Event{
		RequestID:   r.ID,
		Username:    r.Username,
		RequestType: r.RequestType,
		Status:      r.Status,
		CompletedAt: r.CompletedDate,
	}
	if err := h.publisher.Publish(ctx, broadcast.TopicPasswordRequests, ev); err != nil {
		h.logger.WarnContext(ctx, "broadcast publish failed",
			"request_id", r.ID, "err", err)
	}
}
