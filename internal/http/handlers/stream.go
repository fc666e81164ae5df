package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/broadcast"
)

type StreamHandler struct {
	sub    broadcast.Subscriber
	logger *slog.Logger
}

func NewStreamHandler(sub broadcast.Subscriber, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{sub: sub, logger: logger}
}

// Stream relays password-request events to connected admin screens over
// SSE. Each connection holds its own redis subscription; closing the
// request tears it down.
func (h *StreamHandler) Stream(ctx *gin.Context) {
	events, err := h.sub.Subscribe(ctx.Request.Context(), broadcast.TopicPasswordRequests)
	if err != nil {
		RespondError(ctx, http.StatusServiceUnavailable, "stream_unavailable",
			"Realtime updates are unavailable right now.", nil)
		return
	}

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")

	// heartbeat keeps proxies from cutting idle connections
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			ctx.SSEvent("password-request", ev)
			return true
		case <-heartbeat.C:
			ctx.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
