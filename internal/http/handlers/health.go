package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	pingDB    func() error
	pingRedis func() error
}

func NewHealthHandler(pingDB, pingRedis func() error) *HealthHandler {
	return &HealthHandler{pingDB: pingDB, pingRedis: pingRedis}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the dependencies a request actually needs: postgres
// for everything, redis for sessions and broadcasts.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	deps := gin.H{"db": "ok", "redis": "ok"}
	ready := true

	if h.pingDB != nil {
		if err := h.pingDB(); err != nil {
			deps["db"] = err.Error()
			ready = false
		}
	}
	if h.pingRedis != nil {
		if err := h.pingRedis(); err != nil {
			deps["redis"] = err.Error()
			ready = false
		}
	}

	if !ready {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps})
}
