package handlers

import (
	"net/http"

	"hoopsight/internal/core/processor"
	"hoopsight/internal/server/ws"
	"hoopsight/internal/utils"

	"github.com/gin-gonic/gin"
)

// HealthReporter liefert den Zustand der Analyse
type HealthReporter interface {
	Profiles() []string
	PoseAvailable() bool
}

// SystemHandler liefert Statistiken und den Gesundheitszustand
type SystemHandler struct {
	health  HealthReporter
	pool    *processor.WorkerPool
	streams *ws.Handler
}

// NewSystemHandler erstellt einen neuen System-Handler. pool und streams dürfen nil sein.
func NewSystemHandler(health HealthReporter, pool *processor.WorkerPool, streams *ws.Handler) *SystemHandler {
	return &SystemHandler{health: health, pool: pool, streams: streams}
}

// RegisterRoutes registriert die System-Endpunkte
func (h *SystemHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/system/stats", h.handleSystemStats)
	router.GET("/healthz", h.handleHealth)
}

func (h *SystemHandler) handleSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetSystemStats(h.pool, h.streams))
}

func (h *SystemHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"profiles":   len(h.health.Profiles()),
		"pose_model": h.health.PoseAvailable(),
	})
}
