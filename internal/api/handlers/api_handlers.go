package handlers

import (
	"context"
	"errors"
	"image"
	"net/http"

	"hoopsight/internal/api/middleware"
	"hoopsight/internal/core/frame"
	"hoopsight/internal/core/gallery"
	"hoopsight/internal/core/processor"
	"hoopsight/internal/db/repository"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ProfileService verwaltet die Spielerprofile der Galerie
type ProfileService interface {
	Enroll(ctx context.Context, name string, img image.Image) (string, error)
	DeleteProfile(ctx context.Context, name string) error
	Reload(ctx context.Context) error
	Profiles() []string
}

// APIHandler behandelt die Profil- und Einschreibungs-Endpunkte
type APIHandler struct {
	profiles ProfileService
}

// NewAPIHandler erstellt einen neuen API-Handler
func NewAPIHandler(profiles ProfileService) *APIHandler {
	return &APIHandler{profiles: profiles}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	// Einschreibung über das Kamera-Formular
	router.POST("/enroll_camera", h.EnrollCamera)

	api := router.Group("/api")
	{
		api.GET("/profiles", h.ListProfiles)
		api.POST("/profiles", h.CreateProfile)
		api.DELETE("/profiles/:name", h.DeleteProfile)
		api.POST("/profiles/reload", h.ReloadProfiles)
	}
}

// ListProfiles gibt die Spielernamen in Galeriereihenfolge zurück
func (h *APIHandler) ListProfiles(c *gin.Context) {
	names := h.profiles.Profiles()
	c.JSON(http.StatusOK, gin.H{
		"profiles": names,
		"count":    len(names),
	})
}

// createProfileRequest ist der JSON-Körper von POST /api/profiles
type createProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Image string `json:"image" binding:"required"` // Data-URL oder Base64
}

// CreateProfile schreibt einen Spieler aus einem JSON-Körper ein
func (h *APIHandler) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		msg := "InvalidImage"
		if req.Name == "" {
			msg = "InvalidName"
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": middleware.T(c, msg, nil),
			"error":   err.Error(),
		})
		return
	}

	code, body := h.enroll(c, req.Name, func() (image.Image, error) {
		return frame.DecodeDataURL(req.Image)
	})
	c.JSON(code, body)
}

// DeleteProfile entfernt einen Spieler
func (h *APIHandler) DeleteProfile(c *gin.Context) {
	name := c.Param("name")

	err := h.profiles.DeleteProfile(c.Request.Context(), name)
	switch {
	case err == nil:
		display := gallery.DisplayName(gallery.SanitizeName(name))
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": middleware.T(c, "ProfileDeleted", map[string]interface{}{"Name": display}),
		})
	case errors.Is(err, processor.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": middleware.T(c, "InvalidName", nil)})
	case errors.Is(err, repository.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": middleware.T(c, "ProfileNotFound", nil)})
	default:
		log.Errorf("Failed to delete profile %q: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": middleware.T(c, "ServerError", map[string]interface{}{"Error": err.Error()}),
		})
	}
}

// ReloadProfiles lädt die Galerie aus dem Profilspeicher neu
func (h *APIHandler) ReloadProfiles(c *gin.Context) {
	if err := h.profiles.Reload(c.Request.Context()); err != nil {
		log.Errorf("Gallery reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": middleware.T(c, "ServerError", map[string]interface{}{"Error": err.Error()}),
		})
		return
	}

	count := len(h.profiles.Profiles())
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": middleware.T(c, "ProfilesReloaded", map[string]interface{}{"Count": count}),
		"count":   count,
	})
}
