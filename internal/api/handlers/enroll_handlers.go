package handlers

import (
	"errors"
	"image"
	"io"
	"net/http"

	"hoopsight/internal/api/middleware"
	"hoopsight/internal/core/frame"
	"hoopsight/internal/core/processor"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// EnrollCamera schreibt einen Spieler aus dem Kamera-Formular ein.
// Erwartet die Felder "name" und "image_data" (Data-URL) oder alternativ
// eine hochgeladene Datei "file". Antwortet immer mit 200 und einem Status-Feld.
func (h *APIHandler) EnrollCamera(c *gin.Context) {
	name := c.PostForm("name")

	_, body := h.enroll(c, name, func() (image.Image, error) {
		if data := c.PostForm("image_data"); data != "" {
			return frame.DecodeDataURL(data)
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			return nil, frame.ErrUndecodable
		}
		defer file.Close()

		imageData, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		log.Debugf("Enrollment upload %s (%d bytes)", header.Filename, len(imageData))
		return frame.Decode(imageData)
	})
	c.JSON(http.StatusOK, body)
}

// enroll dekodiert das Bild, schreibt den Spieler ein und bildet Fehler auf
// HTTP-Status und lokalisierte Meldungen ab
func (h *APIHandler) enroll(c *gin.Context, name string, decode func() (image.Image, error)) (int, gin.H) {
	img, err := decode()
	if err != nil {
		log.WithError(err).Warn("Enrollment image could not be decoded")
		return http.StatusBadRequest, gin.H{"status": "error", "message": middleware.T(c, "InvalidImage", nil)}
	}

	display, err := h.profiles.Enroll(c.Request.Context(), name, img)
	switch {
	case err == nil:
		return http.StatusOK, gin.H{
			"status":  "success",
			"message": middleware.T(c, "EnrollSuccess", map[string]interface{}{"Name": display}),
			"player":  display,
		}
	case errors.Is(err, processor.ErrInvalidName):
		return http.StatusBadRequest, gin.H{"status": "error", "message": middleware.T(c, "InvalidName", nil)}
	case errors.Is(err, processor.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, gin.H{"status": "error", "message": middleware.T(c, "NoFaceDetected", nil)}
	case errors.Is(err, processor.ErrDimensionMismatch):
		return http.StatusConflict, gin.H{"status": "error", "message": middleware.T(c, "DimensionMismatch", nil)}
	default:
		log.Errorf("Enrollment of %q failed: %v", name, err)
		return http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": middleware.T(c, "ServerError", map[string]interface{}{"Error": err.Error()}),
		}
	}
}
