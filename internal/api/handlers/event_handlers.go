package handlers

import (
	"io"

	"hoopsight/internal/server/sse"

	"github.com/gin-gonic/gin"
)

// EventHandler liefert Spieler-Ereignisse als Server-Sent Events
type EventHandler struct {
	hub *sse.Hub
}

// NewEventHandler erstellt einen neuen Event-Handler
func NewEventHandler(hub *sse.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

// RegisterRoutes registriert den SSE-Endpunkt
func (h *EventHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/events", h.handleSSE)
}

// handleSSE behandelt SSE-Verbindungen für Echtzeit-Updates
func (h *EventHandler) handleSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	client := make(sse.Client, 10) // Puffer für 10 Nachrichten

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false // Kanal geschlossen, Stream beenden
			}
			c.SSEvent("player", string(msg))
			return true
		case <-done:
			return false
		}
	})
}
