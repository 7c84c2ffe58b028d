package api

import (
	"net/http"
	"slices"
	"time"

	"hoopsight/config"
	"hoopsight/internal/api/handlers"
	"hoopsight/internal/api/middleware"
	"hoopsight/internal/core/processor"
	"hoopsight/internal/server/sse"
	"hoopsight/internal/server/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Service bündelt alles, was die HTTP-Schicht von der Analyse benötigt
type Service interface {
	handlers.ProfileService
	handlers.HealthReporter
}

// Dependencies enthält die Komponenten, die der Router verdrahtet
type Dependencies struct {
	Service    Service
	Pool       *processor.WorkerPool
	Streams    *ws.Handler
	Hub        *sse.Hub
	Translator *middleware.Translator
}

// NewRouter erstellt den gin-Router mit allen Routen
func NewRouter(cfg config.ServerConfig, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 365 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	router.Use(sessions.Sessions("hoopsight", store))
	router.Use(middleware.I18n(deps.Translator))

	handlers.NewAPIHandler(deps.Service).RegisterRoutes(router)
	handlers.NewSystemHandler(deps.Service, deps.Pool, deps.Streams).RegisterRoutes(router)
	if deps.Hub != nil {
		handlers.NewEventHandler(deps.Hub).RegisterRoutes(router)
	}
	if deps.Streams != nil {
		router.GET("/ws", gin.WrapH(deps.Streams))
	}

	return router
}
