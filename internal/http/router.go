package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/chris44528/lux-aged-cases/internal/cache"
	"github.com/chris44528/lux-aged-cases/internal/config"
	"github.com/chris44528/lux-aged-cases/internal/db"
	"github.com/chris44528/lux-aged-cases/internal/http/handlers"
	"github.com/chris44528/lux-aged-cases/internal/http/middleware"
	"github.com/chris44528/lux-aged-cases/internal/service"

	_ "github.com/chris44528/lux-aged-cases/docs"
)

func Router(cfg config.Config, store *db.Store, comms *service.Communicator, metricsCache *cache.Cache, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id", "X-User"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Comms:     comms,
		Cache:     metricsCache,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/aged-cases/", h.CasesList)
		api.GET("/aged-cases/queue/", h.QueueList)
		api.GET("/aged-cases/metrics/", h.MetricsGet)
		api.GET("/aged-cases/:id/", h.CaseGet)
		api.GET("/aged-cases/:id/communications/", h.CommunicationsList)
		api.GET("/aged-cases/:id/history/", h.HistoryList)

		api.GET("/aged-case-templates/", h.TemplatesList)
		api.GET("/aged-case-templates/:id/", h.TemplateGet)

		api.GET("/aged-case-settings/", h.SettingsList)
		api.GET("/aged-case-settings/active/", h.SettingsActive)
		api.GET("/aged-case-settings/templates/", h.SettingsTemplates)

		// Engagement callbacks arrive from tracking pixels and link
		// redirects, so the endpoint stays outside the admin gate.
		api.POST("/aged-cases/track-click/", h.TrackClick)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/aged-cases/:id/send_communication/", h.SendCommunication)
		admin.POST("/aged-cases/:id/resolve/", h.Resolve)
		admin.POST("/aged-cases/bulk_action/", h.BulkAction)

		admin.POST("/aged-case-templates/", h.TemplateCreate)
		admin.PATCH("/aged-case-templates/:id/", h.TemplateUpdate)
		admin.DELETE("/aged-case-templates/:id/", h.TemplateDelete)
		admin.POST("/aged-case-templates/:id/toggle_active/", h.TemplateToggleActive)

		admin.POST("/aged-case-settings/set_active/", h.SettingsSetActive)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
