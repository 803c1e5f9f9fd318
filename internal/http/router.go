package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/routewise/backend/internal/config"
	"github.com/routewise/backend/internal/db"
	"github.com/routewise/backend/internal/http/handlers"
	"github.com/routewise/backend/internal/http/middleware"
	"github.com/routewise/backend/internal/service"

	_ "github.com/routewise/backend/docs"
)

type Services struct {
	Routing     *service.RoutingService
	Categorizer *service.Categorizer
	Experts     *service.ExpertFinder
	Backups     *service.BackupSelector
	Escalator   *service.Escalator
	Recorder    *service.DecisionRecorder
	RuleCache   handlers.RuleInvalidator
}

func Router(cfg config.Config, store *db.Store, svc Services, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
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
		Store:       store,
		Routing:     svc.Routing,
		Categorizer: svc.Categorizer,
		Experts:     svc.Experts,
		Backups:     svc.Backups,
		Escalator:   svc.Escalator,
		Recorder:    svc.Recorder,
		RuleCache:   svc.RuleCache,
		Validator:   validator.New(),
		Logger:      logger,
		AdminKey:    cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/route", h.Route)
		api.POST("/categorize", h.Categorize)
		api.GET("/experts", h.ExpertsList)
		api.GET("/backup/:personId", h.BackupLookup)
		api.GET("/backup/:personId/candidates", h.BackupCandidates)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.GET("/rules", h.RulesList)
		admin.POST("/rules", h.RuleCreate)
		admin.PUT("/rules/:id", h.RuleUpdate)
		admin.DELETE("/rules/:id", h.RuleDelete)
		admin.POST("/escalate", h.Escalate)
		admin.GET("/decisions", h.DecisionsList)
		admin.POST("/decisions/:id/feedback", h.DecisionFeedback)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
