package server

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"opengate/api/internal/config"
	"opengate/api/internal/handler"
	"opengate/api/internal/middleware"
	"opengate/api/internal/model"
	"opengate/api/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	config    *config.Config
	db        *gorm.DB
	redis     *redis.Client
	nats      *nats.Conn
	jetstream *service.JetStreamService
	wsHub     *handler.WSHub
	wsHandler *handler.WSHandler
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn, jetstream *service.JetStreamService) *Server {
	return &Server{
		config:    cfg,
		db:        db,
		redis:     redisClient,
		nats:      natsConn,
		jetstream: jetstream,
	}
}

// Setup initializes routes and handlers
func (s *Server) Setup() {
	// Services
	authService := service.NewAuthService(s.db)
	rosterService := service.NewRosterService(s.db)
	webhookService := service.NewWebhookService(s.db)
	accessLogService := service.NewAccessLogService(s.db, s.redis, rosterService, s.jetstream, webhookService)
	incidentService := service.NewIncidentService(s.db, s.jetstream, webhookService)
	exportService := service.NewExportService()
	importService := service.NewSupplierImportService(s.db)

	// Handlers
	auditHandler := handler.NewAuditHandler(s.db)
	authHandler := handler.NewAuthHandler(authService, auditHandler, s.config.JWTSecret, s.config.TokenTTL)
	supplierHandler := handler.NewSupplierHandler(s.db, auditHandler)
	personnelHandler := handler.NewPersonnelHandler(s.db, auditHandler)
	scheduleHandler := handler.NewScheduleHandler(s.db, auditHandler)
	accessHandler := handler.NewAccessHandler(accessLogService, exportService, s.jetstream, auditHandler)
	importHandler := handler.NewSupplierImportHandler(importService, auditHandler)
	incidentHandler := handler.NewIncidentHandler(incidentService, auditHandler)
	rbacHandler := handler.NewRBACHandler(s.db, authService, auditHandler)
	webhookHandler := handler.NewWebhookHandler(webhookService, auditHandler)

	// Live console push over NATS
	if s.nats != nil {
		s.wsHub = handler.NewWSHub(s.nats)
		s.wsHandler = handler.NewWSHandler(s.wsHub)
		go s.wsHub.Run()
		log.Println("[Server] WebSocket hub started")
	}

	rbac := middleware.NewRBACMiddleware(s.db)

	s.router = gin.Default()

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Swagger UI
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public routes
	s.router.GET("/health", s.healthCheck)

	login := s.router.Group("/api/v1")
	if s.config.RateLimit.Enabled && s.redis != nil {
		limiter := middleware.NewRedisRateLimiter(s.redis)
		loginRule := s.config.GetRateLimitRuleForPath("/api/v1/auth/login")
		login.Use(middleware.LoginRateLimit(limiter, loginRule.ToMiddlewareConfig()))
	}
	login.POST("/auth/login", authHandler.Login)

	// WebSocket routes
	if s.wsHandler != nil {
		s.router.GET("/ws/events", s.wsHandler.HandleEvents)
		s.router.GET("/ws/stats", s.wsHandler.GetStats)
	}

	// Protected routes
	api := s.router.Group("/api/v1")
	api.Use(authHandler.AuthMiddleware())
	if s.config.RateLimit.Enabled && s.redis != nil {
		limiter := middleware.NewRedisRateLimiter(s.redis)
		group := middleware.NewRateLimitGroup(limiter, s.config.RateLimit.DefaultRule.ToMiddlewareConfig())
		for _, rule := range s.config.RateLimit.SpecificRules {
			if rule.Path == "/api/v1/auth/login" {
				continue
			}
			group.AddSpecificConfig(rule.Path, rule.ToMiddlewareConfig())
		}
		api.Use(group.Middleware())
	}
	{
		// Auth
		api.GET("/auth/me", authHandler.GetMe)
		api.POST("/auth/change-password", authHandler.ChangePassword)

		// Gate console
		view := api.Group("", rbac.RequirePermission(model.PermAccessView))
		view.GET("/access/presence", accessHandler.Presence)
		view.GET("/access/logs", accessHandler.ListLogs)
		view.GET("/access/stats/monthly", accessHandler.MonthlyStats)
		view.GET("/access/stats/dashboard", accessHandler.DashboardStats)
		view.GET("/access/events/replay", accessHandler.ReplayEvents)

		api.POST("/access/check-in", rbac.RequirePermission(model.PermAccessCheckIn), accessHandler.CheckIn)
		api.POST("/access/check-out", rbac.RequirePermission(model.PermAccessCheckOut), accessHandler.CheckOut)
		api.GET("/access/logs/export", rbac.RequirePermission(model.PermLogsExport), accessHandler.ExportLogs)

		// Roster
		roster := api.Group("", rbac.RequirePermission(model.PermRosterManage))
		supplierHandler.RegisterRoutes(roster)
		personnelHandler.RegisterRoutes(roster)
		importHandler.RegisterRoutes(roster)

		// Visit schedule
		schedules := api.Group("", rbac.RequirePermission(model.PermScheduleManage))
		scheduleHandler.RegisterRoutes(schedules)

		// Incidents
		api.GET("/incidents", rbac.RequireAnyPermission(model.PermIncidentReport, model.PermIncidentManage), incidentHandler.List)
		api.GET("/incidents/stats", rbac.RequireAnyPermission(model.PermIncidentReport, model.PermIncidentManage), incidentHandler.Stats)
		api.GET("/incidents/:id", rbac.RequireAnyPermission(model.PermIncidentReport, model.PermIncidentManage), incidentHandler.Get)
		api.POST("/incidents", rbac.RequirePermission(model.PermIncidentReport), incidentHandler.Create)
		api.PUT("/incidents/:id", rbac.RequirePermission(model.PermIncidentManage), incidentHandler.Update)
		api.POST("/incidents/:id/resolve", rbac.RequirePermission(model.PermIncidentManage), incidentHandler.Resolve)

		// Accounts, roles, audit: admin territory
		admin := api.Group("", rbac.RequirePermission(model.PermUserManage))
		rbacHandler.RegisterRoutes(admin)
		auditHandler.RegisterRoutes(admin)

		// Webhooks
		webhooks := api.Group("", rbac.RequirePermission(model.PermWebhookManage))
		webhookHandler.RegisterRoutes(webhooks)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	health := gin.H{"status": "ok"}

	if s.jetstream != nil && s.jetstream.IsEnabled() {
		health["jetstream"] = "enabled"

		if info, err := s.jetstream.GetStreamInfo(service.StreamGateEvents); err == nil {
			health["jetstream_gate_events"] = gin.H{
				"messages": info.State.Msgs,
				"bytes":    info.State.Bytes,
			}
		}
		if info, err := s.jetstream.GetStreamInfo(service.StreamIncidents); err == nil {
			health["jetstream_incidents"] = gin.H{
				"messages": info.State.Msgs,
				"bytes":    info.State.Bytes,
			}
		}
	} else {
		health["jetstream"] = "disabled"
	}

	c.JSON(200, health)
}

// Run starts the HTTP server
func (s *Server) Run(addr string) error {
	log.Printf("[Server] HTTP server listening on %s", addr)
	return s.router.Run(addr)
}

// GetRouter returns the gin router for testing
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() {
	if s.wsHub != nil {
		s.wsHub.Stop()
		log.Println("[Server] WebSocket hub stopped")
	}
	if s.jetstream != nil {
		s.jetstream.Close()
		log.Println("[Server] JetStream service stopped")
	}
}
