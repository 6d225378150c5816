package router

import (
	"time"

	"shipdesk/internal/handlers"
	"shipdesk/internal/middleware"
	"shipdesk/internal/models"
	"shipdesk/internal/services"
	"shipdesk/pkg/config"
	"shipdesk/pkg/jwt"
	"shipdesk/pkg/response"
	"shipdesk/pkg/session"
	"shipdesk/pkg/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies 路由所需的外部依赖
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Sessions session.Store
	Storage  storage.Storage
	JWT      *jwt.JWTManager
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = deps.Config.Upload.MaxFileSize + (1 << 20)

	// 中间件
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SetupCORS(deps.Config.CORS))

	// 注册路由
	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {
	db := deps.DB

	authService := services.NewAuthService(db, deps.Sessions, deps.JWT)
	accessService := services.NewAccessService(db, deps.Sessions)
	membershipService := services.NewMembershipService(db)
	auth := middleware.NewAuthMiddleware(authService, accessService)

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		authHandler := handlers.NewAuthHandler(authService, membershipService)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", auth.RequireLogin(), authHandler.Logout)
			authGroup.POST("/refresh", auth.RequireLogin(), auth.RequireActive(), authHandler.RefreshToken)
			authGroup.GET("/me", auth.RequireLogin(), auth.RequireActive(), authHandler.Me)
			authGroup.POST("/switch-tenant", auth.RequireLogin(), auth.RequireActive(), authHandler.SwitchTenant)
		}

		dashboardHandler := handlers.NewDashboardHandler()
		dashboard := api.Group("/dashboard", auth.RequireLogin(), auth.RequireActive())
		{
			dashboard.GET("/menu", dashboardHandler.Menu)
			dashboard.GET("/roles", dashboardHandler.Roles)
		}

		// 发货单：租户范围 + document 权限
		documentService := services.NewDocumentService(db, deps.Storage, deps.Config.Upload)
		documentHandler := handlers.NewDocumentHandler(documentService, deps.Config.Upload.MaxFileSize)
		documents := api.Group("/shipping-documents",
			auth.RequireLogin(),
			auth.RequireTenant(),
			auth.RequirePermission(models.PermissionDocument),
		)
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.POST("/:id/parse", documentHandler.Parse)
			documents.GET("/:id/download", documentHandler.Download)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		analyticsHandler := handlers.NewAnalyticsHandler(services.NewAnalyticsService(db))
		api.GET("/analytics/shipping",
			auth.RequireLogin(),
			auth.RequireTenant(),
			auth.RequirePermission(models.PermissionDocument),
			analyticsHandler.Summary,
		)

		// 系统管理
		system := api.Group("", auth.RequireLogin(), auth.RequirePermission(models.PermissionSystemAccess))

		tenantHandler := handlers.NewTenantHandler(services.NewTenantService(db), membershipService)
		membershipHandler := handlers.NewMembershipHandler(membershipService)
		tenants := system.Group("/tenants")
		{
			tenants.POST("", tenantHandler.Create)
			tenants.GET("", tenantHandler.GetAll)
			tenants.GET("/stats", tenantHandler.GetStats)
			tenants.GET("/:id", tenantHandler.GetByID)
			tenants.PUT("/:id", tenantHandler.Update)
			tenants.DELETE("/:id", tenantHandler.Delete)
			tenants.POST("/:id/activate", tenantHandler.Activate)
			tenants.POST("/:id/deactivate", tenantHandler.Deactivate)

			tenants.GET("/:id/members", tenantHandler.Members)
			tenants.POST("/:id/members/:user_id", membershipHandler.Attach)
			tenants.PUT("/:id/members/:user_id", membershipHandler.Update)
			tenants.DELETE("/:id/members/:user_id", membershipHandler.Deactivate)
			tenants.POST("/:id/members/:user_id/primary", membershipHandler.SetPrimary)
		}

		userHandler := handlers.NewUserHandler(services.NewUserService(db, deps.Sessions))
		users := system.Group("/users")
		{
			users.POST("", userHandler.Create)
			users.GET("", userHandler.GetAll)
			users.GET("/stats", userHandler.GetStats)
			users.GET("/:id", userHandler.GetByID)
			users.PUT("/:id", userHandler.Update)
			users.POST("/:id/activate", userHandler.Activate)
			users.POST("/:id/deactivate", userHandler.Deactivate)
			users.POST("/:id/reset-password", userHandler.ResetPassword)
			users.GET("/:id/memberships", membershipHandler.ListForUser)
		}
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "shipdesk",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
