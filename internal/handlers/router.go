package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/proflinker/api/internal/metrics"
	"github.com/proflinker/api/internal/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Routes are the handlers and guards the HTTP surface is assembled from
type Routes struct {
	JWTSecret   string
	CORSOrigins string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	RBAC        *middleware.RBACMiddleware
	Breaker     *middleware.CircuitBreaker

	Health          *HealthHandler
	Auth            *AuthHandler
	Profile         *ProfileHandler
	Recommendations *RecommendationHandler
	Favorites       *FavoritesHandler
	Emails          *EmailHandler
	Admin           *AdminHandler
	Functions       *FunctionsHandler
}

// NewRouter mounts every route with its middleware
func NewRouter(rt Routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(rt.Logger))
	router.Use(middleware.CORS(rt.CORSOrigins))
	router.Use(rt.Metrics.Middleware())

	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(rt.Metrics.Handler()))
	router.GET("/health", rt.Health.Health)
	router.GET("/health/deep", rt.Health.DeepHealth)

	guard := middleware.CircuitBreakerMiddleware(rt.Breaker)
	requireAuth := middleware.Auth(rt.JWTSecret)

	// Remote functions called directly by the web client
	functions := router.Group("/functions/v1")
	functions.Use(middleware.OptionalAuth(rt.JWTSecret))
	{
		functions.POST("/generate-universities", guard, rt.Functions.GenerateUniversities)
		functions.POST("/generate-professors", guard, rt.Functions.GenerateProfessors)
		functions.POST("/generate-email", rt.Functions.GenerateEmail)
		functions.POST("/send-email", requireAuth, rt.Functions.SendEmail)
		functions.POST("/send-verification", rt.Functions.SendVerification)
		functions.POST("/verify-code", rt.Functions.VerifyCode)
	}

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", rt.Auth.Register)
			auth.POST("/login", rt.Auth.Login)
		}

		protected := v1.Group("")
		protected.Use(requireAuth)
		{
			protected.POST("/auth/logout", rt.Auth.Logout)
			protected.GET("/user/me", rt.Auth.GetCurrentUser)

			draft := protected.Group("/profile/draft", rt.RBAC.RequirePermission(middleware.PermManageProfile))
			{
				draft.GET("", rt.Profile.GetDraft)
				draft.PUT("", rt.Profile.UpdateDraft)
				draft.DELETE("", rt.Profile.ResetDraft)
			}

			recs := protected.Group("/recommendations", rt.RBAC.RequirePermission(middleware.PermGenerate))
			{
				recs.POST("/universities", guard, rt.Recommendations.Universities)
				recs.POST("/professors", guard, rt.Recommendations.Professors)
				recs.POST("/:kind/retry", guard, rt.Recommendations.Retry)
				recs.POST("/:kind/cancel", rt.Recommendations.Cancel)
				recs.GET("/:kind", rt.Recommendations.Snapshot)
			}

			favs := protected.Group("/favorites", rt.RBAC.RequirePermission(middleware.PermManageFavorites))
			{
				favs.POST("/selection/toggle", rt.Favorites.Toggle)
				favs.GET("/selection", rt.Favorites.Selection)
				favs.POST("/complete", rt.Favorites.Complete)
				favs.GET("", rt.Favorites.List)
				favs.DELETE("/:kind/:id", rt.Favorites.Remove)
			}

			emails := protected.Group("/emails", rt.RBAC.RequirePermission(middleware.PermSendEmail))
			{
				emails.POST("/draft", rt.Emails.Draft)
				emails.POST("/send", rt.Emails.Send)
			}

			admin := protected.Group("/admin")
			{
				admin.GET("/generation-logs", rt.RBAC.RequirePermission(middleware.PermViewUsage), rt.Admin.GenerationLogs)
				admin.GET("/events", rt.RBAC.RequirePermission(middleware.PermViewEvents), rt.Admin.Events)
			}
		}
	}

	return router
}
