package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/middleware"
	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/annotatron-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/annotatron-api/pkg/middleware/requestid"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

type setupGateService interface {
	setupService
	middleware.SetupChecker
}

// RouterConfig collects everything the HTTP surface is assembled from.
type RouterConfig struct {
	Logger         *zap.Logger
	APIPrefix      string
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableDocs     bool

	Sessions middleware.TokenResolver
	Setup    setupGateService

	Metrics   *MetricsHandler
	Auth      *AuthHandler
	Users     *UserHandler
	Corpora   *CorpusHandler
	Assets    *AssetHandler
	Questions *QuestionHandler
	SetupAPI  *SetupHandler
}

// NewRouter wires middleware and routes. Routing is layered: setup and login are public,
// everything else passes the setup gate, then session, then password freshness, then roles.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if cfg.Logger != nil {
		r.Use(logger.GinMiddleware(cfg.Logger, sessionFields))
	}
	if cfg.Metrics != nil && cfg.Metrics.metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics.metrics))
	}
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Deadline(cfg.RequestTimeout))
	}
	r.Use(middleware.WithResponseMeta())

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})

	if cfg.Metrics != nil {
		r.GET("/health", cfg.Metrics.Health)
		r.GET("/metrics", cfg.Metrics.Prometheus)
	}
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Session(cfg.Sessions))

	api.GET("/setup", cfg.SetupAPI.Status)
	api.POST("/setup", cfg.SetupAPI.Create)
	// Signed links carry their own authorisation.
	api.GET("/content/:token", cfg.Assets.ContentByLink)

	configured := api.Group("")
	configured.Use(middleware.SetupGate(cfg.Setup))
	configured.POST("/auth/token", cfg.Auth.Login)

	authed := configured.Group("")
	authed.Use(middleware.RequireUser())
	// Reachable while a password reset is pending.
	authed.GET("/auth/me", cfg.Auth.Me)
	authed.DELETE("/auth/token", cfg.Auth.Logout)
	authed.POST("/users/:id/password", cfg.Auth.ChangePassword)

	current := authed.Group("")
	current.Use(middleware.RequirePasswordCurrent())

	curators := []models.UserRole{models.RoleAdministrator, models.RoleStaff}

	users := current.Group("/users")
	users.GET("", middleware.RequireRoles(curators...), cfg.Users.List)
	users.GET("/:id", middleware.RequireRoles(curators...), cfg.Users.Get)
	users.POST("", middleware.RequireRoles(models.RoleAdministrator), cfg.Users.Create)
	users.PUT("/:id/role", middleware.RequireRoles(models.RoleAdministrator), cfg.Users.AssignRole)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdministrator), cfg.Users.Deactivate)

	corpora := current.Group("/corpora")
	corpora.GET("", cfg.Corpora.List)
	corpora.POST("", middleware.RequireRoles(curators...), cfg.Corpora.Create)
	corpora.GET("/:corpus", cfg.Corpora.Get)

	corpora.GET("/:corpus/assets", cfg.Assets.List)
	corpora.POST("/:corpus/assets", middleware.RequireRoles(curators...), cfg.Assets.Upload)
	corpora.POST("/:corpus/assets/check", middleware.RequireRoles(curators...), cfg.Assets.Check)
	corpora.GET("/:corpus/assets/:asset", cfg.Assets.Get)
	corpora.DELETE("/:corpus/assets/:asset", middleware.RequireRoles(curators...), cfg.Assets.Delete)

	corpora.GET("/:corpus/questions", cfg.Questions.List)
	corpora.POST("/:corpus/questions", middleware.RequireRoles(curators...), cfg.Questions.Create)
	corpora.GET("/:corpus/questions/:id", cfg.Questions.Get)
	corpora.DELETE("/:corpus/questions/:id", middleware.RequireRoles(curators...), cfg.Questions.Delete)

	assets := current.Group("/assets")
	assets.GET("/:id/content", cfg.Assets.Content)
	assets.GET("/:id/link", cfg.Assets.Link)

	return r
}

func sessionFields(c *gin.Context) []zap.Field {
	user := middleware.CurrentUser(c)
	if user == nil {
		return nil
	}
	return []zap.Field{zap.String("user", user.Username), zap.String("role", string(user.Role))}
}
