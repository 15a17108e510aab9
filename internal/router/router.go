package router

import (
	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/controller"
	"github.com/nsxzhou1114/startpage-api/internal/middleware"
	"github.com/nsxzhou1114/startpage-api/internal/service"
	"github.com/nsxzhou1114/startpage-api/pkg/auth"
	"github.com/nsxzhou1114/startpage-api/pkg/websocket"
)

// Dependencies 路由依赖的服务
type Dependencies struct {
	Categories *service.CategoryService
	Sites      *service.SiteService
	Meta       *service.SiteMetaService
	Users      *service.UserService
	Captcha    *service.CaptchaService // 未启用验证码时为空
	Uploads    *service.UploadService
	Tokens     *auth.TokenManager
	Sessions   auth.SessionStore // 未启用会话白名单时为空
	Hub        *websocket.Manager
}

// Setup 设置API路由
func Setup(r *gin.Engine, cfg *config.Config, deps *Dependencies) {
	// 本地存储时提供上传文件访问
	if cfg.Upload.Storage == "" || cfg.Upload.Storage == "local" {
		r.Static(cfg.Upload.URLPrefix, cfg.Upload.Dir)
	}

	api := r.Group("/api")
	authRequired := middleware.JWTAuth(deps.Tokens, deps.Sessions)

	setupUserRoutes(api, authRequired, deps)
	setupCategoryRoutes(api, authRequired, deps)
	setupSiteRoutes(api, authRequired, deps)

	uploadApi := controller.NewUploadApi(deps.Uploads)
	api.POST("/upload", authRequired, uploadApi.Upload)

	websocketApi := controller.NewWebSocketApi(deps.Hub, deps.Tokens, deps.Sessions)
	api.GET("/ws", websocketApi.HandleWebSocket)
}

// setupUserRoutes 登录与用户信息路由
func setupUserRoutes(api *gin.RouterGroup, authRequired gin.HandlerFunc, deps *Dependencies) {
	userApi := controller.NewUserApi(deps.Users, deps.Captcha)

	authRoutes := api.Group("/auth")
	{
		authRoutes.GET("/captcha", userApi.Captcha)
		authRoutes.POST("/login", userApi.Login)
		authRoutes.POST("/logout", authRequired, userApi.Logout)
	}

	userRoutes := api.Group("/user", authRequired)
	{
		userRoutes.GET("", userApi.Profile)
		userRoutes.PUT("", userApi.Update)
		userRoutes.PUT("/password", userApi.ChangePassword)
	}
}

// setupCategoryRoutes 分类路由，读接口公开，写接口需要登录
func setupCategoryRoutes(api *gin.RouterGroup, authRequired gin.HandlerFunc, deps *Dependencies) {
	categoryApi := controller.NewCategoryApi(deps.Categories, deps.Sites)

	categoryRoutes := api.Group("/categories")
	{
		categoryRoutes.GET("", categoryApi.List)
		categoryRoutes.GET("/:id", categoryApi.GetByID)
		categoryRoutes.GET("/:id/sites", categoryApi.Sites)
	}

	authCategoryRoutes := api.Group("/categories", authRequired)
	{
		authCategoryRoutes.POST("", categoryApi.Create)
		authCategoryRoutes.POST("/sort", categoryApi.Sort)
		authCategoryRoutes.PUT("/:id", categoryApi.Update)
		authCategoryRoutes.DELETE("/:id", categoryApi.Delete)
		authCategoryRoutes.POST("/:id/sites/sort", categoryApi.SortSites)
	}
}

// setupSiteRoutes 网站路由
func setupSiteRoutes(api *gin.RouterGroup, authRequired gin.HandlerFunc, deps *Dependencies) {
	siteApi := controller.NewSiteApi(deps.Sites, deps.Meta)

	siteRoutes := api.Group("/sites")
	{
		siteRoutes.GET("", siteApi.List)
		siteRoutes.GET("/search", siteApi.Search)
		siteRoutes.GET("/:id", siteApi.GetByID)
		siteRoutes.POST("/:id/visit", siteApi.Visit)
	}

	authSiteRoutes := api.Group("/sites", authRequired)
	{
		authSiteRoutes.GET("/meta", siteApi.Meta)
		authSiteRoutes.POST("", siteApi.Create)
		authSiteRoutes.PUT("/:id", siteApi.Update)
		authSiteRoutes.DELETE("/:id", siteApi.Delete)
	}
}
