package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/database"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/middleware"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/nsxzhou1114/startpage-api/internal/router"
	"github.com/nsxzhou1114/startpage-api/internal/search"
	"github.com/nsxzhou1114/startpage-api/internal/service"
	"github.com/nsxzhou1114/startpage-api/internal/task"
	"github.com/nsxzhou1114/startpage-api/pkg/auth"
	"github.com/nsxzhou1114/startpage-api/pkg/cache"
	"github.com/nsxzhou1114/startpage-api/pkg/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	filterCapacity  = 100000
	filterErrorRate = 0.001
)

var configPath string

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "startpage-api",
	Short: "个人导航页API服务",
	Long:  `个人导航页后端服务，管理分类树、网站、登录会话与图标上传`,
}

// serveCmd 启动服务命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	Long:  `启动导航页API的HTTP服务器`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config", "配置文件路径")

	rootCmd.AddCommand(serveCmd)
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// application 组装好的服务依赖
type application struct {
	cfg        *config.Config
	db         *gorm.DB
	// 未使用Redis时为空
	redis      *redis.Client
	tokens     *auth.TokenManager
	sessions   auth.SessionStore
	// 内存会话需要定时清理
	memory     *auth.MemorySessionStore
	filter     *cache.RedisBloomFilter
	hub        *websocket.Manager
	categories *service.CategoryService
	sites      *service.SiteService
	users      *service.UserService
	captcha    *service.CaptchaService
	uploads    *service.UploadService
	meta       *service.SiteMetaService
}

// initializeSystem 初始化配置、日志和数据库
func initializeSystem() error {
	if err := config.Init(configPath); err != nil {
		return fmt.Errorf("配置初始化失败: %v", err)
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("日志初始化失败: %v", err)
	}

	db := database.GetDB()
	if err := model.InitTables(db); err != nil {
		return fmt.Errorf("初始化数据库表失败: %v", err)
	}
	return nil
}

// mustInitialize 初始化失败时直接退出，供各子命令使用
func mustInitialize() {
	if err := initializeSystem(); err != nil {
		fmt.Printf("系统初始化失败: %v\n", err)
		os.Exit(1)
	}
}

// redisWanted 会话存储为redis或配置了redis地址时才连接
func redisWanted(cfg *config.Config) bool {
	if cfg.Session.Enabled && cfg.Session.Store == "redis" {
		return true
	}
	return cfg.Redis.Host != ""
}

// buildApplication 创建所有服务，需先调用 initializeSystem
func buildApplication(ctx context.Context) (*application, error) {
	cfg := config.GlobalConfig
	app := &application{cfg: cfg, db: database.GetDB()}

	if redisWanted(cfg) {
		app.redis = database.GetRedis()
	}

	tokens, err := auth.NewTokenManager(&cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("JWT配置错误: %v", err)
	}
	app.tokens = tokens

	if cfg.Session.Enabled {
		switch cfg.Session.Store {
		case "memory":
			app.memory = auth.NewMemorySessionStore()
			app.sessions = app.memory
		case "redis", "":
			if app.redis == nil {
				return nil, fmt.Errorf("会话存储为redis但未配置redis")
			}
			app.sessions = auth.NewRedisSessionStore(app.redis)
		default:
			return nil, fmt.Errorf("未知的会话存储: %s", cfg.Session.Store)
		}
	}

	var index service.SiteIndexer
	if es := database.GetES(); es != nil {
		siteIndex := search.NewSiteIndex(es, cfg.Elasticsearch.Index)
		if err := siteIndex.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("初始化Elasticsearch索引失败: %v", err)
		}
		index = siteIndex
	}

	app.filter = cache.NewRedisBloomFilter(app.redis, cache.BloomFilterSiteKey, filterCapacity, filterErrorRate)
	if err := app.filter.Load(ctx); err != nil {
		logger.Warnf("加载布隆过滤器失败，将重新构建: %v", err)
	}

	app.hub = websocket.GetManager()

	app.categories = service.NewCategoryService(app.db, app.hub)
	app.sites = service.NewSiteService(app.db, app.hub, index, app.filter)
	if err := app.sites.WarmFilter(ctx); err != nil {
		return nil, fmt.Errorf("初始化布隆过滤器失败: %v", err)
	}

	if cfg.Captcha.Enabled {
		app.captcha = service.NewCaptchaService(&cfg.Captcha)
	}
	app.users = service.NewUserService(app.db, app.tokens, app.sessions, app.captcha)

	storage, err := service.NewStorage(&cfg.Upload)
	if err != nil {
		return nil, fmt.Errorf("初始化上传存储失败: %v", err)
	}
	app.uploads = service.NewUploadService(&cfg.Upload, storage)
	app.meta = service.NewSiteMetaService(&cfg.Meta)

	return app, nil
}

// newScheduler 创建定时任务
func (a *application) newScheduler() (*task.Scheduler, error) {
	jobs := task.Jobs{
		Compactors: []task.ScopeCompactor{a.categories, a.sites},
		Warmer:     a.sites,
		Filter:     a.filter,
	}
	if a.memory != nil {
		jobs.Sessions = a.memory
	}
	return task.NewScheduler(a.cfg.Cron.CompactSpec, jobs)
}

// startServer 启动HTTP服务
func startServer() {
	mustInitialize()
	defer logger.Sync()

	gin.SetMode(config.GlobalConfig.App.Mode)

	app, err := buildApplication(context.Background())
	if err != nil {
		logger.Fatal("服务初始化失败", zap.Error(err))
	}
	app.hub.Start()

	var scheduler *task.Scheduler
	if app.cfg.Cron.Enabled {
		scheduler, err = app.newScheduler()
		if err != nil {
			logger.Fatal("定时任务初始化失败", zap.Error(err))
		}
		scheduler.Start()
	}

	r := initRouter(app)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.App.Port),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP服务启动失败", zap.Error(err))
		}
	}()

	logger.Info("服务已启动", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("关闭服务...")

	app.hub.Shutdown()
	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.filter.Save(ctx); err != nil {
		logger.Warnf("保存布隆过滤器失败: %v", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("服务关闭异常", zap.Error(err))
	}

	logger.Info("服务已关闭")
}

// 初始化路由
func initRouter(app *application) *gin.Engine {
	r := gin.New()
	r.TrustedPlatform = app.cfg.App.TrustedPlatform

	r.Use(gin.Recovery())
	r.Use(logger.GinLogger())
	r.Use(middleware.Cors(&app.cfg.App.Cors))

	router.Setup(r, app.cfg, &router.Dependencies{
		Categories: app.categories,
		Sites:      app.sites,
		Meta:       app.meta,
		Users:      app.users,
		Captcha:    app.captcha,
		Uploads:    app.uploads,
		Tokens:     app.tokens,
		Sessions:   app.sessions,
		Hub:        app.hub,
	})

	return r
}
