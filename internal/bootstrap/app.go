package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mokcj0825/board-hill/internal/events"
	"github.com/mokcj0825/board-hill/internal/gateway"
	httpHandler "github.com/mokcj0825/board-hill/internal/handler/http"
	wsHandler "github.com/mokcj0825/board-hill/internal/handler/websocket"
	"github.com/mokcj0825/board-hill/internal/hub"
	natspublisher "github.com/mokcj0825/board-hill/internal/infra/messaging/nats"
	gormpersistence "github.com/mokcj0825/board-hill/internal/infra/persistence/gorm"
	"github.com/mokcj0825/board-hill/internal/infra/persistence/memory"
	"github.com/mokcj0825/board-hill/internal/infra/setup"
	redisstate "github.com/mokcj0825/board-hill/internal/infra/state/redis"
	"github.com/mokcj0825/board-hill/internal/middleware"
	"github.com/mokcj0825/board-hill/internal/repository"
	"github.com/mokcj0825/board-hill/internal/service"
	"github.com/mokcj0825/board-hill/internal/tasks"
	"github.com/mokcj0825/board-hill/internal/worker"
)

// App 包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Publisher   *natspublisher.Publisher
	AsynqServer *worker.WorkerServer
	Scheduler   *asynq.Scheduler
	Hub         *hub.Hub
	Gateway     *gateway.Gateway
	Router      *gin.Engine
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
}

// NewLogger 按环境配置全局 logrus 实例并返回
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}
	log := NewLogger(cfg)
	log.WithFields(logrus.Fields{"env": cfg.AppEnv, "store": cfg.StoreDriver}).Info("Configuration loaded successfully")

	app := &App{Config: cfg, Log: log}

	// 存储
	var roomRepo repository.RoomRepository
	switch cfg.StoreDriver {
	case StoreMySQL:
		db, err := setup.InitDB(setup.DBParams{
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Name:     cfg.DBName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		app.DB = db
		roomRepo = gormpersistence.NewGormRoomRepository(db)
	default:
		log.Warn("Using in-memory room store; data is lost on restart")
		roomRepo = memory.NewRoomRepository()
	}

	// Redis (限流、活动记录、后台任务)
	var activityRepo repository.ActivityRepository
	if cfg.RedisAddr != "" {
		redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		app.RedisClient = redisClient
		app.redisClientOpt = asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		activityRepo = redisstate.NewRedisActivityRepository(redisClient, cfg.KeyPrefix)
	} else {
		log.Info("REDIS_ADDR not set; rate limiting and stale room reports disabled")
	}

	// 生命周期事件
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NatsURL != "" {
		p, err := natspublisher.NewPublisher(cfg.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		app.Publisher = p
		publisher = p
	}

	roomService := service.NewRoomService(roomRepo, publisher)

	app.Hub = hub.NewHub()
	gwCfg := gateway.Config{
		JoinAttemptLimit:  cfg.JoinAttemptLimit,
		JoinAttemptWindow: cfg.JoinAttemptWindow,
	}
	if activityRepo != nil {
		gwCfg.Activity = activityRepo
	}
	app.Gateway = gateway.New(roomService, app.Hub, gwCfg)

	if app.RedisClient != nil {
		staleHandler := worker.NewStaleRoomHandler(roomRepo, activityRepo, app.Hub)
		app.AsynqServer = worker.NewWorkerServer(app.redisClientOpt, staleHandler, log)
	}

	app.Router = newRouter(cfg, log, app.RedisClient, roomService, app.Hub, app.Gateway)
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

func newRouter(cfg *Config, log *logrus.Logger, redisClient *redis.Client, rooms *service.RoomService, h *hub.Hub, gw *gateway.Gateway) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))

	// WebSocket 不经过 HTTP 限流
	router.GET("/ws", wsHandler.NewWebSocketHandler(h, gw, cfg.CORSAllowedOrigin).HandleConnection)

	api := router.Group("")
	if redisClient != nil {
		api.Use(middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))
	}
	httpHandler.RegisterRoutes(api, httpHandler.NewRoomHandler(rooms))
	return router
}

// Start 启动后台任务和 HTTP 服务器
func (a *App) Start() {
	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.registerPeriodicTasks()
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC})

	task, err := tasks.NewStaleRoomScanTask(a.Config.StaleRoomAfter, tasks.DefaultStaleScanLimit)
	if err != nil {
		a.Log.Errorf("Failed to create stale room scan task: %v", err)
		return
	}
	schedule := a.Config.StaleScanSchedule
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register stale room scan task: %v", err)
		return
	}
	a.Log.Infof("Stale room scan registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	a.Scheduler = scheduler
	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}
	if a.Gateway != nil {
		a.Gateway.Wait()
	}
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
