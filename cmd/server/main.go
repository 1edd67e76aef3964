package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/parkgazer/internal/aggregator"
	"github.com/langchou/parkgazer/internal/api/handlers"
	"github.com/langchou/parkgazer/internal/cache"
	"github.com/langchou/parkgazer/internal/config"
	"github.com/langchou/parkgazer/internal/predictor"
	"github.com/langchou/parkgazer/internal/recommender"
	"github.com/langchou/parkgazer/internal/repository"
	"github.com/langchou/parkgazer/internal/service"
	"github.com/langchou/parkgazer/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Parkgazer", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	lotRepo := repository.NewLotRepository(db)
	reportRepo := repository.NewReportRepository(db)
	statusRepo := repository.NewStatusRepository(db)
	predictionRepo := repository.NewPredictionRepository(db)
	modelRepo := repository.NewModelRepository(db)
	eventRepo := repository.NewEventRepository(db)
	geofenceRepo := repository.NewGeofenceRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Redis 缓存（可选）
	cacheSvc := cache.New(logger, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer cacheSvc.Close()

	// 运营配置缓存
	settings := config.NewCache(settingsRepo, config.DefaultCacheTTL)
	if err := settings.Refresh(ctx); err != nil {
		logger.Warn("Failed to warm settings cache", zap.Error(err))
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()
	wsHub.SetInitDataProvider(func() *ws.InitData {
		initCtx, initCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer initCancel()
		lots, err := lotRepo.List(initCtx)
		if err != nil {
			logger.Warn("Failed to load lots for init data", zap.Error(err))
			return nil
		}
		statuses, err := statusRepo.ListAll(initCtx)
		if err != nil {
			logger.Warn("Failed to load statuses for init data", zap.Error(err))
			return nil
		}
		return &ws.InitData{Lots: lots, Statuses: statuses}
	})

	// 核心组件
	agg := aggregator.New(logger, lotRepo, reportRepo, statusRepo)
	pred := predictor.NewPredictor(logger, lotRepo, eventRepo, statusRepo, modelRepo, predictionRepo)
	trainer := predictor.NewTrainer(logger, reportRepo, eventRepo, modelRepo)
	rec := recommender.New(logger, lotRepo, statusRepo, predictionRepo)

	// 服务层
	reportService := service.NewReportService(logger, reportRepo, lotRepo, agg, wsHub, cacheSvc)
	geofenceService := service.NewGeofenceService(logger, lotRepo, geofenceRepo, reportService, settings, wsHub, cacheSvc)
	scheduler := service.NewScheduler(cfg, logger, agg, pred, trainer, reportRepo, wsHub, cacheSvc)
	scheduler.Start(ctx)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		lotRepo,
		statusRepo,
		predictionRepo,
		eventRepo,
		reportService,
		geofenceService,
		pred,
		trainer,
		rec,
		settings,
		wsHub,
		cacheSvc,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止后台任务
	scheduler.Stop()
	geofenceService.StopAll()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
