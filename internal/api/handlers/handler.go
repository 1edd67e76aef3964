package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/cache"
	"github.com/langchou/parkgazer/internal/config"
	"github.com/langchou/parkgazer/internal/predictor"
	"github.com/langchou/parkgazer/internal/recommender"
	"github.com/langchou/parkgazer/internal/repository"
	"github.com/langchou/parkgazer/internal/service"
	"github.com/langchou/parkgazer/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger         *zap.Logger
	lotRepo        *repository.LotRepository
	statusRepo     *repository.StatusRepository
	predictionRepo *repository.PredictionRepository
	eventRepo      *repository.EventRepository
	reportService  *service.ReportService
	geofenceSvc    *service.GeofenceService
	predictor      *predictor.Predictor
	trainer        *predictor.Trainer
	recommender    *recommender.Recommender
	settings       *config.Cache
	wsHub          *ws.Hub
	cache          *cache.Service
	upgrader       websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	lotRepo *repository.LotRepository,
	statusRepo *repository.StatusRepository,
	predictionRepo *repository.PredictionRepository,
	eventRepo *repository.EventRepository,
	reportService *service.ReportService,
	geofenceSvc *service.GeofenceService,
	pred *predictor.Predictor,
	trainer *predictor.Trainer,
	rec *recommender.Recommender,
	settings *config.Cache,
	wsHub *ws.Hub,
	cacheSvc *cache.Service,
) *Handler {
	return &Handler{
		logger:         logger,
		lotRepo:        lotRepo,
		statusRepo:     statusRepo,
		predictionRepo: predictionRepo,
		eventRepo:      eventRepo,
		reportService:  reportService,
		geofenceSvc:    geofenceSvc,
		predictor:      pred,
		trainer:        trainer,
		recommender:    rec,
		settings:       settings,
		wsHub:          wsHub,
		cache:          cacheSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 停车场与实时状态
		api.GET("/lots", h.ListLots)
		api.GET("/lots/:id", h.GetLot)
		api.PUT("/lots/:id", h.UpsertLot)
		api.GET("/lots/:id/status", h.GetLotStatus)
		api.GET("/status", h.ListStatuses)

		// 上报
		api.POST("/reports", h.SubmitReport)

		// 预测与训练
		api.GET("/lots/:id/prediction", h.GetPrediction)
		api.GET("/lots/:id/predictions", h.GetPredictionTimeline)
		api.POST("/train", h.TriggerTraining)

		// 推荐
		api.POST("/recommend", h.Recommend)

		// 校园活动
		api.GET("/events", h.ListEvents)
		api.POST("/events", h.CreateEvent)

		// 围栏
		api.POST("/geofence/:device_id/location", h.GeofenceLocation)
		api.POST("/geofence/:device_id/start", h.GeofenceStart)
		api.POST("/geofence/:device_id/stop", h.GeofenceStop)
		api.GET("/geofence/:device_id", h.GeofenceStatus)

		// 运营配置
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings/:key", h.SetSetting)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"redis":      h.cache.Available(),
		"ws_clients": h.wsHub.ClientCount(),
	})
}
