package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/aggregator"
	"github.com/langchou/parkgazer/internal/cache"
	"github.com/langchou/parkgazer/internal/config"
	"github.com/langchou/parkgazer/internal/metrics"
	"github.com/langchou/parkgazer/internal/predictor"
	"github.com/langchou/parkgazer/internal/repository"
	"github.com/langchou/parkgazer/pkg/ws"
)

// Scheduler 后台任务调度器
// 聚合、预测、重训练与清理各按自己的节奏独立运行
type Scheduler struct {
	cfg        *config.Config
	logger     *zap.Logger
	aggregator *aggregator.Aggregator
	predictor  *predictor.Predictor
	trainer    *predictor.Trainer
	reportRepo *repository.ReportRepository
	wsHub      *ws.Hub
	cache      *cache.Service

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewScheduler 创建调度器
func NewScheduler(
	cfg *config.Config,
	logger *zap.Logger,
	agg *aggregator.Aggregator,
	pred *predictor.Predictor,
	trainer *predictor.Trainer,
	reportRepo *repository.ReportRepository,
	wsHub *ws.Hub,
	cacheSvc *cache.Service,
) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		logger:     logger,
		aggregator: agg,
		predictor:  pred,
		trainer:    trainer,
		reportRepo: reportRepo,
		wsHub:      wsHub,
		cache:      cacheSvc,
	}
}

// Start 启动全部后台循环
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Scheduler already running, skipping start")
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting scheduler",
		zap.Duration("aggregate_interval", s.cfg.AggregateInterval),
		zap.Duration("forecast_interval", s.cfg.ForecastInterval),
		zap.Duration("retrain_interval", s.cfg.RetrainInterval))

	s.wg.Add(4)
	go s.loop(ctx, s.cfg.AggregateInterval, s.runAggregation)
	go s.loop(ctx, s.cfg.ForecastInterval, s.runForecast)
	go s.loop(ctx, s.cfg.RetrainInterval, s.runTraining)
	go s.loop(ctx, s.cfg.CleanupInterval, s.runCleanup)
}

// Stop 停止并等待全部循环退出
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// loop 固定间隔执行任务直到停止
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, task func(ctx context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

// runAggregation 全量重算并广播变更
func (s *Scheduler) runAggregation(ctx context.Context) {
	start := time.Now()
	statuses, lotErrors := s.aggregator.RecomputeAll(ctx, start)

	metrics.AggregationRuns.Inc()
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	metrics.AggregationLotErrors.Add(float64(len(lotErrors)))

	for _, status := range statuses {
		s.wsHub.BroadcastStatusUpdate(status)
		if err := s.cache.Set(ctx, cache.KeyStatusPrefix+status.LotID, status, cache.StatusTTL); err != nil {
			s.logger.Warn("Failed to cache lot status", zap.String("lot_id", status.LotID), zap.Error(err))
		}
	}

	s.logger.Debug("Aggregation cycle finished",
		zap.Int("lots", len(statuses)),
		zap.Int("errors", len(lotErrors)),
		zap.Duration("elapsed", time.Since(start)))
}

// runForecast 生成未来逐小时预测批次
func (s *Scheduler) runForecast(ctx context.Context) {
	stored, err := s.predictor.GenerateForecasts(ctx, s.cfg.ForecastHours, time.Now())
	if err != nil {
		s.logger.Error("Forecast cycle failed", zap.Error(err))
		return
	}
	metrics.PredictionsGenerated.Add(float64(stored))
	s.wsHub.BroadcastMessage(ws.MsgTypePredictionUpdate, map[string]interface{}{
		"stored_predictions": stored,
		"generated_at":       time.Now(),
	})
	s.logger.Info("Forecast cycle finished", zap.Int("stored", stored))
}

// runTraining 定期重训练，样本不足是正常情况不算失败
func (s *Scheduler) runTraining(ctx context.Context) {
	start := time.Now()
	result, err := s.trainer.Train(ctx, s.cfg.TrainingDaysBack, start)
	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		s.logger.Error("Training cycle failed", zap.Error(err))
		return
	}
	if !result.Success {
		metrics.TrainingRuns.WithLabelValues("insufficient_data").Inc()
		return
	}
	metrics.TrainingRuns.WithLabelValues("success").Inc()
	s.predictor.InvalidateModelCache()

	// 新模型立即产出一轮预测
	s.runForecast(ctx)
}

// runCleanup 清理超过保留期的上报
func (s *Scheduler) runCleanup(ctx context.Context) {
	before := time.Now().AddDate(0, 0, -s.cfg.ReportRetentionDays)
	deleted, err := s.reportRepo.DeleteExpired(ctx, before)
	if err != nil {
		s.logger.Error("Report cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("Expired reports deleted", zap.Int64("count", deleted))
	}
}
