package predictor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/internal/repository"
)

// 置信度阈值：保留集 within-20 命中率映射到置信等级
const (
	confidenceHighWithin20   = 0.80
	confidenceMediumWithin20 = 0.60
)

// FallbackVersion 回退启发式的版本标记
const FallbackVersion = "fallback-heuristic"

// modelCacheTTL 激活模型内存缓存时长
const modelCacheTTL = 5 * time.Minute

// Predictor 在线预测服务
// 优先用激活的梯度提升模型，无模型时退回小时基准启发式
type Predictor struct {
	logger         *zap.Logger
	lotRepo        *repository.LotRepository
	eventRepo      *repository.EventRepository
	statusRepo     *repository.StatusRepository
	modelRepo      *repository.ModelRepository
	predictionRepo *repository.PredictionRepository

	mu          sync.RWMutex
	cachedModel *models.TrainedModel
	cachedAt    time.Time
}

// NewPredictor 创建预测服务
func NewPredictor(
	logger *zap.Logger,
	lotRepo *repository.LotRepository,
	eventRepo *repository.EventRepository,
	statusRepo *repository.StatusRepository,
	modelRepo *repository.ModelRepository,
	predictionRepo *repository.PredictionRepository,
) *Predictor {
	return &Predictor{
		logger:         logger,
		lotRepo:        lotRepo,
		eventRepo:      eventRepo,
		statusRepo:     statusRepo,
		modelRepo:      modelRepo,
		predictionRepo: predictionRepo,
	}
}

// activeModel 带 TTL 缓存的激活模型查询，无激活模型时返回 nil
func (p *Predictor) activeModel(ctx context.Context) (*models.TrainedModel, error) {
	p.mu.RLock()
	if p.cachedModel != nil && time.Since(p.cachedAt) < modelCacheTTL {
		model := p.cachedModel
		p.mu.RUnlock()
		return model, nil
	}
	p.mu.RUnlock()

	model, err := p.modelRepo.GetActive(ctx, models.ModelTypeGradientBoosting)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	p.mu.Lock()
	p.cachedModel = model
	p.cachedAt = time.Now()
	p.mu.Unlock()
	return model, nil
}

// InvalidateModelCache 训练完成后强制下次预测重新加载模型
func (p *Predictor) InvalidateModelCache() {
	p.mu.Lock()
	p.cachedModel = nil
	p.mu.Unlock()
}

// modelConfidence 保留集 within-20 命中率映射置信等级
func modelConfidence(metrics models.TrainingMetrics) models.ConfidenceTier {
	switch {
	case metrics.Within20 >= confidenceHighWithin20:
		return models.ConfidenceHigh
	case metrics.Within20 >= confidenceMediumWithin20:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Predict 预测单个停车场在若干目标时刻的占用率
func (p *Predictor) Predict(ctx context.Context, lotID string, targets []time.Time, now time.Time) ([]*models.Prediction, error) {
	if _, err := p.lotRepo.GetByID(ctx, lotID); err != nil {
		return nil, fmt.Errorf("lookup lot: %w", err)
	}

	model, err := p.activeModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active model: %w", err)
	}

	var live *models.LotStatus
	if model == nil {
		// 回退启发式需要实时状态做混合，查不到就纯走基准表
		live, err = p.statusRepo.GetByLot(ctx, lotID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load live status: %w", err)
		}
	}

	predictions := make([]*models.Prediction, 0, len(targets))
	for _, target := range targets {
		var percent float64
		var confidence models.ConfidenceTier
		var version string

		if model != nil {
			events, err := p.eventRepo.ListActiveAt(ctx, lotID, target)
			if err != nil {
				return nil, fmt.Errorf("list events at target: %w", err)
			}
			percent = Score(model, Features(target, events))
			confidence = modelConfidence(model.Metrics)
			version = model.Version
		} else {
			percent = FallbackPredict(target, live, now)
			confidence = models.ConfidenceLow
			version = FallbackVersion
		}

		predictions = append(predictions, &models.Prediction{
			LotID:            lotID,
			TargetTime:       target,
			PredictedPercent: percent,
			PredictedStatus:  models.BucketFor(percent),
			Confidence:       confidence,
			ModelVersion:     version,
		})
	}
	return predictions, nil
}

// HourlyTargets 从 from 的下一个整点起连续 hours 个整点
func HourlyTargets(from time.Time, hours int) []time.Time {
	start := from.Truncate(time.Hour).Add(time.Hour)
	targets := make([]time.Time, 0, hours)
	for i := 0; i < hours; i++ {
		targets = append(targets, start.Add(time.Duration(i)*time.Hour))
	}
	return targets
}

// GenerateForecasts 为全部停车场生成未来 hours 小时的逐小时预测并入库
// 单场失败只记录不中断
func (p *Predictor) GenerateForecasts(ctx context.Context, hours int, now time.Time) (int, error) {
	lots, err := p.lotRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list lots: %w", err)
	}

	targets := HourlyTargets(now, hours)
	total := 0
	for _, lot := range lots {
		predictions, err := p.Predict(ctx, lot.ID, targets, now)
		if err != nil {
			p.logger.Warn("Failed to generate forecast",
				zap.String("lot_id", lot.ID), zap.Error(err))
			continue
		}
		stored, err := p.predictionRepo.StoreBatch(ctx, predictions)
		if err != nil {
			p.logger.Warn("Failed to store forecast",
				zap.String("lot_id", lot.ID), zap.Error(err))
			continue
		}
		total += stored
	}
	return total, nil
}
