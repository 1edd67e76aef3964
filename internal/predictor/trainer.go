package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/internal/repository"
)

// DefaultTrainingDays 默认回看天数
const DefaultTrainingDays = 90

// TrainResult 一次训练的结果摘要
type TrainResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Version string                 `json:"version,omitempty"`
	Metrics models.TrainingMetrics `json:"metrics,omitempty"`
}

// Trainer 模型训练编排：取数、建样本、训练、持久化并激活
type Trainer struct {
	logger     *zap.Logger
	reportRepo *repository.ReportRepository
	eventRepo  *repository.EventRepository
	modelRepo  *repository.ModelRepository
}

// NewTrainer 创建训练器
func NewTrainer(
	logger *zap.Logger,
	reportRepo *repository.ReportRepository,
	eventRepo *repository.EventRepository,
	modelRepo *repository.ModelRepository,
) *Trainer {
	return &Trainer{
		logger:     logger,
		reportRepo: reportRepo,
		eventRepo:  eventRepo,
		modelRepo:  modelRepo,
	}
}

// BuildSamples 从历史上报构建训练样本（按时间升序）
// 活动特征只连接同停车场的活动
func BuildSamples(reports []*models.Report, events []*models.Event) []Sample {
	byLot := make(map[string][]*models.Event)
	for _, ev := range events {
		byLot[ev.LotID] = append(byLot[ev.LotID], ev)
	}

	samples := make([]Sample, 0, len(reports))
	for _, r := range reports {
		if r.OccupancyPercent == nil {
			continue
		}
		samples = append(samples, Sample{
			LotID:     r.LotID,
			Timestamp: r.CreatedAt,
			Features:  Features(r.CreatedAt, byLot[r.LotID]),
			Label:     *r.OccupancyPercent,
		})
	}
	return samples
}

// Train 全量训练流程，成功后原子激活新模型
// 样本不足时返回失败结果而非错误，调度器照常继续
func (t *Trainer) Train(ctx context.Context, daysBack int, now time.Time) (*TrainResult, error) {
	if daysBack <= 0 {
		daysBack = DefaultTrainingDays
	}
	since := now.AddDate(0, 0, -daysBack)

	reports, err := t.reportRepo.ListHistorical(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch training reports: %w", err)
	}
	events, err := t.eventRepo.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch training events: %w", err)
	}

	samples := BuildSamples(reports, events)
	version := fmt.Sprintf("gbdt-%s", now.UTC().Format("20060102-150405"))

	model, err := TrainModel(samples, version, now)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			t.logger.Warn("Skipping model training",
				zap.Int("samples", len(samples)),
				zap.Int("required", MinTrainingSamples))
			return &TrainResult{
				Success: false,
				Message: fmt.Sprintf("insufficient data: %d samples, need at least %d", len(samples), MinTrainingSamples),
			}, nil
		}
		return nil, fmt.Errorf("train model: %w", err)
	}

	if err := t.modelRepo.SaveAndActivate(ctx, model); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}

	t.logger.Info("Model trained and activated",
		zap.String("version", model.Version),
		zap.Int("samples", model.Metrics.SampleCount),
		zap.Float64("mae", model.Metrics.MAE),
		zap.Float64("rmse", model.Metrics.RMSE),
		zap.Float64("within_20", model.Metrics.Within20))

	return &TrainResult{
		Success: true,
		Message: "model trained and activated",
		Version: model.Version,
		Metrics: model.Metrics,
	}, nil
}
