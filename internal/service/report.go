package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/aggregator"
	"github.com/langchou/parkgazer/internal/cache"
	"github.com/langchou/parkgazer/internal/metrics"
	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/internal/repository"
	"github.com/langchou/parkgazer/pkg/ws"
)

// ErrValidation 请求校验失败
var ErrValidation = errors.New("validation failed")

// nowFunc 可注入时钟，测试用
var nowFunc = time.Now

// SubmitReportRequest 上报请求
type SubmitReportRequest struct {
	LotID             string   `json:"lot_id"`
	AuthorID          *string  `json:"author_id,omitempty"`
	Kind              string   `json:"kind"`
	OccupancyPercent  *float64 `json:"occupancy_percent,omitempty"`
	Note              *string  `json:"note,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	GeofenceTriggered bool     `json:"geofence_triggered"`
	TrustTier         string   `json:"trust_tier,omitempty"`
}

// ReportService 上报服务：校验、落库、即时重聚合并推送
type ReportService struct {
	logger     *zap.Logger
	reportRepo *repository.ReportRepository
	lotRepo    *repository.LotRepository
	aggregator *aggregator.Aggregator
	wsHub      *ws.Hub
	cache      *cache.Service
}

// NewReportService 创建上报服务
func NewReportService(
	logger *zap.Logger,
	reportRepo *repository.ReportRepository,
	lotRepo *repository.LotRepository,
	agg *aggregator.Aggregator,
	wsHub *ws.Hub,
	cacheSvc *cache.Service,
) *ReportService {
	return &ReportService{
		logger:     logger,
		reportRepo: reportRepo,
		lotRepo:    lotRepo,
		aggregator: agg,
		wsHub:      wsHub,
		cache:      cacheSvc,
	}
}

// validate 入参校验，非法请求立即拒绝不做部分处理
func (s *ReportService) validate(req *SubmitReportRequest) error {
	if req.LotID == "" {
		return fmt.Errorf("%w: lot_id is required", ErrValidation)
	}
	kind := models.ReportKind(req.Kind)
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown report kind %q", ErrValidation, req.Kind)
	}
	if req.OccupancyPercent != nil && (*req.OccupancyPercent < 0 || *req.OccupancyPercent > 100) {
		return fmt.Errorf("%w: occupancy_percent must be within [0,100]", ErrValidation)
	}
	return nil
}

// Submit 接收一条上报并返回重算后的停车场状态
func (s *ReportService) Submit(ctx context.Context, req *SubmitReportRequest) (*models.Report, *models.LotStatus, error) {
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}

	if _, err := s.lotRepo.GetByID(ctx, req.LotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: unknown lot %q", ErrValidation, req.LotID)
		}
		return nil, nil, fmt.Errorf("lookup lot: %w", err)
	}

	tier := models.TrustTier(req.TrustTier)
	if req.TrustTier == "" {
		tier = models.TrustNew
	}

	now := nowFunc()
	report := &models.Report{
		LotID:             req.LotID,
		AuthorID:          req.AuthorID,
		Kind:              models.ReportKind(req.Kind),
		OccupancyPercent:  req.OccupancyPercent,
		Note:              req.Note,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		GeofenceTriggered: req.GeofenceTriggered,
		TrustTier:         tier,
		CreatedAt:         now,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, nil, fmt.Errorf("persist report: %w", err)
	}
	metrics.ReportsIngested.WithLabelValues(string(report.Kind)).Inc()

	// 上报即触发单场重聚合，状态立刻可见
	status, err := s.aggregator.RecomputeLot(ctx, req.LotID, now)
	if err != nil {
		// 上报已落库，聚合失败不回滚，下个调度周期补上
		s.logger.Warn("Recompute after report failed",
			zap.String("lot_id", req.LotID), zap.Error(err))
		return report, nil, nil
	}

	s.publishStatus(ctx, status)
	return report, status, nil
}

// publishStatus 状态变更推送到 WebSocket 与 Redis
func (s *ReportService) publishStatus(ctx context.Context, status *models.LotStatus) {
	s.wsHub.BroadcastStatusUpdate(status)

	if err := s.cache.Set(ctx, cache.KeyStatusPrefix+status.LotID, status, cache.StatusTTL); err != nil {
		s.logger.Warn("Failed to cache lot status", zap.String("lot_id", status.LotID), zap.Error(err))
	}
	if err := s.cache.Publish(ctx, cache.ChannelStatus, status); err != nil {
		s.logger.Warn("Failed to publish status update", zap.String("lot_id", status.LotID), zap.Error(err))
	}
}
