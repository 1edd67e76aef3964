package aggregator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/internal/repository"
)

// 聚合常量
// 校准参数：半衰期与窗口为工程估计值，需用真实占用数据重新标定
const (
	// DecayHalfLifeMinutes 上报权重衰减常数（分钟），权重 = exp(-age/30)
	DecayHalfLifeMinutes = 30.0
	// ActiveWindowMinutes 活跃上报窗口（分钟），窗口外的上报不参与聚合
	ActiveWindowMinutes = 120
	// RecentWindowMinutes 趋势判断的"最近"窗口（分钟）
	RecentWindowMinutes = 10
	// TrendThreshold 趋势判定阈值（百分点）
	TrendThreshold = 10.0
	// DefaultPercent 无有效上报时的默认占用率（最大不确定性先验）
	DefaultPercent = 50.0
	// ClosureMinReports 判定封闭所需的最少独立上报数
	ClosureMinReports = 2
	// VoteBonus 每个净赞的权重加成
	VoteBonus = 0.1
	// VoteFloor 负净赞时的权重下限
	VoteFloor = 0.5
)

// LotError 批量聚合中单个停车场的失败记录
type LotError struct {
	LotID string `json:"lot_id"`
	Err   error  `json:"-"`
}

func (e LotError) Error() string {
	return fmt.Sprintf("lot %s: %v", e.LotID, e.Err)
}

// Aggregator 上报聚合器
// 无状态批处理：每次调用读取一致快照并幂等覆盖写入，可并发、可重试
type Aggregator struct {
	logger     *zap.Logger
	lotRepo    *repository.LotRepository
	reportRepo *repository.ReportRepository
	statusRepo *repository.StatusRepository
}

// New 创建聚合器
func New(
	logger *zap.Logger,
	lotRepo *repository.LotRepository,
	reportRepo *repository.ReportRepository,
	statusRepo *repository.StatusRepository,
) *Aggregator {
	return &Aggregator{
		logger:     logger,
		lotRepo:    lotRepo,
		reportRepo: reportRepo,
		statusRepo: statusRepo,
	}
}

// ReportWeight 单条上报的聚合权重：时间衰减 × 信誉系数 × 投票系数
func ReportWeight(report *models.Report, now time.Time) float64 {
	ageMinutes := now.Sub(report.CreatedAt).Minutes()
	if ageMinutes < 0 {
		ageMinutes = 0
	}
	decay := math.Exp(-ageMinutes / DecayHalfLifeMinutes)

	voteAdj := 1.0 + VoteBonus*float64(report.NetVotes())
	if voteAdj < VoteFloor {
		voteAdj = VoteFloor
	}

	return decay * report.TrustTier.Multiplier() * voteAdj
}

// Compute 从活跃上报计算停车场状态（纯函数，不触数据库）
func Compute(lotID string, reports []*models.Report, now time.Time) *models.LotStatus {
	status := &models.LotStatus{
		LotID:     lotID,
		Trend:     models.TrendStable,
		UpdatedAt: now,
	}

	// 仅带占用率的上报参与加权均值
	var values, weights []float64
	var lastReportAt *time.Time
	for _, r := range reports {
		if r.OccupancyPercent == nil {
			continue
		}
		values = append(values, *r.OccupancyPercent)
		weights = append(weights, ReportWeight(r, now))
		if lastReportAt == nil || r.CreatedAt.After(*lastReportAt) {
			t := r.CreatedAt
			lastReportAt = &t
		}
	}

	status.ReportCount = len(values)
	status.LastReportAt = lastReportAt

	if len(values) == 0 {
		// 零上报：默认 50%，最低置信
		status.OccupancyPercent = DefaultPercent
	} else {
		status.OccupancyPercent = stat.Mean(values, weights)
	}
	status.Status = models.BucketFor(status.OccupancyPercent)
	status.Confidence = confidenceTier(len(values), lastReportAt, now)
	status.Trend = trendOf(reports, now)

	// 封闭判定：至少两条独立障碍上报，单条永不触发
	closureCount := 0
	var closureReason *string
	for _, r := range reports {
		if r.Kind == models.ReportHazard {
			closureCount++
			if closureReason == nil && r.Note != nil {
				closureReason = r.Note
			}
		}
	}
	if closureCount >= ClosureMinReports {
		status.IsClosed = true
		if closureReason == nil {
			reason := "multiple hazard reports"
			closureReason = &reason
		}
		status.ClosedReason = closureReason
	}

	return status
}

// confidenceTier 按上报数量与最新上报时效划定置信等级（阶梯函数）
func confidenceTier(count int, newest *time.Time, now time.Time) models.ConfidenceTier {
	var newestAge time.Duration
	if newest != nil {
		newestAge = now.Sub(*newest)
	}
	switch {
	case count <= 2:
		return models.ConfidenceLow
	case count <= 5:
		return models.ConfidenceMedium
	case count <= 10 && newestAge < 10*time.Minute:
		return models.ConfidenceHigh
	case count > 10 && newestAge < 5*time.Minute:
		return models.ConfidenceVerified
	default:
		return models.ConfidenceMedium
	}
}

// trendOf 最近 10 分钟 vs 更早上报的均值对比
// 任一组为空时返回 stable
func trendOf(reports []*models.Report, now time.Time) models.TrendDirection {
	cutoff := now.Add(-RecentWindowMinutes * time.Minute)

	var recent, older []float64
	for _, r := range reports {
		if r.OccupancyPercent == nil {
			continue
		}
		if r.CreatedAt.After(cutoff) {
			recent = append(recent, *r.OccupancyPercent)
		} else {
			older = append(older, *r.OccupancyPercent)
		}
	}
	if len(recent) == 0 || len(older) == 0 {
		return models.TrendStable
	}

	diff := stat.Mean(recent, nil) - stat.Mean(older, nil)
	switch {
	case diff > TrendThreshold:
		return models.TrendRising
	case diff < -TrendThreshold:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

// RecomputeLot 重算单个停车场状态并覆盖写入
func (a *Aggregator) RecomputeLot(ctx context.Context, lotID string, now time.Time) (*models.LotStatus, error) {
	since := now.Add(-ActiveWindowMinutes * time.Minute)
	reports, err := a.reportRepo.ListActiveByLot(ctx, lotID, since)
	if err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}

	status := Compute(lotID, reports, now)

	if err := a.statusRepo.Upsert(ctx, status); err != nil {
		return nil, fmt.Errorf("upsert status: %w", err)
	}
	return status, nil
}

// RecomputeAll 批量重算全部停车场
// 单场失败只记录不中断，部分失败是预期行为
func (a *Aggregator) RecomputeAll(ctx context.Context, now time.Time) ([]*models.LotStatus, []LotError) {
	lots, err := a.lotRepo.List(ctx)
	if err != nil {
		a.logger.Error("Failed to list lots for aggregation", zap.Error(err))
		return nil, []LotError{{LotID: "*", Err: err}}
	}

	var statuses []*models.LotStatus
	var lotErrors []LotError
	for _, lot := range lots {
		status, err := a.RecomputeLot(ctx, lot.ID, now)
		if err != nil {
			a.logger.Warn("Failed to recompute lot status",
				zap.String("lot_id", lot.ID), zap.Error(err))
			lotErrors = append(lotErrors, LotError{LotID: lot.ID, Err: err})
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, lotErrors
}
