package predictor

import (
	"time"

	"github.com/langchou/parkgazer/internal/models"
)

// 无模型时的启发式回退预测
const (
	// LiveBlendWeight 实时聚合占用率的混合权重（近期预测向当前状态收敛）
	LiveBlendWeight = 0.3
	// TrendSlopePerHour 趋势外推斜率（百分点/小时）
	TrendSlopePerHour = 5.0
	// TrendHorizonHours 趋势外推上限（小时），再远的未来趋势信号失效
	TrendHorizonHours = 2.0
	// weekendDamping 周末基准占用折减系数
	weekendDamping = 0.6
)

// hourlyBaseRate 工作日逐小时基准占用率
// 校园双峰形态：上午课程高峰与下午缓慢回落，夜间接近空场
var hourlyBaseRate = [24]float64{
	5, 5, 5, 5, 5, 8, // 00-05
	15, 35, 60, 80, 85, 85, // 06-11
	80, 80, 75, 70, 60, 50, // 12-17
	40, 35, 25, 15, 10, 5, // 18-23
}

// FallbackPredict 无激活模型时的启发式预测
// 基准表 + 实时状态混合 + 趋势线性外推，live 为 nil 时退化为纯基准表
func FallbackPredict(target time.Time, live *models.LotStatus, now time.Time) float64 {
	base := hourlyBaseRate[target.Hour()]
	if target.Weekday() == time.Saturday || target.Weekday() == time.Sunday {
		base *= weekendDamping
	}

	if live == nil {
		return clamp(base)
	}

	pred := (1-LiveBlendWeight)*base + LiveBlendWeight*live.OccupancyPercent

	// 趋势外推，距离目标越远衰减到零
	hoursAhead := target.Sub(now).Hours()
	if hoursAhead < 0 {
		hoursAhead = 0
	}
	if hoursAhead > TrendHorizonHours {
		hoursAhead = TrendHorizonHours
	}
	switch live.Trend {
	case models.TrendRising:
		pred += TrendSlopePerHour * hoursAhead
	case models.TrendFalling:
		pred -= TrendSlopePerHour * hoursAhead
	}

	return clamp(pred)
}
